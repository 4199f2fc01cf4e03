package crawler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetTripsAtLimitNotBefore(t *testing.T) {
	b := &errorBudget{limit: 3}
	boom := errors.New("boom")

	require.NoError(t, b.observe(boom))
	require.NoError(t, b.observe(boom))
	assert.ErrorIs(t, b.observe(boom), ErrBudgetExhausted)
}

func TestBudgetTrippedStateIsTerminal(t *testing.T) {
	b := &errorBudget{limit: 1}
	boom := errors.New("boom")

	assert.ErrorIs(t, b.observe(boom), ErrBudgetExhausted)
	assert.ErrorIs(t, b.observe(boom), ErrBudgetExhausted)
}
