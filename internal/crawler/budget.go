package crawler

import (
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrBudgetExhausted is fatal to the run: too many remote failures.
// Data committed before the trip stays valid for resumption.
var ErrBudgetExhausted = errors.New("too many remote errors")

// errorBudget counts remote-service failures. Below the limit each
// failure is a warning and the crawl continues; reaching the limit is
// terminal.
type errorBudget struct {
	limit int
	seen  int
}

// observe records one remote failure. It returns nil while the budget
// holds and ErrBudgetExhausted once the limit is reached.
func (b *errorBudget) observe(err error) error {
	b.seen++
	if b.seen >= b.limit {
		log.Error().Err(err).Int("errors", b.seen).Msg("Error budget exhausted, stopping")
		return ErrBudgetExhausted
	}
	log.Warn().Err(err).Int("errors", b.seen).Int("limit", b.limit).Msg("Remote failure, continuing")
	return nil
}
