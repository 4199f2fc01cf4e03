package crawler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lastgraph/internal/crawler"
	"lastgraph/internal/lastfm"
)

func TestSelectWeeks(t *testing.T) {
	calendar := []lastfm.WeekRange{
		{From: 1353196800, To: 1353801600}, // 2012-11-18
		{From: weekDec, To: weekDec + weekLen},
		{From: weekDecTwo, To: weekDecTwo + weekLen},
		{From: weekJan, To: weekJan + weekLen},
	}

	weeks := crawler.SelectWeeks("2006-01", "2012-12", calendar)
	assert.Equal(t, []lastfm.WeekRange{
		{From: weekDec, To: weekDec + weekLen},
		{From: weekDecTwo, To: weekDecTwo + weekLen},
	}, weeks, "only December 2012 weeks match, order preserved")
}

func TestSelectWeeksNoMatch(t *testing.T) {
	calendar := []lastfm.WeekRange{{From: weekDec, To: weekDec + weekLen}}
	assert.Empty(t, crawler.SelectWeeks("2006-01", "1999-01", calendar))
}

func TestSelectWeeksDailyGranularity(t *testing.T) {
	calendar := []lastfm.WeekRange{
		{From: weekDec, To: weekDec + weekLen},
		{From: weekDecTwo, To: weekDecTwo + weekLen},
	}
	weeks := crawler.SelectWeeks("2006-01-02", "2012-12-09", calendar)
	assert.Equal(t, []lastfm.WeekRange{{From: weekDecTwo, To: weekDecTwo + weekLen}}, weeks)
}

func TestSelectWeeksEmptyCalendar(t *testing.T) {
	assert.Empty(t, crawler.SelectWeeks("2006-01", "2012-12", nil))
}
