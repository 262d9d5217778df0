package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLog_OrderAndTimestamps(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(time.Second), base.Add(-time.Minute)}
	i := 0
	log := NewEventLogWithClock(func() time.Time {
		ts := ticks[i]
		i++
		return ts
	})

	log.Add("first")
	log.Add("second 2")
	log.Add("third")

	events := log.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "first", events[0].Message)
	assert.Equal(t, "second 2", events[1].Message)
	assert.Equal(t, "third", events[2].Message)

	// the clock stepped back on the third entry
	assert.Equal(t, events[1].Timestamp, events[2].Timestamp)
	assert.Equal(t, "first\nsecond 2\nthird", log.String())
}

func TestEventLog_EventsReturnsCopy(t *testing.T) {
	log := NewEventLog()
	log.Add("one")

	events := log.Events()
	events[0].Message = "mutated"

	assert.Equal(t, "one", log.Events()[0].Message)
	assert.Equal(t, 1, log.Len())
}

func TestWithEventLog_TeesInfoWarnError(t *testing.T) {
	events := NewEventLog()
	log := WithEventLog(NewTestLogger(t), events)

	log.Debug("debug stays out", nil)
	log.Info("Starting", map[string]interface{}{"companyId": "42"})
	log.WithFields(map[string]interface{}{"step": "token"}).Warn("Degraded", nil)
	log.Error("Envelope failed", nil)

	assert.Equal(t, "Starting\nDegraded\nERROR: Envelope failed", events.String())
}
