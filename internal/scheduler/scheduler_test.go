package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evafinance/evacore/internal/config"
)

func noop(context.Context) error { return nil }

func TestLoadAcceptsRegisteredJobs(t *testing.T) {
	s := New()
	s.Register("ingest", noop)
	s.Register("score", noop)

	err := s.Load(context.Background(), []config.Job{
		{Name: "poll-feeds", Type: "ingest", Schedule: "*/15 * * * *", Enabled: true},
		{Name: "daily-scoring", Type: "score", Schedule: "30 6 * * *", Enabled: true},
	})
	require.NoError(t, err)
}

func TestLoadRejectsUnknownJobType(t *testing.T) {
	s := New()
	s.Register("ingest", noop)

	err := s.Load(context.Background(), []config.Job{
		{Name: "mystery", Type: "does-not-exist", Schedule: "* * * * *", Enabled: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job type")
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	s := New()
	s.Register("ingest", noop)

	err := s.Load(context.Background(), []config.Job{
		{Name: "broken", Type: "ingest", Schedule: "every day at noon", Enabled: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule")
}

func TestLoadSkipsDisabledJobs(t *testing.T) {
	s := New()

	// Disabled jobs never resolve their runner, so an unknown type is fine.
	err := s.Load(context.Background(), []config.Job{
		{Name: "off", Type: "not-registered", Schedule: "* * * * *", Enabled: false},
	})
	assert.NoError(t, err)
}
