package cli

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabtrack/fabtrack/jobs"
)

type recordingMigrator struct {
	ups   int
	downs []int
}

func (m *recordingMigrator) Up(string, *slog.Logger) error {
	m.ups++
	return nil
}

func (m *recordingMigrator) Down(_ string, steps int, _ *slog.Logger) error {
	m.downs = append(m.downs, steps)
	return nil
}

func TestRunMigrate(t *testing.T) {
	m := &recordingMigrator{}
	env := Env{DSN: "postgres://x"}

	require.NoError(t, RunMigrate(env, m, []string{"up"}))
	require.NoError(t, RunMigrate(env, m, []string{"down", "2"}))
	assert.Equal(t, 1, m.ups)
	assert.Equal(t, []int{2}, m.downs)

	for _, args := range [][]string{nil, {"sideways"}, {"down"}, {"down", "zero"}, {"down", "-1"}} {
		assert.True(t, errors.Is(RunMigrate(env, m, args), ErrUsage), "%v", args)
	}
}

func TestTaskFor(t *testing.T) {
	task, err := taskFor(jobs.TaskTypeIdempotencyPurge)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskTypeIdempotencyPurge, task.Type())

	_, err = taskFor(jobs.TaskTypeOrderNotify)
	assert.Error(t, err)
}

func TestRunJobsRequiresSubcommand(t *testing.T) {
	assert.ErrorIs(t, RunJobs(context.Background(), Env{RedisAddr: "127.0.0.1:0"}, nil), ErrUsage)
	_, err := NewJobsCLI("")
	assert.Error(t, err)
}
