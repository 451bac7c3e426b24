package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/fabtrack/fabtrack/internal/platform/migrations"
)

// ErrUsage is returned for unknown or malformed subcommands.
var ErrUsage = errors.New("usage: fabtrack [serve] | migrate up | migrate down N | jobs stats | jobs archived [N] | jobs trigger NAME")

// Env carries what the subcommands need from the loaded configuration.
type Env struct {
	DSN       string
	RedisAddr string
	Logger    *slog.Logger
	Out       io.Writer
}

// Migrator applies schema changes.
type Migrator interface {
	Up(dsn string, logger *slog.Logger) error
	Down(dsn string, steps int, logger *slog.Logger) error
}

type embeddedMigrator struct{}

func (embeddedMigrator) Up(dsn string, logger *slog.Logger) error { return migrations.Up(dsn, logger) }

func (embeddedMigrator) Down(dsn string, steps int, logger *slog.Logger) error {
	return migrations.Down(dsn, steps, logger)
}

// DefaultMigrator runs the embedded migrations.
var DefaultMigrator Migrator = embeddedMigrator{}

// RunMigrate handles "migrate up" and "migrate down N".
func RunMigrate(env Env, m Migrator, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	switch args[0] {
	case "up":
		return m.Up(env.DSN, env.Logger)
	case "down":
		if len(args) != 2 {
			return ErrUsage
		}
		steps, err := strconv.Atoi(args[1])
		if err != nil || steps <= 0 {
			return fmt.Errorf("%w: steps must be a positive integer", ErrUsage)
		}
		return m.Down(env.DSN, steps, env.Logger)
	default:
		return ErrUsage
	}
}

// RunJobs handles the "jobs" subcommands.
func RunJobs(ctx context.Context, env Env, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	c, err := NewJobsCLI(env.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()

	switch args[0] {
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(env.Out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		return err
	case "archived":
		size := 10
		if len(args) > 1 {
			if size, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("%w: page size must be an integer", ErrUsage)
			}
		}
		tasks, err := c.ListArchived(ctx, size)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Fprintf(env.Out, "%s %s retried=%d last_error=%q\n", t.ID, t.Type, t.Retried, t.LastErr)
		}
		return nil
	case "trigger":
		if len(args) != 2 {
			return ErrUsage
		}
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(env.Out, "enqueued %s as %s\n", info.Type, info.ID)
		return err
	default:
		return ErrUsage
	}
}
