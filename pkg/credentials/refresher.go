package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

const maxLoggedOutputLength = 256

// CommandRefresher refreshes credentials by running the vendor CLI, which
// rewrites the stored token as a side effect.
type CommandRefresher struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommandRefresher creates a refresher that runs command with args, bounded by timeout.
func NewCommandRefresher(command string, args []string, timeout time.Duration, logger *slog.Logger) *CommandRefresher {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &CommandRefresher{
		command: command,
		args:    args,
		timeout: timeout,
		logger:  logger,
	}
}

// Refresh runs the command. A zero exit status counts as success.
func (r *CommandRefresher) Refresh(ctx context.Context) error {
	if r.command == "" {
		return fmt.Errorf("%w: no refresh command configured", ErrRefreshFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	output, err := exec.CommandContext(ctx, r.command, r.args...).CombinedOutput()
	if err != nil {
		r.logger.Warn("credential refresh command failed",
			"command", r.command,
			"duration", time.Since(start),
			"output", truncateOutput(output),
			"error", err,
		)
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w after %s", ErrRefreshFailed, ErrRefreshTimeout, r.timeout)
		}
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	r.logger.Info("credential refresh command completed",
		"command", r.command,
		"duration", time.Since(start),
	)
	return nil
}

func truncateOutput(output []byte) string {
	if len(output) <= maxLoggedOutputLength {
		return string(output)
	}
	return string(output[:maxLoggedOutputLength]) + "..."
}
