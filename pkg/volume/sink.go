package volume

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/airvol/airvol/pkg/log"
)

// Sink applies a volume percentage to the local output device.
// Implementations must tolerate being called repeatedly with the same
// value; the Gate keeps that from happening in normal operation.
type Sink interface {
	Apply(percent int) error
}

// ExecSink runs a configured command for each applied change, with
// every "{pct}" occurrence replaced by the percent value.
type ExecSink struct {
	// Command is the shell-less argv, e.g.
	// ["pactl", "set-sink-volume", "@DEFAULT_SINK@", "{pct}%"].
	Command []string

	// Timeout is the command execution timeout (default: 5 seconds)
	Timeout time.Duration
}

// NewExecSink creates an exec sink from a whitespace-separated command line.
func NewExecSink(commandLine string) *ExecSink {
	return &ExecSink{
		Command: strings.Fields(commandLine),
		Timeout: 5 * time.Second,
	}
}

// Apply substitutes the percent into the command and runs it.
func (s *ExecSink) Apply(percent int) error {
	if len(s.Command) == 0 {
		return fmt.Errorf("no sink command specified")
	}

	pct := strconv.Itoa(percent)
	argv := make([]string, len(s.Command))
	for i, arg := range s.Command {
		argv[i] = strings.ReplaceAll(arg, "{pct}", pct)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("sink command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("sink command failed: %w", err)
	}
	return nil
}

// WithTimeout sets the command execution timeout
func (s *ExecSink) WithTimeout(timeout time.Duration) *ExecSink {
	s.Timeout = timeout
	return s
}

// LogSink only logs applied values. It is the default sink when no
// command is configured, useful for dry runs and tests.
type LogSink struct{}

// Apply logs the percent value.
func (LogSink) Apply(percent int) error {
	logger := log.WithComponent("volume")
	logger.Info().Int("percent", percent).Msg("volume applied")
	return nil
}
