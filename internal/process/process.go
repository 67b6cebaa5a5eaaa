package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when a command does not exit within its timeout.
var ErrTimeout = errors.New("process timed out")

// ErrUnsafeArgument is returned by Expand when a substituted value could be
// parsed as a flag by the target binary.
var ErrUnsafeArgument = errors.New("unsafe process argument")

// maxCapturedOutput bounds the stdout/stderr kept per run.
const maxCapturedOutput = 64 * 1024

// Command describes one invocation of an external binary.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Result is the outcome of a command that ran to exit. A non-zero ExitCode
// is reported here rather than as an error.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success reports whether the command exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates an ExecRunner.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger.With("component", "process_runner")}
}

// Run starts cmd and waits for it. It returns an error only when the binary
// could not be started, the timeout elapsed or ctx was cancelled.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Name == "" {
		return Result{}, errors.New("process name cannot be empty")
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	stdout := &limitedBuffer{limit: maxCapturedOutput}
	stderr := &limitedBuffer{limit: maxCapturedOutput}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = stdout
	c.Stderr = stderr
	c.WaitDelay = 5 * time.Second

	r.logger.Debug("starting process", "name", cmd.Name, "args", cmd.Args)

	start := time.Now()
	err := c.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: %s after %s", ErrTimeout, cmd.Name, cmd.Timeout)
		}
		return result, fmt.Errorf("process %s cancelled: %w", cmd.Name, ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			r.logger.Debug("process exited with non-zero status",
				"name", cmd.Name,
				"exit_code", result.ExitCode,
				"duration_ms", result.Duration.Milliseconds())
			return result, nil
		}
		return result, fmt.Errorf("failed to start %s: %w", cmd.Name, err)
	}

	r.logger.Debug("process finished",
		"name", cmd.Name,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// Expand returns a copy of template with every argument that is exactly a
// {key} token replaced by vars[key]. Tokens are never substituted inside a
// larger argument. Values starting with "-" are rejected.
func Expand(template []string, vars map[string]string) ([]string, error) {
	args := make([]string, 0, len(template))
	for _, arg := range template {
		if !strings.HasPrefix(arg, "{") || !strings.HasSuffix(arg, "}") {
			args = append(args, arg)
			continue
		}

		key := strings.TrimSuffix(strings.TrimPrefix(arg, "{"), "}")
		value, ok := vars[key]
		if !ok {
			return nil, fmt.Errorf("no value for template argument %s", arg)
		}
		if value == "" || strings.HasPrefix(value, "-") {
			return nil, fmt.Errorf("%w: %s=%q", ErrUnsafeArgument, key, value)
		}
		args = append(args, value)
	}
	return args, nil
}

// limitedBuffer keeps the first limit bytes written to it and discards the
// rest without failing the writer.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
