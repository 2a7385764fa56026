// Package git runs the git CLI for the two operations a sync needs: cloning a
// missing repository and pulling an existing one.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CommandError is returned when a git invocation could not be started or
// exited with a non-zero status.
type CommandError struct {
	Args     []string
	Dir      string
	ExitCode int // -1 when the process never produced an exit status
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// waitDelay bounds how long Run waits for output pipes held open by
// descendants of a killed git process.
const waitDelay = 5 * time.Second

// Git invokes a git binary. The zero value runs "git" from PATH with no
// timeout.
type Git struct {
	// Binary is the executable to run; empty means "git".
	Binary string
	// Env is appended to the current process environment and overrides the
	// defaults set by run.
	Env []string
	// Timeout bounds each invocation. Zero means wait indefinitely.
	Timeout time.Duration
}

// Clone runs `git clone <remote>` with dir as the working directory.
func (g *Git) Clone(ctx context.Context, dir, remote string) error {
	_, err := g.run(ctx, dir, "clone", remote)
	return err
}

// Pull runs `git pull` inside dir.
func (g *Git) Pull(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "pull")
	return err
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	bin := g.Binary
	if bin == "" {
		bin = "git"
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay
	if g.Timeout > 0 {
		// git pull forks fetch, which forks ssh or a remote helper; a timeout
		// has to take all of them down, not just the direct child.
		killProcessGroupOnCancel(cmd)
	}
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), defaultEnv()...)
	cmd.Env = append(cmd.Env, g.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cerr := &CommandError{
			Args:     args,
			Dir:      dir,
			ExitCode: -1,
			Stderr:   stderr.String(),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			cerr.Err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return "", cerr
	}
	return stdout.String(), nil
}

// defaultEnv makes git fail instead of blocking on a credential, passphrase
// or host key prompt. An ssh command configured by the user is left alone.
func defaultEnv() []string {
	env := []string{"GIT_TERMINAL_PROMPT=0"}
	if os.Getenv("GIT_SSH_COMMAND") == "" && os.Getenv("GIT_SSH") == "" {
		env = append(env, "GIT_SSH_COMMAND=ssh -o BatchMode=yes")
	}
	return env
}
