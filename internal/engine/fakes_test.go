package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"orgsync/internal/git"
)

// fakeVCS records invocations and tracks how many run at once.
type fakeVCS struct {
	delay time.Duration
	// failPull maps a repository directory name to the stderr of a failing pull.
	failPull map[string]string
	// block, when non-nil, holds every invocation until it is closed.
	block   chan struct{}
	started chan string

	active    atomic.Int32
	maxActive atomic.Int32

	mu     sync.Mutex
	clones []string // remotes
	pulls  []string // repo names
	ctxErr []error
}

func (f *fakeVCS) enter(ctx context.Context, name string) {
	n := f.active.Add(1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.started != nil {
		f.started <- name
	}
	if f.block != nil {
		<-f.block
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.ctxErr = append(f.ctxErr, ctx.Err())
	f.mu.Unlock()
}

func (f *fakeVCS) leave() { f.active.Add(-1) }

func (f *fakeVCS) Clone(ctx context.Context, dir, remote string) error {
	name := filepath.Base(remote)
	f.enter(ctx, name)
	defer f.leave()

	f.mu.Lock()
	f.clones = append(f.clones, remote)
	f.mu.Unlock()
	return os.MkdirAll(filepath.Join(dir, name), 0o755)
}

func (f *fakeVCS) Pull(ctx context.Context, dir string) error {
	name := filepath.Base(dir)
	f.enter(ctx, name)
	defer f.leave()

	f.mu.Lock()
	f.pulls = append(f.pulls, name)
	f.mu.Unlock()
	if stderr, ok := f.failPull[name]; ok {
		return &git.CommandError{Args: []string{"pull"}, Dir: dir, ExitCode: 1, Stderr: stderr, Err: errors.New("exit status 1")}
	}
	return nil
}

func (f *fakeVCS) calls() (clones, pulls []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clones...), append([]string(nil), f.pulls...)
}

// fakeLister returns a fixed batch or error and counts calls.
type fakeLister struct {
	batch Batch
	err   error
	calls int
}

func (l *fakeLister) List(context.Context) (Batch, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return append(Batch(nil), l.batch...), nil
}

// newItems builds WorkItems under base whose remote basename equals the name,
// so fakeVCS.Clone creates base/<name>.
func newItems(base string, names ...string) Batch {
	b := make(Batch, 0, len(names))
	for _, n := range names {
		b = append(b, NewWorkItem(base, n, n))
	}
	return b
}

func mkdirs(base string, names ...string) error {
	for _, n := range names {
		if err := os.MkdirAll(filepath.Join(base, n), 0o755); err != nil {
			return err
		}
	}
	return nil
}
