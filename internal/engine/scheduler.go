package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"orgsync/internal/metrics"

	"golang.org/x/sync/semaphore"
)

// VCS is the external version-control tool. *git.Git satisfies it.
type VCS interface {
	Clone(ctx context.Context, dir, remote string) error
	Pull(ctx context.Context, dir string) error
}

// Outcome is the terminal state of one task.
type Outcome struct {
	Item     WorkItem
	Action   Action
	Err      error
	Duration time.Duration
}

func (o Outcome) Succeeded() bool { return o.Err == nil }

type Scheduler struct {
	vcs         VCS
	concurrency int
	log         *slog.Logger
	metrics     *metrics.Recorder
}

func NewScheduler(vcs VCS, concurrency int, log *slog.Logger, rec *metrics.Recorder) (*Scheduler, error) {
	if vcs == nil {
		return nil, errors.New("vcs is nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{vcs: vcs, concurrency: concurrency, log: log, metrics: rec}, nil
}

// Execute runs one task per WorkItem and returns once every task is terminal.
//
// Semantics:
//   - At most s.concurrency tasks hold a token (and therefore run git) at once.
//   - A failing task appends exactly one message to failures and never affects
//     its siblings.
//   - Canceling ctx only stops tasks still waiting for a token; they terminate
//     as failures so every item still has exactly one outcome. Running git
//     invocations are not interrupted.
//
// The returned slice is indexed like batch.
func (s *Scheduler) Execute(ctx context.Context, batch Batch, failures *OutcomeLog) []Outcome {
	if failures == nil {
		failures = &OutcomeLog{}
	}
	tokens := semaphore.NewWeighted(int64(s.concurrency))
	results := make([]Outcome, len(batch))

	var wg sync.WaitGroup
	for i, item := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.runTask(ctx, tokens, item)
			if err := results[i].Err; err != nil {
				failures.Append(err.Error())
			}
		}()
	}
	wg.Wait()

	return results
}

func (s *Scheduler) runTask(ctx context.Context, tokens *semaphore.Weighted, item WorkItem) Outcome {
	log := s.log.With("repo", item.Name)

	if err := tokens.Acquire(ctx, 1); err != nil {
		serr := &SyncError{Repo: item.Name, Action: ActionNone, Err: fmt.Errorf("not started: %w", err)}
		log.Error(serr.Error())
		s.metrics.RecordNotStarted()
		return Outcome{Item: item, Action: ActionNone, Err: serr}
	}
	defer tokens.Release(1)

	action := ActionFetch
	if pathExists(item.LocalPath) {
		action = ActionUpdate
	}

	// In-flight invocations outlive run cancellation; only the git runner's
	// own timeout (if any) can stop them.
	opCtx := context.WithoutCancel(ctx)

	start := time.Now()
	var err error
	switch action {
	case ActionUpdate:
		log.Info("Pulling latest changes")
		err = s.vcs.Pull(opCtx, item.LocalPath)
	case ActionFetch:
		log.Info("Cloning")
		err = s.vcs.Clone(opCtx, item.BasePath(), item.RemoteAddress)
	}
	took := time.Since(start)

	s.metrics.RecordSync(string(action), err == nil, took)

	if err != nil {
		serr := &SyncError{Repo: item.Name, Action: action, Err: err}
		log.Error(serr.Error(), "took", took.Truncate(time.Millisecond))
		return Outcome{Item: item, Action: action, Err: serr, Duration: took}
	}

	if action == ActionUpdate {
		log.Info("Successfully updated", "took", took.Truncate(time.Millisecond))
	} else {
		log.Info("Successfully cloned", "took", took.Truncate(time.Millisecond))
	}
	return Outcome{Item: item, Action: action, Duration: took}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
