package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"orgsync/internal/config"
	"orgsync/internal/metrics"
	"orgsync/internal/output"

	"github.com/google/uuid"
)

// Exit code contract:
//
//	0 = run completed (per-repository failures included, unless FailOnError)
//	2 = run completed with per-repository failures and FailOnError is set
//	3 = fatal error (nothing was synchronized)
const (
	ExitOK      = 0
	ExitPartial = 2
	ExitFatal   = 3
)

func exitCodeForRun(fatal, partial, failOnError bool) int {
	if fatal {
		return ExitFatal
	}
	if partial && failOnError {
		return ExitPartial
	}
	return ExitOK
}

type Engine struct {
	Lister  Lister
	VCS     VCS
	Log     *slog.Logger
	Metrics *metrics.Recorder

	// Out receives the end-of-run summary; os.Stderr when nil.
	Out io.Writer

	// shuffle is a test seam for dispatch order. If nil, Batch.Shuffle is used.
	shuffle func(Batch)
	now     func() time.Time
}

func NewEngine(lister Lister, vcs VCS, log *slog.Logger, rec *metrics.Recorder) *Engine {
	return &Engine{
		Lister:  lister,
		VCS:     vcs,
		Log:     log,
		Metrics: rec,
	}
}

// Run performs one synchronization: list, shuffle, lock the base path, fan
// out, then report. It returns the process exit code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config) int {
	log := e.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run", uuid.NewString(), "org", cfg.Source.Org)

	out := e.Out
	if out == nil {
		out = os.Stderr
	}
	now := e.now
	if now == nil {
		now = time.Now
	}

	batch, err := e.Lister.List(ctx)
	if err != nil {
		log.Error("Failed to fetch repositories", "err", err)
		return exitCodeForRun(true, false, cfg.Runtime.FailOnError)
	}
	log.Info("Found repositories", "count", len(batch))
	e.Metrics.SetReposListed(len(batch))

	if e.shuffle != nil {
		e.shuffle(batch)
	} else {
		batch.Shuffle()
	}

	lock, err := acquireRunLock(cfg.Sync.Path)
	if err != nil {
		log.Error("Failed to lock base path", "path", cfg.Sync.Path, "err", err)
		return exitCodeForRun(true, false, cfg.Runtime.FailOnError)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("Failed to release lock", "err", err)
		}
	}()

	scheduler, err := NewScheduler(e.VCS, cfg.Sync.Concurrency, log, e.Metrics)
	if err != nil {
		log.Error("Failed to create scheduler", "err", err)
		return exitCodeForRun(true, false, cfg.Runtime.FailOnError)
	}

	failures := &OutcomeLog{}
	results := scheduler.Execute(ctx, batch, failures)

	summary := output.Summary{Errors: failures.Entries()}
	for _, r := range results {
		switch {
		case r.Err != nil:
			summary.Failed++
		case r.Action == ActionFetch:
			summary.Cloned++
		case r.Action == ActionUpdate:
			summary.Updated++
		}
	}
	if err := output.WriteSummary(out, summary); err != nil {
		log.Warn("Failed to write summary", "err", err)
	}

	e.Metrics.MarkRunComplete(now())
	if path := cfg.Output.MetricsTextfile; path != "" {
		if err := e.Metrics.WriteTextfile(path); err != nil {
			log.Warn("Failed to write metrics textfile", "path", path, "err", err)
		}
	}

	return exitCodeForRun(false, failures.Len() > 0, cfg.Runtime.FailOnError)
}
