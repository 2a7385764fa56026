package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"orgsync/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T, vcs VCS, concurrency int, rec *metrics.Recorder) *Scheduler {
	t.Helper()
	s, err := NewScheduler(vcs, concurrency, discardLogger(), rec)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func TestNewScheduler_Validates(t *testing.T) {
	if _, err := NewScheduler(nil, 1, nil, nil); err == nil {
		t.Fatal("expected error for nil vcs")
	}

	_, err := NewScheduler(&fakeVCS{}, 0, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "concurrency must be >= 1") {
		t.Fatalf("expected concurrency error, got %v", err)
	}
}

func TestScheduler_Execute_NeverExceedsConcurrency(t *testing.T) {
	for _, k := range []int{1, 2, 3, 8, 50} {
		t.Run(fmt.Sprintf("K=%d", k), func(t *testing.T) {
			base := t.TempDir()
			names := make([]string, 24)
			for i := range names {
				names[i] = fmt.Sprintf("repo-%02d", i)
			}
			// Half exist locally so both branches are exercised.
			if err := mkdirs(base, names[:12]...); err != nil {
				t.Fatalf("mkdirs: %v", err)
			}

			vcs := &fakeVCS{delay: 5 * time.Millisecond}
			failures := &OutcomeLog{}
			results := newTestScheduler(t, vcs, k, nil).Execute(context.Background(), newItems(base, names...), failures)

			if len(results) != len(names) {
				t.Fatalf("results = %d, want %d", len(results), len(names))
			}
			if got := int(vcs.maxActive.Load()); got > k || got < 1 {
				t.Fatalf("max concurrent invocations = %d, want 1..%d", got, k)
			}
			if got := vcs.active.Load(); got != 0 {
				t.Fatalf("active after Execute = %d, want 0", got)
			}
			if failures.Len() != 0 {
				t.Fatalf("unexpected failures: %v", failures.Entries())
			}

			clones, pulls := vcs.calls()
			if len(clones) != 12 || len(pulls) != 12 {
				t.Fatalf("clones=%d pulls=%d, want 12 each", len(clones), len(pulls))
			}
		})
	}
}

func TestScheduler_Execute_BranchesOnLocalPath(t *testing.T) {
	base := t.TempDir()
	if err := mkdirs(base, "present"); err != nil {
		t.Fatalf("mkdirs: %v", err)
	}

	vcs := &fakeVCS{}
	results := newTestScheduler(t, vcs, 2, nil).Execute(context.Background(), newItems(base, "present", "absent"), &OutcomeLog{})

	clones, pulls := vcs.calls()
	if !reflect.DeepEqual(clones, []string{"absent"}) {
		t.Fatalf("clones = %v, want [absent]", clones)
	}
	if !reflect.DeepEqual(pulls, []string{"present"}) {
		t.Fatalf("pulls = %v, want [present]", pulls)
	}

	byName := map[string]Outcome{}
	for _, r := range results {
		byName[r.Item.Name] = r
	}
	if got := byName["present"]; got.Action != ActionUpdate || !got.Succeeded() {
		t.Fatalf("present = %+v, want successful update", got)
	}
	if got := byName["absent"]; got.Action != ActionFetch || !got.Succeeded() {
		t.Fatalf("absent = %+v, want successful fetch", got)
	}
	if fi, err := os.Stat(byName["absent"].Item.LocalPath); err != nil || !fi.IsDir() {
		t.Fatalf("cloned directory missing: %v", err)
	}
}

func TestScheduler_Execute_FailureIsIsolated(t *testing.T) {
	base := t.TempDir()
	if err := mkdirs(base, "ok-1", "bad", "ok-2"); err != nil {
		t.Fatalf("mkdirs: %v", err)
	}

	vcs := &fakeVCS{failPull: map[string]string{"bad": "fatal: unable to access remote\n"}}
	failures := &OutcomeLog{}
	results := newTestScheduler(t, vcs, 1, nil).Execute(context.Background(), newItems(base, "ok-1", "bad", "ok-2", "new"), failures)

	entries := failures.Entries()
	if len(entries) != 1 {
		t.Fatalf("failures = %v, want exactly one", entries)
	}
	if entries[0] != "Failed to pull bad: fatal: unable to access remote" {
		t.Fatalf("failure message = %q", entries[0])
	}

	var failed []string
	for _, r := range results {
		if r.Succeeded() {
			continue
		}
		failed = append(failed, r.Item.Name)
		var serr *SyncError
		if !errors.As(r.Err, &serr) {
			t.Fatalf("expected *SyncError, got %T", r.Err)
		}
		if serr.Action != ActionUpdate {
			t.Fatalf("failed action = %q, want %q", serr.Action, ActionUpdate)
		}
	}
	if !reflect.DeepEqual(failed, []string{"bad"}) {
		t.Fatalf("failed = %v, want [bad]", failed)
	}

	clones, pulls := vcs.calls()
	sort.Strings(pulls)
	if !reflect.DeepEqual(pulls, []string{"bad", "ok-1", "ok-2"}) {
		t.Fatalf("pulls = %v", pulls)
	}
	if !reflect.DeepEqual(clones, []string{"new"}) {
		t.Fatalf("clones = %v", clones)
	}
}

func TestScheduler_Execute_EmptyBatch(t *testing.T) {
	vcs := &fakeVCS{}
	results := newTestScheduler(t, vcs, 3, nil).Execute(context.Background(), nil, nil)
	if len(results) != 0 {
		t.Fatalf("results = %v, want none", results)
	}
	if vcs.maxActive.Load() != 0 {
		t.Fatal("vcs should not have been called")
	}
}

func TestScheduler_Execute_CancelStopsOnlyWaitingTasks(t *testing.T) {
	base := t.TempDir()
	vcs := &fakeVCS{block: make(chan struct{}), started: make(chan string, 8)}
	rec := metrics.NewRecorder()
	s := newTestScheduler(t, vcs, 1, rec)

	ctx, cancel := context.WithCancel(context.Background())
	failures := &OutcomeLog{}
	done := make(chan []Outcome, 1)
	go func() {
		done <- s.Execute(ctx, newItems(base, "a", "b", "c", "d"), failures)
	}()

	running := <-vcs.started
	cancel()

	// The three waiting tasks give up; the running one is left alone.
	deadline := time.Now().Add(5 * time.Second)
	for failures.Len() != 3 {
		if time.Now().After(deadline) {
			t.Fatalf("waiting tasks did not give up: %v", failures.Entries())
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(vcs.block)

	var results []Outcome
	select {
	case results = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return")
	}

	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}
	for _, r := range results {
		if r.Item.Name == running {
			if r.Err != nil {
				t.Fatalf("running task failed: %v", r.Err)
			}
			continue
		}
		if r.Err == nil || !strings.Contains(r.Err.Error(), "not started") {
			t.Fatalf("%s: err = %v, want not started", r.Item.Name, r.Err)
		}
		if r.Action != ActionNone {
			t.Fatalf("%s: action = %q, want none", r.Item.Name, r.Action)
		}
	}
	for _, msg := range failures.Entries() {
		if !strings.HasPrefix(msg, "Failed to sync ") {
			t.Fatalf("failure message = %q", msg)
		}
	}

	// Every repository is counted, including those that never ran git.
	series, err := testutil.GatherAndCount(rec.Registry(), "orgsync_sync_operations_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if series != 2 { // fetch/true, none/false
		t.Fatalf("sync_operations_total series = %d, want 2", series)
	}
	fams, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range fams {
		if mf.GetName() != "orgsync_sync_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	if total != 4 {
		t.Fatalf("sync_operations_total = %v, want 4", total)
	}

	// The in-flight invocation never saw the cancellation.
	vcs.mu.Lock()
	defer vcs.mu.Unlock()
	if len(vcs.ctxErr) != 1 || vcs.ctxErr[0] != nil {
		t.Fatalf("in-flight ctx errors = %v, want [nil]", vcs.ctxErr)
	}
}

func TestScheduler_Execute_RecordsMetrics(t *testing.T) {
	base := t.TempDir()
	if err := mkdirs(base, "old", "broken"); err != nil {
		t.Fatalf("mkdirs: %v", err)
	}

	rec := metrics.NewRecorder()
	vcs := &fakeVCS{failPull: map[string]string{"broken": "boom"}}
	newTestScheduler(t, vcs, 2, rec).Execute(context.Background(), newItems(base, "old", "broken", "new"), &OutcomeLog{})

	out, err := testutil.GatherAndCount(rec.Registry(), "orgsync_sync_operations_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if out != 3 { // update/true, update/false, fetch/true
		t.Fatalf("sync_operations_total series = %d, want 3", out)
	}
}
