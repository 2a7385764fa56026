package engine

import (
	"errors"
	"fmt"
	"strings"

	"orgsync/internal/git"
)

// Action is the external operation a task chose for its WorkItem.
type Action string

const (
	// ActionNone marks a task that never reached the CHECK step.
	ActionNone   Action = ""
	ActionFetch  Action = "fetch"
	ActionUpdate Action = "update"
)

func (a Action) verb() string {
	switch a {
	case ActionFetch:
		return "clone"
	case ActionUpdate:
		return "pull"
	default:
		return "sync"
	}
}

// SyncError is the per-repository failure recorded in the OutcomeLog. It never
// propagates past the task that produced it.
type SyncError struct {
	Repo   string
	Action Action
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("Failed to %s %s: %s", e.Action.verb(), e.Repo, syncErrorDetail(e.Err))
}

func (e *SyncError) Unwrap() error { return e.Err }

// syncErrorDetail prefers the captured stderr of a failed git invocation.
func syncErrorDetail(err error) string {
	if err == nil {
		return "unknown error"
	}
	var cerr *git.CommandError
	if errors.As(err, &cerr) {
		if s := strings.TrimSpace(cerr.Stderr); s != "" {
			return s
		}
		return cerr.Err.Error()
	}
	return err.Error()
}
