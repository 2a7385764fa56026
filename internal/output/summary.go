package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

const (
	summaryHeader  = "Summary of all errors:"
	completeMarker = "Repository synchronization completed"
)

// Summary is the end-of-run report.
type Summary struct {
	// Errors holds OutcomeLog entries in append order.
	Errors  []string
	Cloned  int
	Updated int
	Failed  int
}

// WriteSummary prints the collected failures (if any), a tally line, and the
// completion marker. The marker is printed in every case.
func WriteSummary(w io.Writer, s Summary) error {
	if len(s.Errors) > 0 {
		header := color.New(color.FgRed, color.Bold)
		if _, err := header.Fprintln(w, summaryHeader); err != nil {
			return err
		}
		for _, msg := range s.Errors {
			if _, err := fmt.Fprintf(w, "  %s\n", msg); err != nil {
				return err
			}
		}
	}

	if _, err := fmt.Fprintf(w, "cloned=%d updated=%d failed=%d\n", s.Cloned, s.Updated, s.Failed); err != nil {
		return err
	}

	marker := color.New(color.FgGreen)
	if s.Failed > 0 {
		marker = color.New(color.FgYellow)
	}
	if _, err := marker.Fprintln(w, completeMarker); err != nil {
		return err
	}
	return flushIfPossible(w)
}

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
