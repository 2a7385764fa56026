package engine

import (
	"math/rand/v2"
	"path/filepath"
)

// WorkItem is one organization repository to synchronize. It is immutable
// once produced by a Lister.
type WorkItem struct {
	Name          string
	RemoteAddress string
	// LocalPath is BasePath/Name.
	LocalPath string
}

func NewWorkItem(basePath, name, remote string) WorkItem {
	return WorkItem{
		Name:          name,
		RemoteAddress: remote,
		LocalPath:     filepath.Join(basePath, name),
	}
}

// BasePath is the directory the repository is cloned into.
func (w WorkItem) BasePath() string {
	return filepath.Dir(w.LocalPath)
}

// Batch is the full set of WorkItems for a single run.
type Batch []WorkItem

// Shuffle randomizes dispatch order in place. This only spreads load across
// the remote; nothing depends on the resulting order.
func (b Batch) Shuffle() {
	rand.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
}

// Names returns item names in batch order.
func (b Batch) Names() []string {
	out := make([]string, len(b))
	for i, w := range b {
		out[i] = w.Name
	}
	return out
}
