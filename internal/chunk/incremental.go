package chunk

import (
	"log/slog"
)

// DiffType classifies a chunk's change relative to a prior snapshot.
type DiffType string

const (
	DiffUnchanged  DiffType = "UNCHANGED"
	DiffMoved      DiffType = "MOVED"
	DiffMovedDrift DiffType = "MOVED+DRIFT"
	DiffModified   DiffType = "MODIFIED"
	DiffAdded      DiffType = "ADDED"
	DiffDeleted    DiffType = "DELETED"
	DiffRenamed    DiffType = "RENAMED"
)

// SpanDriftThreshold is the default number of lines a chunk may move from
// its original span before being marked drifted.
const SpanDriftThreshold = 10

// RefreshResult groups the outcome of one incremental refresh pass.
type RefreshResult struct {
	Added   []*Chunk
	Updated []*Chunk
	Deleted []*Chunk
	Renamed []RenameEvent
	Drifted []*Chunk
}

// RenameEvent carries the old id so callers can remap references.
type RenameEvent struct {
	OldID string
	New   *Chunk
}

// Hooks are optional callbacks invoked during a refresh to let callers
// invalidate downstream summary caches and importance scores without
// blocking the core refresh.
type Hooks struct {
	OnChunkDrifted func(c *Chunk)
	OnChunkRenamed func(oldID string, newChunk *Chunk)
	OnChunkModified func(c *Chunk)
}

// key identifies a chunk across snapshots for comparison purposes.
type key struct {
	filePath string
	fqn      string
	kind     Kind
}

// Refresher applies a change set of new chunks against a previous
// snapshot's chunks to produce a RefreshResult.
type Refresher struct {
	driftThreshold int
	logger         *slog.Logger
}

// NewRefresher creates a refresher with the given drift threshold (default
// SpanDriftThreshold when 0).
func NewRefresher(driftThreshold int, logger *slog.Logger) *Refresher {
	if driftThreshold <= 0 {
		driftThreshold = SpanDriftThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{driftThreshold: driftThreshold, logger: logger}
}

// Refresh compares prevChunks to newChunks and classifies every chunk,
// applying hooks as appropriate. newChunks' OriginalStartLine/EndLine are
// overwritten in place to carry forward the first-ever span for chunks
// that survive unchanged, moved, or drifted (never for MODIFIED or ADDED,
// which start a fresh original span at their current position).
func (r *Refresher) Refresh(prevChunks, newChunks []*Chunk, commit string, hooks *Hooks) *RefreshResult {
	if hooks == nil {
		hooks = &Hooks{}
	}
	result := &RefreshResult{}

	prevByKey := make(map[key]*Chunk, len(prevChunks))
	for _, c := range prevChunks {
		prevByKey[key{c.FilePath, c.FQN, c.Kind}] = c
	}
	newByKey := make(map[key]*Chunk, len(newChunks))
	for _, c := range newChunks {
		newByKey[key{c.FilePath, c.FQN, c.Kind}] = c
	}

	matchedPrev := make(map[key]bool)

	for k, newC := range newByKey {
		prevC, existed := prevByKey[k]
		if !existed {
			continue // handled in the ADDED/RENAMED pass below
		}
		matchedPrev[k] = true
		r.classifyExisting(prevC, newC, commit, result, hooks)
	}

	var unmatchedNew []*Chunk
	var unmatchedOld []*Chunk
	for k, c := range newByKey {
		if !matchedPrev[k] {
			unmatchedNew = append(unmatchedNew, c)
		}
	}
	for k, c := range prevByKey {
		if !matchedPrev[k] {
			unmatchedOld = append(unmatchedOld, c)
		}
	}

	r.resolveRenamesAndAddsDeletes(unmatchedOld, unmatchedNew, commit, result, hooks)

	return result
}

func (r *Refresher) classifyExisting(prevC, newC *Chunk, commit string, result *RefreshResult, hooks *Hooks) {
	newC.OriginalStartLine = prevC.OriginalStartLine
	newC.OriginalEndLine = prevC.OriginalEndLine
	newC.Version = prevC.Version

	sameHash := newC.ContentHash == prevC.ContentHash
	sameSpan := newC.StartLine == prevC.StartLine && newC.EndLine == prevC.EndLine

	switch {
	case sameHash && sameSpan:
		// UNCHANGED: copy by reference semantics, version untouched.
		return
	case sameHash && !sameSpan:
		drift := abs(newC.StartLine - newC.OriginalStartLine)
		newC.Version = prevC.Version + 1
		newC.LastIndexedCommit = commit
		result.Updated = append(result.Updated, newC)
		if drift > r.driftThreshold {
			result.Drifted = append(result.Drifted, newC)
			if hooks.OnChunkDrifted != nil {
				hooks.OnChunkDrifted(newC)
			}
		}
	default:
		// MODIFIED: content changed: a fresh original span starts now.
		newC.OriginalStartLine = newC.StartLine
		newC.OriginalEndLine = newC.EndLine
		newC.Version = prevC.Version + 1
		newC.LastIndexedCommit = commit
		result.Updated = append(result.Updated, newC)
		if hooks.OnChunkModified != nil {
			hooks.OnChunkModified(newC)
		}
	}
}

// resolveRenamesAndAddsDeletes pairs unmatched old/new chunks that share a
// content hash and file path but differ in FQN as renames; everything else
// is a plain ADDED or DELETED.
func (r *Refresher) resolveRenamesAndAddsDeletes(unmatchedOld, unmatchedNew []*Chunk, commit string, result *RefreshResult, hooks *Hooks) {
	byHashAndFile := make(map[string][]*Chunk)
	for _, old := range unmatchedOld {
		k := old.FilePath + "|" + old.ContentHash
		byHashAndFile[k] = append(byHashAndFile[k], old)
	}

	consumedOld := make(map[string]bool)
	for _, newC := range unmatchedNew {
		k := newC.FilePath + "|" + newC.ContentHash
		candidates := byHashAndFile[k]
		var renamedFrom *Chunk
		for _, c := range candidates {
			if !consumedOld[c.ChunkID] {
				renamedFrom = c
				break
			}
		}
		if renamedFrom != nil {
			consumedOld[renamedFrom.ChunkID] = true
			newC.OriginalStartLine = newC.StartLine
			newC.OriginalEndLine = newC.EndLine
			newC.Version = renamedFrom.Version + 1
			newC.LastIndexedCommit = commit
			result.Deleted = append(result.Deleted, softDelete(renamedFrom))
			result.Renamed = append(result.Renamed, RenameEvent{OldID: renamedFrom.ChunkID, New: newC})
			if hooks.OnChunkRenamed != nil {
				hooks.OnChunkRenamed(renamedFrom.ChunkID, newC)
			}
			continue
		}
		newC.Version = 1
		newC.LastIndexedCommit = commit
		result.Added = append(result.Added, newC)
	}

	for _, old := range unmatchedOld {
		if !consumedOld[old.ChunkID] {
			result.Deleted = append(result.Deleted, softDelete(old))
		}
	}
}

// softDelete marks a chunk deleted while incrementing its version so
// deletions remain visible to consumers tailing version history.
func softDelete(c *Chunk) *Chunk {
	deleted := *c
	deleted.IsDeleted = true
	deleted.Version = c.Version + 1
	return &deleted
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
