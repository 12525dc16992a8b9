package project

import "github.com/standardbeagle/xref/internal/types"

// ToggleSuspendFile flips fileID's suspended bit and returns the new
// state. A suspended file is excluded from automatic re-indexing by
// dirty() (spec.md §3 SuspendedFiles, §4.5).
func (p *Project) ToggleSuspendFile(fileID types.FileID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suspended[fileID] {
		delete(p.suspended, fileID)
		return false
	}
	p.suspended[fileID] = true
	return true
}

// IsSuspended reports whether fileID is currently excluded from
// automatic indexing.
func (p *Project) IsSuspended(fileID types.FileID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended[fileID]
}

// ClearSuspendedFiles lifts the suspension on every file and returns how
// many were cleared.
func (p *Project) ClearSuspendedFiles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.suspended)
	p.suspended = make(map[types.FileID]bool)
	return n
}

// SuspendedFiles returns a snapshot of every currently suspended file.
func (p *Project) SuspendedFiles() map[types.FileID]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[types.FileID]bool, len(p.suspended))
	for f := range p.suspended {
		out[f] = true
	}
	return out
}
