package project

import "github.com/standardbeagle/xref/internal/types"

// Watch registers dir for events relevant to mode, matching spec.md
// §4.6's watch(dir, mode). A no-op (returns nil) if watching was never
// enabled for this project.
func (p *Project) Watch(dir string, mode types.WatchMode) error {
	if p.watchTbl == nil {
		return nil
	}
	return p.watchTbl.Watch(dir, mode)
}

// Unwatch clears mode's bits from dir, per spec.md §4.6's unwatch.
func (p *Project) Unwatch(dir string, mode types.WatchMode) {
	if p.watchTbl == nil {
		return
	}
	p.watchTbl.Unwatch(dir, mode)
}

// ClearWatch clears modeMask's bits across every watched path.
func (p *Project) ClearWatch(modeMask types.WatchMode) {
	if p.watchTbl == nil {
		return
	}
	p.watchTbl.ClearWatch(modeMask)
}

// WatchedPaths returns a snapshot of every watched directory and its
// current bitset.
func (p *Project) WatchedPaths() map[string]types.WatchMode {
	if p.watchTbl == nil {
		return map[string]types.WatchMode{}
	}
	return p.watchTbl.WatchedPaths()
}
