// Package dirty implements C5: the debounced set of files awaiting
// re-index, plus the synchronous reindex/remove variants of spec.md
// §4.5. The debounce timer is grounded on the teacher's
// internal/indexing/debounced_rebuilder.go (time.AfterFunc reset +
// pending-set swap under mutex), generalized from "rebuild everything"
// to "compute the transitive dependency closure of every pending file
// and start jobs for it".
package dirty

import (
	"sync"
	"time"

	"github.com/standardbeagle/xref/internal/debug"
	"github.com/standardbeagle/xref/internal/depgraph"
	"github.com/standardbeagle/xref/internal/jobindex"
	"github.com/standardbeagle/xref/internal/types"
)

// JobType distinguishes why a set of files is being (re-)indexed, for
// logging/diagnostics; it carries no behavioral difference in this
// reference implementation.
type JobType int

const (
	TypeDirty JobType = iota
	TypeReindex
	TypeInit
)

// Set holds mPendingDirtyFiles and the single debounce timer that
// flushes it, per spec.md §4.5. The pending set and timer are guarded
// by Set's own mutex: Dirty may be called from any goroutine, and fire
// runs on the timer's goroutine.
type Set struct {
	mu       sync.Mutex
	pending  map[types.FileID]bool
	timer    *time.Timer
	debounce time.Duration

	// graph/knownSource/suspended/start are the collaborators Set needs
	// to turn a raw dirty signal into a job submission, wired by the
	// owning *project.Project at construction time.
	graph       *depgraph.Graph
	knownSource func(types.FileID) bool
	suspended   func(types.FileID) bool
	start       func(files map[types.FileID]bool, jt JobType) []*jobindex.Job
}

// New creates a dirty set with the given debounce interval. debounceMs
// <= 0 falls back to 50ms, matching the teacher's default.
func New(graph *depgraph.Graph, debounceMs int, knownSource, suspended func(types.FileID) bool, start func(map[types.FileID]bool, JobType) []*jobindex.Job) *Set {
	if debounceMs <= 0 {
		debounceMs = 50
	}
	return &Set{
		pending:     make(map[types.FileID]bool),
		debounce:    time.Duration(debounceMs) * time.Millisecond,
		graph:       graph,
		knownSource: knownSource,
		suspended:   suspended,
		start:       start,
	}
}

// Dirty inserts f into the pending set and (re)arms the debounce timer.
// Per spec.md §5, a dirty signal arriving while a job for f is already
// active must not be lost: it stays pending until the next timer fire,
// which starts a fresh job for f (superseding any job still active
// under the same source key).
func (s *Set) Dirty(f types.FileID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[f] = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.fire)
	debug.LogIndexing("dirty: marked file %d (pending=%d)", f, len(s.pending))
}

// fire computes the transitive closure of every pending file and starts
// dirty jobs for it, then clears the pending set.
func (s *Set) fire() {
	s.mu.Lock()
	files := s.pending
	s.pending = make(map[types.FileID]bool)
	s.timer = nil
	s.mu.Unlock()

	if len(files) == 0 {
		return
	}
	closure := s.closure(files)
	if len(closure) > 0 {
		s.start(closure, TypeDirty)
	}
}

// waitForJobs closes done once every job in jobs has finished running.
// A nil done is a no-op (the caller isn't waiting on this batch).
func waitForJobs(jobs []*jobindex.Job, done chan struct{}) {
	if done == nil {
		return
	}
	go func() {
		for _, job := range jobs {
			<-job.Done()
		}
		close(done)
	}()
}

// closure computes D = union(dependencies(f, DependsOnArg) ∪ {f}) for
// every f in files, filtered to files with a known Source that are not
// suspended (spec.md §4.5).
func (s *Set) closure(files map[types.FileID]bool) map[types.FileID]bool {
	out := make(map[types.FileID]bool)
	for f := range files {
		out[f] = true
		for dep := range s.graph.Dependencies(f, depgraph.DependsOnArg) {
			out[dep] = true
		}
	}
	for f := range out {
		if s.suspended != nil && s.suspended(f) {
			delete(out, f)
			continue
		}
		if s.knownSource != nil && !s.knownSource(f) {
			delete(out, f)
		}
	}
	return out
}

// Pending returns a snapshot of the currently pending file set, for
// diagnostics and tests.
func (s *Set) Pending() map[types.FileID]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.FileID]bool, len(s.pending))
	for f := range s.pending {
		out[f] = true
	}
	return out
}

// Flush synchronously fires any pending timer, for tests that need a
// deterministic point instead of waiting out the debounce interval.
func (s *Set) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.fire()
}

// Stop cancels any armed timer, e.g. on project shutdown.
func (s *Set) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// ReindexMatching is the synchronous variant of spec.md §4.5's reindex:
// it computes the same closure over an explicit file set (already
// filtered by path match, by the caller) and starts jobs immediately,
// returning the number of files enqueued. done, if non-nil, is closed
// once every job started by this call has actually finished running
// (spec.md §5 concurrency suspension point (c): "synchronous reindex
// awaiting all jobs for the caller's wait connection"), not merely once
// submission returns.
func (s *Set) ReindexMatching(matched map[types.FileID]bool, done chan struct{}) int {
	closureSet := s.closure(matched)
	var jobs []*jobindex.Job
	if len(closureSet) > 0 {
		jobs = s.start(closureSet, TypeReindex)
	}
	waitForJobs(jobs, done)
	return len(closureSet)
}

// Armed reports whether the debounce timer is currently waiting to
// fire, used by the job-merge step to decide whether it's safe to save
// immediately (spec.md §4.4 step 7, §9 "dirty/save race").
func (s *Set) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// SetGraph rebinds the dependency graph Set computes closures against,
// used after Project.Init() replaces the graph with one loaded from
// disk.
func (s *Set) SetGraph(g *depgraph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = g
}

// Release drops ids from the pending set without starting jobs for
// them, used when a source is removed (spec.md §4.5 remove()).
func (s *Set) Release(ids map[types.FileID]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for f := range ids {
		delete(s.pending, f)
	}
}
