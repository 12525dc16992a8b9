// Package jobindex implements C4's bookkeeping: the active-job table and
// the visited-file claims. Merging a finished job's IndexResult into
// project state happens in internal/project (onJobFinished). Job
// supersession and the visited-file-claim protocol are grounded on the
// teacher's internal/core.IndexCoordinator (state registry + lock
// shape) and internal/indexing/index_locks.go (retry/backoff idiom,
// reused here for nothing fancier than documenting the same "main loop
// submits, workers report back" handoff).
package jobindex

import (
	"sync"

	"github.com/standardbeagle/xref/internal/types"
)

// State is where a Job sits in its lifecycle.
type State int

const (
	Pending State = iota
	Running
	Aborted
	Complete
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Aborted:
		return "aborted"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Job is one in-flight unit of indexer backend work, keyed by its
// Source's key.
type Job struct {
	Source types.Source

	mu      sync.Mutex
	state   State
	visited map[types.FileID]bool
	cancel  chan struct{}
	done    chan struct{}
}

// NewJob creates a Pending job for src.
func NewJob(src types.Source) *Job {
	return &Job{
		Source:  src,
		state:   Pending,
		visited: make(map[types.FileID]bool),
		cancel:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SetState transitions the job's lifecycle state.
func (j *Job) SetState(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
}

// State returns the job's current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Cancel signals cooperative cancellation. The job is expected to
// eventually observe Cancelled() and call ReleaseFileIds for whatever it
// has claimed, per spec.md §5 ("no forced termination").
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	select {
	case <-j.cancel:
		// already cancelled
	default:
		close(j.cancel)
	}
}

// Cancelled returns a channel that is closed once Cancel has been
// called, suitable for a select in the backend's run loop.
func (j *Job) Cancelled() <-chan struct{} {
	return j.cancel
}

// MarkFinished signals that this job has finished running and its
// result has already been merged into project state or discarded as
// superseded. Callers synchronously awaiting a batch of jobs (spec.md
// §4.5 reindex()'s wait connection) block on Done rather than on
// submission alone.
func (j *Job) MarkFinished() {
	j.mu.Lock()
	defer j.mu.Unlock()
	select {
	case <-j.done:
	default:
		close(j.done)
	}
}

// Done returns a channel that is closed once MarkFinished has been
// called.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) addVisited(f types.FileID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.visited[f] = true
}

// Visited returns the set of files this job has claimed.
func (j *Job) Visited() map[types.FileID]bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[types.FileID]bool, len(j.visited))
	for f := range j.visited {
		out[f] = true
	}
	return out
}

// Registry is the active-job table (mActiveJobs) plus the VisitedFiles
// claim table, both guarded by the single dedicated mutex the spec
// carves out for cross-goroutine state (spec.md §5/§9: "file-scoped
// mutex only" — this registry's mutex must never be widened to cover
// the dependency graph or sources).
type Registry struct {
	mu      sync.Mutex
	active  map[uint64]*Job        // sourceKey -> job
	visited map[types.FileID]string // fileID -> path, claimed by some active job

	// onStart is invoked (outside the lock) on every Index call, after the
	// job is installed for its source key; it is how the caller actually spawns
	// the backend's goroutine.
	onStart func(job *Job)
}

// NewRegistry creates an empty job registry.
func NewRegistry(onStart func(job *Job)) *Registry {
	return &Registry{
		active:  make(map[uint64]*Job),
		visited: make(map[types.FileID]string),
		onStart: onStart,
	}
}

// Index installs job as the active job for its source key, cancelling
// and discarding any job that was already active under that key (it is
// now superseded — spec.md §4.4/§5).
func (r *Registry) Index(job *Job) {
	r.mu.Lock()
	old, hadOld := r.active[job.Source.Key]
	r.active[job.Source.Key] = job
	r.mu.Unlock()

	if hadOld {
		old.Cancel()
	}
	if r.onStart != nil {
		r.onStart(job)
	}
}

// Active returns the currently active job for a source key, if any.
func (r *Registry) Active(sourceKey uint64) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.active[sourceKey]
	return j, ok
}

// IsActiveJob reports whether key names a live job, mirroring RTags'
// Project::isActiveJob (a zero key is never active).
func (r *Registry) IsActiveJob(key uint64) bool {
	if key == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key]
	return ok
}

// IsIndexing reports whether any job is currently active.
func (r *Registry) IsIndexing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active) > 0
}

// VisitFile attempts to claim first-visit rights on fileID for the job
// running under sourceKey. It returns true (and records path) the first
// time any job claims fileID; subsequent callers for the same fileID get
// false until the claim is released. This is how two concurrent jobs
// avoid re-walking the same header (spec.md §4.4).
func (r *Registry) VisitFile(fileID types.FileID, path string, sourceKey uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, claimed := r.visited[fileID]; claimed {
		return false
	}
	r.visited[fileID] = path
	if job, ok := r.active[sourceKey]; ok {
		job.addVisited(fileID)
	}
	return true
}

// ReleaseFileIds drops every fileID's claim, e.g. when a job aborts.
func (r *Registry) ReleaseFileIds(ids map[types.FileID]bool) {
	if len(ids) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for f := range ids {
		delete(r.visited, f)
	}
}

// VisitedFiles returns a snapshot of every currently claimed file.
func (r *Registry) VisitedFiles() map[types.FileID]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[types.FileID]string, len(r.visited))
	for f, p := range r.visited {
		out[f] = p
	}
	return out
}

// Remove drops job from the active table if it is still the job
// installed under its source key (it may already have been superseded,
// in which case this is a no-op — the superseding job owns the slot).
func (r *Registry) Remove(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.active[job.Source.Key]; ok && cur == job {
		delete(r.active, job.Source.Key)
	}
}

// ActiveCount returns the number of jobs currently active.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
