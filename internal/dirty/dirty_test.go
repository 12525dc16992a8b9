package dirty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/xref/internal/depgraph"
	"github.com/standardbeagle/xref/internal/jobindex"
	"github.com/standardbeagle/xref/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("time.Sleep"),
	)
}

// scenario A of spec.md §8: graph a.c -> h1.h -> h2.h; dirty(h2.h) must
// (after debounce) start jobs for the transitive closure filtered to
// files with a known Source.
func TestScenarioA_DirtyPropagation(t *testing.T) {
	const aC, h1, h2 types.FileID = 1, 2, 3

	g := depgraph.New()
	g.Link(aC, h1)
	g.Link(h1, h2)

	knownSource := func(f types.FileID) bool { return f == aC }
	suspended := func(types.FileID) bool { return false }

	started := make(chan map[types.FileID]bool, 1)
	start := func(files map[types.FileID]bool, jt JobType) []*jobindex.Job {
		assert.Equal(t, TypeDirty, jt)
		started <- files
		return nil
	}

	s := New(g, 10, knownSource, suspended, start)
	s.Dirty(h2)

	select {
	case files := <-started:
		assert.Equal(t, map[types.FileID]bool{aC: true}, files)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced dirty jobs")
	}
}

func TestDirty_debounceCoalescesRapidSignals(t *testing.T) {
	const f1, f2 types.FileID = 1, 2
	g := depgraph.New()

	var calls int
	started := make(chan map[types.FileID]bool, 4)
	start := func(files map[types.FileID]bool, _ JobType) []*jobindex.Job {
		calls++
		started <- files
		return nil
	}
	knownSource := func(types.FileID) bool { return true }

	s := New(g, 50, knownSource, func(types.FileID) bool { return false }, start)
	s.Dirty(f1)
	s.Dirty(f2) // arrives within the debounce window, re-arms the timer

	select {
	case files := <-started:
		assert.Equal(t, 1, calls, "rapid dirty signals must coalesce into a single fire")
		assert.Equal(t, map[types.FileID]bool{f1: true, f2: true}, files)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced jobs")
	}
}

func TestDirty_suspendedFilesFilteredOut(t *testing.T) {
	const f types.FileID = 1
	g := depgraph.New()

	started := make(chan map[types.FileID]bool, 1)
	s := New(g, 10, func(types.FileID) bool { return true }, func(types.FileID) bool { return true },
		func(files map[types.FileID]bool, _ JobType) []*jobindex.Job { started <- files; return nil })

	s.Dirty(f)
	s.Flush()

	select {
	case files := <-started:
		t.Fatalf("suspended file must not start a job, got %v", files)
	case <-time.After(100 * time.Millisecond):
		// expected: no call
	}
}

func TestFlush_firesImmediately(t *testing.T) {
	const f types.FileID = 5
	g := depgraph.New()
	started := make(chan map[types.FileID]bool, 1)
	s := New(g, 10000, func(types.FileID) bool { return true }, func(types.FileID) bool { return false },
		func(files map[types.FileID]bool, _ JobType) []*jobindex.Job { started <- files; return nil })

	s.Dirty(f)
	s.Flush()

	select {
	case files := <-started:
		assert.True(t, files[f])
	case <-time.After(1 * time.Second):
		t.Fatal("Flush should fire synchronously without waiting out the debounce")
	}
}

func TestReindexMatching(t *testing.T) {
	const a, b types.FileID = 1, 2
	g := depgraph.New()
	g.Link(b, a) // b includes a, so b depends on a

	var got map[types.FileID]bool
	s := New(g, 10, func(types.FileID) bool { return true }, func(types.FileID) bool { return false },
		func(files map[types.FileID]bool, jt JobType) []*jobindex.Job {
			got = files
			require.Equal(t, TypeReindex, jt)
			return nil
		})

	wait := make(chan struct{})
	n := s.ReindexMatching(map[types.FileID]bool{a: true}, wait)

	<-wait
	assert.Equal(t, 2, n) // a plus its dependent b
	assert.True(t, got[a])
	assert.True(t, got[b])
}

// TestReindexMatching_waitBlocksUntilJobsActuallyFinish guards against
// closing the wait channel on mere submission: the started job is left
// running until after this goroutine confirms wait has not yet fired.
func TestReindexMatching_waitBlocksUntilJobsActuallyFinish(t *testing.T) {
	const a types.FileID = 1
	g := depgraph.New()

	job := jobindex.NewJob(types.NewSource("a.c", nil, ""))
	s := New(g, 10, func(types.FileID) bool { return true }, func(types.FileID) bool { return false },
		func(map[types.FileID]bool, JobType) []*jobindex.Job { return []*jobindex.Job{job} })

	wait := make(chan struct{})
	s.ReindexMatching(map[types.FileID]bool{a: true}, wait)

	select {
	case <-wait:
		t.Fatal("wait closed before the started job finished")
	case <-time.After(50 * time.Millisecond):
		// expected: still running
	}

	job.MarkFinished()

	select {
	case <-wait:
	case <-time.After(2 * time.Second):
		t.Fatal("wait never closed after the job finished")
	}
}

func TestRelease_dropsPendingWithoutStartingJobs(t *testing.T) {
	const f types.FileID = 9
	g := depgraph.New()
	called := false
	s := New(g, 20, func(types.FileID) bool { return true }, func(types.FileID) bool { return false },
		func(map[types.FileID]bool, JobType) []*jobindex.Job { called = true; return nil })

	s.Dirty(f)
	s.Release(map[types.FileID]bool{f: true})
	time.Sleep(60 * time.Millisecond)
	assert.False(t, called)
}
