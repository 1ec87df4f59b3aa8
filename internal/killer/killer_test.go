package killer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/oomkilld/oomkilld/internal/audit"
	"github.com/oomkilld/oomkilld/internal/killprim"
	"github.com/oomkilld/oomkilld/internal/procfs"
	"github.com/oomkilld/oomkilld/internal/selector"
	"github.com/oomkilld/oomkilld/internal/telemetry"
)

type fakeSelector struct {
	candidate selector.Candidate
	ok        bool
	err       error
	calls     int
}

func (f *fakeSelector) SelectCandidate() (selector.Candidate, bool, error) {
	f.calls++
	return f.candidate, f.ok, f.err
}

type fakeKiller struct {
	err error
}

func (f fakeKiller) Kill(procfs.PID) error { return f.err }

type recordingSink struct {
	mu     sync.Mutex
	events []audit.KillEvent
}

func (r *recordingSink) Record(_ context.Context, e audit.KillEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestWorker(sel candidateSelector, readProcess processReader, k killprim.Killer, sink audit.Sink) *worker {
	return &worker{
		cfg:         DefaultConfig(),
		selector:    sel,
		readProcess: readProcess,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		killer:      k,
		audit:       sink,
		telemetry:   telemetry.NewNoop(),
		status:      &atomicStatus{},
	}
}

func TestWorker_Iterate_SuccessfulKillUpdatesStatusAndAudit(t *testing.T) {
	sel := &fakeSelector{
		candidate: selector.Candidate{
			Process: procfs.ProcessInfo{PID: 42, Name: "victim", Mem: procfs.ProcessMemInfo{VMRSS: 1 << 20}},
			Score:   0.9,
		},
		ok: true,
	}
	readProcess := func(procfs.PID) (procfs.ProcessInfo, error) {
		return procfs.ProcessInfo{PID: 42, Name: "victim", Mem: procfs.ProcessMemInfo{VMRSS: 1 << 20}}, nil
	}
	sink := &recordingSink{}
	w := newTestWorker(sel, readProcess, fakeKiller{}, sink)

	w.iterate(context.Background())

	status := w.status.snapshot()
	if status.TotalKills != 1 {
		t.Fatalf("TotalKills = %d, want 1", status.TotalKills)
	}
	if status.TotalMemoryReclaimed != 1<<20 {
		t.Fatalf("TotalMemoryReclaimed = %d, want %d", status.TotalMemoryReclaimed, 1<<20)
	}
	if !status.HasKilled {
		t.Fatal("expected HasKilled to be true")
	}
	if sink.count() != 1 {
		t.Fatalf("audit sink recorded %d events, want 1", sink.count())
	}
}

func TestWorker_Iterate_NoCandidateLeavesStatusUntouched(t *testing.T) {
	sel := &fakeSelector{ok: false}
	w := newTestWorker(sel, procfs.ReadProcess, fakeKiller{}, audit.NewMemorySink(4))

	w.iterate(context.Background())

	if w.status.snapshot().TotalKills != 0 {
		t.Fatal("expected no kill to be recorded when selector returns no candidate")
	}
}

func TestWorker_Iterate_ProcessNotFoundOnReReadSkipsWithoutStats(t *testing.T) {
	sel := &fakeSelector{
		candidate: selector.Candidate{Process: procfs.ProcessInfo{PID: 99}},
		ok:        true,
	}
	readProcess := func(procfs.PID) (procfs.ProcessInfo, error) {
		return procfs.ProcessInfo{}, procfs.ErrProcessNotFound
	}
	w := newTestWorker(sel, readProcess, fakeKiller{}, audit.NewMemorySink(4))

	w.iterate(context.Background())

	if w.status.snapshot().TotalKills != 0 {
		t.Fatal("a victim that vanished before re-read must not count as a kill")
	}
}

func TestWorker_Iterate_PermissionDeniedDoesNotUpdateStats(t *testing.T) {
	sel := &fakeSelector{
		candidate: selector.Candidate{Process: procfs.ProcessInfo{PID: 1}},
		ok:        true,
	}
	readProcess := func(procfs.PID) (procfs.ProcessInfo, error) {
		return procfs.ProcessInfo{PID: 1, Name: "init"}, nil
	}
	w := newTestWorker(sel, readProcess, fakeKiller{err: procfs.ErrPermissionDenied}, audit.NewMemorySink(4))

	w.iterate(context.Background())

	if w.status.snapshot().TotalKills != 0 {
		t.Fatal("permission-denied kill attempts must not count as a kill")
	}
}

func TestWorker_Iterate_RateLimiterSkipsSecondKillWithinInterval(t *testing.T) {
	sel := &fakeSelector{
		candidate: selector.Candidate{Process: procfs.ProcessInfo{PID: 42, Mem: procfs.ProcessMemInfo{VMRSS: 100}}},
		ok:        true,
	}
	readProcess := func(procfs.PID) (procfs.ProcessInfo, error) {
		return procfs.ProcessInfo{PID: 42, Mem: procfs.ProcessMemInfo{VMRSS: 100}}, nil
	}
	w := newTestWorker(sel, readProcess, fakeKiller{}, audit.NewMemorySink(4))
	w.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	w.iterate(context.Background())
	w.iterate(context.Background())

	if got := w.status.snapshot().TotalKills; got != 1 {
		t.Fatalf("TotalKills = %d, want 1 (second iteration should be rate-limited)", got)
	}
}

func TestHandle_StartStopIdempotent(t *testing.T) {
	h := New(DefaultConfig(), SysInfo{TicksPerSecond: 100}, audit.NewMemorySink(4), telemetry.NewNoop(), fakeKiller{})

	h.Start()
	h.Start() // no-op, must not panic or spawn a second worker
	status1 := h.GetStatus()
	if status1.RunningSinceUnixNano == 0 {
		t.Fatal("expected RunningSince to be set after Start")
	}

	h.Stop()
	h.Stop() // idempotent
}

func TestHandle_GetStatusSafeDuringConcurrentRun(t *testing.T) {
	h := New(DefaultConfig(), SysInfo{TicksPerSecond: 100}, audit.NewMemorySink(4), telemetry.NewNoop(), fakeKiller{})
	h.cfg.CheckInterval = time.Millisecond

	h.Start()
	defer h.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = h.GetStatus()
		}
	}()
	wg.Wait()
}

func TestWorker_Iterate_SelectorErrorConsultsSelectorOnce(t *testing.T) {
	sel := &fakeSelector{err: errors.New("boom")}
	w := newTestWorker(sel, procfs.ReadProcess, fakeKiller{}, audit.NewMemorySink(4))
	w.iterate(context.Background())
	if sel.calls != 1 {
		t.Fatal("expected selector to be consulted exactly once")
	}
}
