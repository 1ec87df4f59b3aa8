// Package killer owns the daemon's running lifecycle: a background
// worker that repeatedly checks pressure, selects a victim, and
// enforces the kill, plus a lock-free status an external caller can poll
// from any goroutine.
package killer

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/oomkilld/oomkilld/internal/audit"
	"github.com/oomkilld/oomkilld/internal/killprim"
	"github.com/oomkilld/oomkilld/internal/procfs"
	"github.com/oomkilld/oomkilld/internal/pressure"
	"github.com/oomkilld/oomkilld/internal/scorer"
	"github.com/oomkilld/oomkilld/internal/selector"
	"github.com/oomkilld/oomkilld/internal/selector/systemproc"
	"github.com/oomkilld/oomkilld/internal/telemetry"
)

// Config mirrors spec.md §3's KillerConfig.
type Config struct {
	Selector        selector.Config
	Pressure        pressure.Thresholds
	SystemProcess   systemproc.Config
	MinKillInterval time.Duration
	CheckInterval   time.Duration
}

// DefaultConfig matches spec.md §3: 5s min kill interval, 100ms check
// interval.
func DefaultConfig() Config {
	return Config{
		Selector:        selector.DefaultConfig(),
		Pressure:        pressure.DefaultThresholds(),
		SystemProcess:   systemproc.DefaultConfig(),
		MinKillInterval: 5 * time.Second,
		CheckInterval:   100 * time.Millisecond,
	}
}

// Status is a lock-free snapshot of the Worker's running statistics,
// matching spec.md §3's KillerStatus. Reads never race the worker: all
// fields are updated with atomic stores and read with atomic loads.
type Status struct {
	LastKillTimeUnixNano int64
	HasKilled            bool
	TotalKills           uint64
	TotalMemoryReclaimed uint64
	RunningSinceUnixNano int64
}

type atomicStatus struct {
	lastKillTimeUnixNano atomic.Int64
	hasKilled            atomic.Bool
	totalKills           atomic.Uint64
	totalMemoryReclaimed atomic.Uint64
	runningSinceUnixNano atomic.Int64
}

func (s *atomicStatus) snapshot() Status {
	return Status{
		LastKillTimeUnixNano: s.lastKillTimeUnixNano.Load(),
		HasKilled:            s.hasKilled.Load(),
		TotalKills:           s.totalKills.Load(),
		TotalMemoryReclaimed: s.totalMemoryReclaimed.Load(),
		RunningSinceUnixNano: s.runningSinceUnixNano.Load(),
	}
}

// Handle is the immutable, externally-visible control surface for the
// daemon. It owns no mutable decision state itself — only a status
// snapshot and a stop mechanism — so GetStatus() never contends with the
// Worker goroutine. Start() constructs a fresh Worker every time,
// avoiding the original source's flaw of rebuilding an entire new
// component graph from inside the spawned thread instead of reusing the
// caller's own state.
type Handle struct {
	cfg       Config
	sysinfo   SysInfo
	audit     audit.Sink
	telemetry *telemetry.Provider
	killer    killprim.Killer

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	status  *atomicStatus
}

// SysInfo supplies host constants the Scorer needs.
type SysInfo struct {
	TicksPerSecond float64
}

// New builds a Handle in the Stopped state.
func New(cfg Config, sysinfo SysInfo, auditSink audit.Sink, telemetryProvider *telemetry.Provider, killPrimitive killprim.Killer) *Handle {
	if auditSink == nil {
		auditSink = audit.NewMemorySink(256)
	}
	if telemetryProvider == nil {
		telemetryProvider = telemetry.NewNoop()
	}
	return &Handle{
		cfg:       cfg,
		sysinfo:   sysinfo,
		audit:     auditSink,
		telemetry: telemetryProvider,
		killer:    killPrimitive,
		status:    &atomicStatus{},
	}
}

// Start moves Stopped→Running and spawns the worker goroutine. Calling
// Start on an already-running Handle is a no-op success, matching
// spec.md §4.E.
func (h *Handle) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.running = true
	h.status.runningSinceUnixNano.Store(time.Now().UnixNano())

	w := newWorker(h.cfg, h.sysinfo, h.audit, h.telemetry, h.killer, h.status)
	go w.run(ctx)
}

// Stop moves Running→Stopped, signaling the worker to exit at its next
// iteration boundary. Idempotent.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}
	h.cancel()
	h.running = false
}

// GetStatus returns a lock-free snapshot, safe to call from any
// goroutine while the worker is running.
func (h *Handle) GetStatus() Status {
	return h.status.snapshot()
}

// candidateSelector is the subset of *selector.Selector the worker
// depends on, narrowed so tests can inject a fake instead of driving
// real /proc-backed pressure detection and enumeration.
type candidateSelector interface {
	SelectCandidate() (selector.Candidate, bool, error)
}

// processReader supplies a fresh ProcessInfo for the re-read step in
// spec.md §4.E's algorithm.
type processReader func(procfs.PID) (procfs.ProcessInfo, error)

// worker owns all mutable decision state for one Start()/Stop() cycle.
// It is never shared across goroutines; the Handle spawns exactly one at
// a time.
type worker struct {
	cfg         Config
	selector    candidateSelector
	readProcess processReader
	limiter     *rate.Limiter
	killer      killprim.Killer
	audit       audit.Sink
	telemetry   *telemetry.Provider
	status      *atomicStatus

	lastAuditWarnAt time.Time
}

func newLimiter(minKillInterval time.Duration) *rate.Limiter {
	if minKillInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(minKillInterval), 1)
}

func newWorker(cfg Config, sysinfo SysInfo, auditSink audit.Sink, telemetryProvider *telemetry.Provider, killPrimitive killprim.Killer, status *atomicStatus) *worker {
	detector := pressure.New(cfg.Pressure)
	sc := scorer.New(scorer.DefaultWeights(), sysinfo.TicksPerSecond)

	sysProcCfg := cfg.SystemProcess
	sysProcCfg.TicksPerSecond = sysinfo.TicksPerSecond
	classifier := systemproc.New(sysProcCfg)
	sel := selector.New(cfg.Selector, sc, detector, classifier.IsSystemProcess)

	return &worker{
		cfg:         cfg,
		selector:    sel,
		readProcess: procfs.ReadProcess,
		limiter:     newLimiter(cfg.MinKillInterval),
		killer:      killPrimitive,
		audit:       auditSink,
		telemetry:   telemetryProvider,
		status:      status,
	}
}

// run implements the per-iteration algorithm from spec.md §4.E.
func (w *worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.CheckInterval)
	defer ticker.Stop()

	w.iterate(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.iterate(ctx)
		}
	}
}

func (w *worker) iterate(ctx context.Context) {
	iterCtx, span := w.telemetry.StartIteration(ctx)
	defer span.End()

	// A kill within the last MinKillInterval skips the whole iteration.
	// The limiter token is spent only once a kill has gone through.
	if w.limiter.Tokens() < 1 {
		return
	}

	candidate, ok, err := w.selector.SelectCandidate()
	if err != nil {
		log.Printf("killer: select_process failed: %v", err)
		return
	}
	if !ok {
		return
	}
	pid := candidate.Process.PID

	victim, err := w.readProcess(pid)
	if err != nil {
		if err == procfs.ErrProcessNotFound {
			return
		}
		log.Printf("killer: re-read victim %d failed: %v", pid.Int(), err)
		return
	}

	if err := w.killer.Kill(pid); err != nil {
		switch err {
		case procfs.ErrProcessNotFound:
			// Already gone: treat as success with zero reclaim.
			w.limiter.Allow()
		case procfs.ErrPermissionDenied:
			log.Printf("killer: permission denied killing pid %d (%s)", pid.Int(), victim.Name)
			return
		default:
			log.Printf("killer: kill pid %d failed: %v", pid.Int(), err)
			return
		}
	} else {
		w.limiter.Allow()
		now := time.Now()
		w.status.lastKillTimeUnixNano.Store(now.UnixNano())
		w.status.hasKilled.Store(true)
		w.status.totalKills.Add(1)
		w.status.totalMemoryReclaimed.Add(victim.Mem.VMRSS)
		log.Printf("killer: killed pid %d (%s), rss=%d bytes", pid.Int(), victim.Name, victim.Mem.VMRSS)

		telemetry.RecordKill(span, pid.Int(), victim.Name, victim.Mem.VMRSS, candidate.Score)
		w.recordAudit(iterCtx, pid, victim.Name, victim.Mem.VMRSS, candidate.Score, now)
	}
}

// recordAudit writes the kill event best-effort: failures are logged at
// most once per minute and never change the worker's control flow.
func (w *worker) recordAudit(ctx context.Context, pid procfs.PID, name string, rss uint64, score float64, killedAt time.Time) {
	event := audit.NewEvent(pid, name, rss, score, killedAt)
	if err := w.audit.Record(ctx, event); err != nil {
		if time.Since(w.lastAuditWarnAt) > time.Minute {
			log.Printf("killer: audit sink write failed: %v", err)
			w.lastAuditWarnAt = time.Now()
		}
	}
}
