// Package selector picks the single process to kill during a pressure
// event: it filters the live process population down to eligible
// candidates, scores them, and returns the most kill-desirable one.
package selector

import (
	"github.com/oomkilld/oomkilld/internal/procfs"
	"github.com/oomkilld/oomkilld/internal/scorer"
	"github.com/oomkilld/oomkilld/internal/selector/systemproc"
)

// Config mirrors spec.md §3's SelectorConfig.
type Config struct {
	MinCandidates           int
	MaxCandidates           int
	AllowSystemProcesses    bool
	MinMemoryThresholdBytes uint64
}

// DefaultConfig matches spec.md §3: 3, 10, false, 1 MiB.
func DefaultConfig() Config {
	return Config{
		MinCandidates:           3,
		MaxCandidates:           10,
		AllowSystemProcesses:    false,
		MinMemoryThresholdBytes: 1 << 20,
	}
}

// minReclaimRatio is the "not worth the blast radius" floor from
// spec.md §4.D: a kill must free at least 1% of system memory.
const minReclaimRatio = 0.01

// PressureChecker is the subset of *pressure.Detector the Selector
// depends on.
type PressureChecker interface {
	CheckPressure() (bool, error)
}

// ProcessLister supplies the live process population; production code
// uses procfs.ListProcesses, tests inject canned data.
type ProcessLister func() ([]procfs.ProcessInfo, error)

// StatsReader supplies a MemoryStats snapshot for eligibility and
// scoring's total-memory denominator.
type StatsReader func() (procfs.MemoryStats, error)

// Selector is stateless aside from its injected collaborators and is
// only ever driven by the Killer Worker's single goroutine.
type Selector struct {
	cfg             Config
	scorer          *scorer.Scorer
	pressure        PressureChecker
	listProcesses   ProcessLister
	readStats       StatsReader
	isSystemProcess systemproc.Predicate
}

// New builds a Selector against live /proc data.
func New(cfg Config, sc *scorer.Scorer, pressure PressureChecker, isSystemProcess systemproc.Predicate) *Selector {
	return NewWithDeps(cfg, sc, pressure, isSystemProcess, procfs.ListProcesses, func() (procfs.MemoryStats, error) {
		return procfs.ReadMemoryStats()
	})
}

// NewWithDeps builds a Selector against injected collaborators, for
// tests.
func NewWithDeps(cfg Config, sc *scorer.Scorer, pressure PressureChecker, isSystemProcess systemproc.Predicate, listProcesses ProcessLister, readStats StatsReader) *Selector {
	return &Selector{
		cfg:             cfg,
		scorer:          sc,
		pressure:        pressure,
		listProcesses:   listProcesses,
		readStats:       readStats,
		isSystemProcess: isSystemProcess,
	}
}

// Select implements spec.md §4.D's select_process(): it returns the PID
// of the process to kill, or false if no kill should happen this
// iteration (no pressure, or too few eligible candidates).
func (s *Selector) Select() (procfs.PID, bool, error) {
	c, ok, err := s.SelectCandidate()
	if err != nil || !ok {
		return 0, false, err
	}
	return c.Process.PID, true, nil
}

// SelectCandidate is Select, but also returns the score that won, so
// callers (the Killer Worker) can attach it to audit and telemetry
// records without recomputing it against a possibly-changed total
// memory figure.
func (s *Selector) SelectCandidate() (Candidate, bool, error) {
	underPressure, err := s.pressure.CheckPressure()
	if err != nil {
		return Candidate{}, false, err
	}
	if !underPressure {
		return Candidate{}, false, nil
	}

	stats, err := s.readStats()
	if err != nil {
		return Candidate{}, false, err
	}

	processes, err := s.listProcesses()
	if err != nil {
		return Candidate{}, false, err
	}

	var h candidateHeap
	eligibleCount := 0

	for _, p := range processes {
		if !s.eligible(p, stats.Total) {
			continue
		}
		eligibleCount++
		score := s.scorer.Score(p, stats.Total)
		pushTopN(&h, s.cfg.MaxCandidates, Candidate{Process: p, Score: score})
	}

	if eligibleCount < s.cfg.MinCandidates {
		return Candidate{}, false, nil
	}

	c, ok := best(h)
	return c, ok, nil
}

// eligible implements the predicate from spec.md §4.D.
func (s *Selector) eligible(p procfs.ProcessInfo, totalMemory uint64) bool {
	if !p.IsOomable() {
		return false
	}
	if !s.cfg.AllowSystemProcesses && s.isSystemProcess != nil && s.isSystemProcess(p) {
		return false
	}
	if p.Mem.VMRSS < s.cfg.MinMemoryThresholdBytes {
		return false
	}
	if totalMemory == 0 {
		return false
	}
	if float64(p.Mem.VMRSS)/float64(totalMemory) < minReclaimRatio {
		return false
	}
	return true
}
