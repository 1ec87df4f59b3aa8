// Package scorer assigns a single floating-point kill-desirability score
// to a candidate process, combining memory footprint, age, and the
// administrator's oom_score_adj hint.
package scorer

import (
	"github.com/oomkilld/oomkilld/internal/procfs"
)

// Weights configures the relative contribution of each subscore. They are
// expected to sum to roughly 1, but the scorer does not enforce that.
type Weights struct {
	Memory  float64
	Runtime float64
	Adj     float64
}

// DefaultWeights matches spec.md §4.C / §6: 0.6 memory, 0.2 runtime, 0.2 adj.
func DefaultWeights() Weights {
	return Weights{Memory: 0.6, Runtime: 0.2, Adj: 0.2}
}

// StatReader supplies /proc/<pid>/stat for a candidate; production code
// uses procfs.ReadProcessStat, tests inject canned data.
type StatReader func(procfs.PID) (procfs.ProcessStat, error)

// UptimeReader supplies /proc/uptime seconds.
type UptimeReader func() (float64, error)

// Scorer computes weighted kill-desirability scores. It is stateless
// given its inputs and safe for concurrent use.
type Scorer struct {
	weights        Weights
	ticksPerSecond float64
	readStat       StatReader
	readUptime     UptimeReader
}

// New builds a Scorer reading live /proc data.
func New(weights Weights, ticksPerSecond float64) *Scorer {
	return NewWithReaders(weights, ticksPerSecond, procfs.ReadProcessStat, procfs.ReadUptimeSeconds)
}

// NewWithReaders builds a Scorer against injected readers, for tests.
func NewWithReaders(weights Weights, ticksPerSecond float64, statReader StatReader, uptimeReader UptimeReader) *Scorer {
	return &Scorer{
		weights:        weights,
		ticksPerSecond: ticksPerSecond,
		readStat:       statReader,
		readUptime:     uptimeReader,
	}
}

// Score computes the total weighted score for a candidate process given
// the host's total memory in bytes.
func (s *Scorer) Score(p procfs.ProcessInfo, totalMemory uint64) float64 {
	mem := s.memorySubscore(p.Mem, totalMemory)
	runtime := s.runtimeSubscore(p.PID)
	adj := adjSubscore(p.Mem.OOMScoreAdj)

	return mem*s.weights.Memory + runtime*s.weights.Runtime + adj*s.weights.Adj
}

// memorySubscore weights resident memory more than swapped-out memory,
// since RSS is what's actually occupying physical pages right now.
func (s *Scorer) memorySubscore(mem procfs.ProcessMemInfo, totalMemory uint64) float64 {
	if totalMemory == 0 {
		return 0
	}
	rssRatio := float64(mem.VMRSS) / float64(totalMemory)
	swapRatio := float64(mem.VMSwap) / float64(totalMemory)
	return 0.7*rssRatio + 0.3*swapRatio
}

const (
	hourSecs = 3600.0
	daySecs  = 24 * hourSecs
	twoDays  = 2 * daySecs
)

// runtimeSubscore favors younger processes: a process born in the last
// hour scores near 1.0, tapering down to 0 by the time it is two days
// old. If the process's /proc/<pid>/stat can't be read (it may have
// already exited), a neutral 0.5 is substituted.
func (s *Scorer) runtimeSubscore(pid procfs.PID) float64 {
	stat, err := s.readStat(pid)
	if err != nil {
		return 0.5
	}
	uptime, err := s.readUptime()
	if err != nil {
		return 0.5
	}

	startSecs := float64(stat.StartTimeTicks) / s.ticksPerSecond
	ageSecs := uptime - startSecs
	if ageSecs < 0 {
		ageSecs = 0
	}

	switch {
	case ageSecs < hourSecs:
		return 0.8 + 0.2*(hourSecs-ageSecs)/hourSecs
	case ageSecs < daySecs:
		return 0.3 + 0.5*(daySecs-ageSecs)/daySecs
	default:
		clamped := ageSecs
		if clamped > twoDays {
			clamped = twoDays
		}
		return 0.3 * (twoDays - clamped) / daySecs
	}
}

// adjSubscore maps the administrator's [-1000, 1000] hint linearly onto
// [-1, 1]; a positive adjustment biases a process toward being killed.
func adjSubscore(oomScoreAdj int32) float64 {
	return float64(oomScoreAdj) / 1000.0
}
