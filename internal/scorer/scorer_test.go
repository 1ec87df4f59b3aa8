package scorer

import (
	"math"
	"testing"

	"github.com/oomkilld/oomkilld/internal/procfs"
)

const gib = 1 << 30

func statAgeSeconds(ageSecs, ticksPerSecond float64, uptime float64) (StatReader, UptimeReader) {
	startTicks := uint64((uptime - ageSecs) * ticksPerSecond)
	statReader := func(procfs.PID) (procfs.ProcessStat, error) {
		return procfs.ProcessStat{StartTimeTicks: startTicks}, nil
	}
	uptimeReader := func() (float64, error) { return uptime, nil }
	return statReader, uptimeReader
}

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestScore_WeightsSumToOne_StaysInLooseBounds(t *testing.T) {
	statReader, uptimeReader := statAgeSeconds(100, 100, 1_000_000)
	s := NewWithReaders(DefaultWeights(), 100, statReader, uptimeReader)

	p := procfs.ProcessInfo{
		PID: 10,
		Mem: procfs.ProcessMemInfo{VMRSS: 2 * gib, VMSwap: 0, OOMScoreAdj: 0},
	}
	score := s.Score(p, 8*gib)
	if score < -1 || score > 2 {
		t.Fatalf("score %f out of loose bounds [-1, 2]", score)
	}
}

func TestMemorySubscore_WeightsRSSAboveSwap(t *testing.T) {
	s := New(DefaultWeights(), 100)
	heavyRSS := s.memorySubscore(procfs.ProcessMemInfo{VMRSS: 1 * gib}, 10*gib)
	heavySwap := s.memorySubscore(procfs.ProcessMemInfo{VMSwap: 1 * gib}, 10*gib)
	if heavyRSS <= heavySwap {
		t.Fatalf("RSS subscore (%f) should exceed equal-sized swap subscore (%f)", heavyRSS, heavySwap)
	}
}

func TestRuntimeSubscore_YoungerWins(t *testing.T) {
	uptime := 1_000_000.0
	tenMin, tenMinUp := statAgeSeconds(600, 100, uptime)
	twelveHr, twelveHrUp := statAgeSeconds(12*3600, 100, uptime)
	threeDay, threeDayUp := statAgeSeconds(3*86400, 100, uptime)

	s1 := NewWithReaders(DefaultWeights(), 100, tenMin, tenMinUp)
	s2 := NewWithReaders(DefaultWeights(), 100, twelveHr, twelveHrUp)
	s3 := NewWithReaders(DefaultWeights(), 100, threeDay, threeDayUp)

	r1 := s1.runtimeSubscore(1)
	r2 := s2.runtimeSubscore(1)
	r3 := s3.runtimeSubscore(1)

	if !(r1 > r2 && r2 > r3) {
		t.Fatalf("expected monotonically decreasing scores by age, got %f, %f, %f", r1, r2, r3)
	}
	if r3 != 0 {
		t.Fatalf("process older than 2 days should floor at 0, got %f", r3)
	}
}

func TestRuntimeSubscore_UnreadableStatDefaultsToNeutral(t *testing.T) {
	s := NewWithReaders(DefaultWeights(), 100,
		func(procfs.PID) (procfs.ProcessStat, error) { return procfs.ProcessStat{}, procfs.ErrProcessNotFound },
		func() (float64, error) { return 1000, nil },
	)
	if got := s.runtimeSubscore(1); got != 0.5 {
		t.Fatalf("runtimeSubscore = %f, want 0.5", got)
	}
}

func TestScore_VictimChoiceByAge(t *testing.T) {
	// Three processes, identical RSS and adj, different ages: the
	// youngest should win (scenario 3 from spec.md §8).
	uptime := 1_000_000.0
	young, youngUp := statAgeSeconds(600, 100, uptime)          // 10 min
	mid, midUp := statAgeSeconds(12*3600, 100, uptime)          // 12 h
	old, oldUp := statAgeSeconds(3*86400, 100, uptime)          // 3 d

	mkInfo := func(pid procfs.PID) procfs.ProcessInfo {
		return procfs.ProcessInfo{PID: pid, Mem: procfs.ProcessMemInfo{VMRSS: 2 * gib}}
	}

	sYoung := NewWithReaders(DefaultWeights(), 100, young, youngUp)
	sMid := NewWithReaders(DefaultWeights(), 100, mid, midUp)
	sOld := NewWithReaders(DefaultWeights(), 100, old, oldUp)

	total := uint64(10 * gib)
	scoreYoung := sYoung.Score(mkInfo(1), total)
	scoreMid := sMid.Score(mkInfo(2), total)
	scoreOld := sOld.Score(mkInfo(3), total)

	if !(scoreYoung > scoreMid && scoreMid > scoreOld) {
		t.Fatalf("expected youngest to score highest: young=%f mid=%f old=%f", scoreYoung, scoreMid, scoreOld)
	}
}

func TestScore_AdjDominatesOverRawMemory(t *testing.T) {
	// Scenario 4 from spec.md §8: protected-by-adj process loses even
	// with 4x the RSS.
	statReader, uptimeReader := statAgeSeconds(3600, 100, 1_000_000)
	s := NewWithReaders(DefaultWeights(), 100, statReader, uptimeReader)

	total := uint64(10 * gib)
	protectedHeavy := procfs.ProcessInfo{PID: 1, Mem: procfs.ProcessMemInfo{VMRSS: 4 * gib, OOMScoreAdj: -999}}
	lightBiased := procfs.ProcessInfo{PID: 2, Mem: procfs.ProcessMemInfo{VMRSS: 1 * gib, OOMScoreAdj: 500}}

	scoreA := s.Score(protectedHeavy, total)
	scoreB := s.Score(lightBiased, total)
	if scoreB <= scoreA {
		t.Fatalf("expected lightly-loaded but positively-adjusted process to win: A=%f B=%f", scoreA, scoreB)
	}
}

func TestAdjSubscore_Range(t *testing.T) {
	if !almostEqual(adjSubscore(-1000), -1, 1e-9) {
		t.Fatalf("adjSubscore(-1000) = %f, want -1", adjSubscore(-1000))
	}
	if !almostEqual(adjSubscore(1000), 1, 1e-9) {
		t.Fatalf("adjSubscore(1000) = %f, want 1", adjSubscore(1000))
	}
}
