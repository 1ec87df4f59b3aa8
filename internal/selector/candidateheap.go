package selector

import (
	"container/heap"

	"github.com/oomkilld/oomkilld/internal/procfs"
)

// Candidate pairs a process with its computed kill-desirability score.
type Candidate struct {
	Process procfs.ProcessInfo
	Score   float64
}

// candidateHeap is a min-heap ordered from least to most kill-desirable:
// lower Score, then smaller RSS, then larger PID sort toward the root, so
// the root is always the candidate evicted first and Less(i, j) is the
// reverse of isMoreDesirable. This generalizes the teacher's
// topNHeap in internal/diagnostics/topnheap.go from protocol.TopEntry
// ordered by Size to scored process candidates.
type candidateHeap []Candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	if h[i].Process.Mem.VMRSS != h[j].Process.Mem.VMRSS {
		return h[i].Process.Mem.VMRSS < h[j].Process.Mem.VMRSS
	}
	return h[i].Process.PID > h[j].Process.PID
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(Candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// pushTopN maintains a bounded min-heap of the n most kill-desirable
// candidates seen so far.
func pushTopN(h *candidateHeap, n int, c Candidate) {
	if n <= 0 {
		return
	}
	if h.Len() < n {
		heap.Push(h, c)
		return
	}

	smallest := (*h)[0]
	if isMoreDesirable(c, smallest) {
		(*h)[0] = c
		heap.Fix(h, 0)
	}
}

// isMoreDesirable applies the final tie-break from spec.md §4.D: higher
// score wins, then larger vm_rss, then smaller PID.
func isMoreDesirable(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Process.Mem.VMRSS != b.Process.Mem.VMRSS {
		return a.Process.Mem.VMRSS > b.Process.Mem.VMRSS
	}
	return a.Process.PID < b.Process.PID
}

// best returns the single most kill-desirable candidate in the heap, or
// false if it is empty.
func best(h candidateHeap) (Candidate, bool) {
	if len(h) == 0 {
		return Candidate{}, false
	}
	winner := h[0]
	for _, c := range h[1:] {
		if isMoreDesirable(c, winner) {
			winner = c
		}
	}
	return winner, true
}
