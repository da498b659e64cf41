// Package frontier implements the ordered work-queue of pending crawl
// targets. Ordering is switched on a closed strategy tag (BFS/DFS/
// best-first) rather than polymorphic strategy objects, so dequeue behavior
// is exhaustively checkable.
package frontier

import (
	"container/heap"
	"container/list"
	"sync"

	"github.com/crawlkit/crawld/pkg/models"
)

// Target is a URL pending fetch, identified by its normalized URL string.
// Immutable once created.
type Target struct {
	URL   string
	Depth int

	// Priority is only meaningful under the best-first strategy.
	Priority float64

	// seq is the insertion sequence number, used as the stable tie-break
	// for equal priorities.
	seq uint64
}

// Frontier orders pending targets by the active strategy and owns the
// visited set for the run. All methods are safe for concurrent use; the
// visited check and the insert happen atomically under one lock so a URL is
// enqueued at most once per run.
type Frontier struct {
	mu       sync.Mutex
	strategy models.Strategy

	queue *list.List   // BFS
	stack []*Target    // DFS
	pq    priorityHeap // best-first

	visited  map[string]struct{}
	enqueued int
	maxDepth int
	maxPages int
	nextSeq  uint64
}

// New creates a frontier for one crawl run. maxPages bounds the total number
// of targets ever enqueued; targets beyond the remaining budget are dropped
// at insertion, never silently fetched later. maxDepth <= 0 means no depth
// limit.
func New(strategy models.Strategy, maxDepth, maxPages int) *Frontier {
	return &Frontier{
		strategy: strategy,
		queue:    list.New(),
		visited:  make(map[string]struct{}),
		maxDepth: maxDepth,
		maxPages: maxPages,
	}
}

// Push offers a target to the frontier. It returns true when the target was
// accepted, false when it was dropped as a duplicate or for exceeding the
// depth or page budget.
func (f *Frontier) Push(url string, depth int, priority float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.maxDepth > 0 && depth > f.maxDepth {
		return false
	}
	if f.maxPages > 0 && f.enqueued >= f.maxPages {
		return false
	}
	if _, seen := f.visited[url]; seen {
		return false
	}

	t := &Target{URL: url, Depth: depth, Priority: priority, seq: f.nextSeq}
	f.nextSeq++

	switch f.strategy {
	case models.StrategyDFS:
		f.stack = append(f.stack, t)
	case models.StrategyBestFirst:
		heap.Push(&f.pq, t)
	default: // BFS
		f.queue.PushBack(t)
	}

	f.visited[url] = struct{}{}
	f.enqueued++
	return true
}

// Pop removes and returns the next target per the strategy ordering, or nil
// when the frontier is empty.
func (f *Frontier) Pop() *Target {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.strategy {
	case models.StrategyDFS:
		if len(f.stack) == 0 {
			return nil
		}
		t := f.stack[len(f.stack)-1]
		f.stack = f.stack[:len(f.stack)-1]
		return t
	case models.StrategyBestFirst:
		if f.pq.Len() == 0 {
			return nil
		}
		return heap.Pop(&f.pq).(*Target)
	default:
		elem := f.queue.Front()
		if elem == nil {
			return nil
		}
		return f.queue.Remove(elem).(*Target)
	}
}

// Len returns the number of pending targets.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.strategy {
	case models.StrategyDFS:
		return len(f.stack)
	case models.StrategyBestFirst:
		return f.pq.Len()
	default:
		return f.queue.Len()
	}
}

// Visited reports whether url was ever enqueued in this run.
func (f *Frontier) Visited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[url]
	return ok
}

// Enqueued returns the total number of targets accepted so far, which is
// also the upper bound on pages this run can fetch.
func (f *Frontier) Enqueued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enqueued
}

// priorityHeap is a max-heap over priority with insertion order breaking
// ties, so equal-priority targets dequeue in discovery order.
type priorityHeap []*Target

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x any) { *h = append(*h, x.(*Target)) }

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
