package orchestrator

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// Scorer assigns a best-first priority to a discovered link. Higher scores
// dequeue first; ties break on discovery order.
type Scorer func(link string, depth int) float64

// DefaultScorer prefers shallow, clean URLs: short paths score higher, and
// query strings or deep nesting push a link down the heap.
func DefaultScorer(link string, depth int) float64 {
	u, err := url.Parse(link)
	if err != nil {
		return 0
	}

	score := 1.0

	segments := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments++
		}
	}
	score -= 0.1 * float64(segments)

	if u.RawQuery != "" {
		score -= 0.2
	}
	score -= 0.05 * float64(depth)

	return score
}

// KeywordScorer boosts links whose URL contains any of the given keywords.
// It composes with the default shallowness heuristic.
func KeywordScorer(keywords []string) Scorer {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return func(link string, depth int) float64 {
		score := DefaultScorer(link, depth)
		lowerLink := strings.ToLower(link)
		for _, k := range lowered {
			if k != "" && strings.Contains(lowerLink, k) {
				score += 1.0
			}
		}
		return score
	}
}

// ScriptScorer evaluates a user-supplied JavaScript scoring function. The
// script must define `score(url, depth)` returning a number. A goja runtime
// is not safe for concurrent use, so calls are serialized; scoring runs
// under the frontier lock anyway, which keeps contention negligible.
type ScriptScorer struct {
	mu sync.Mutex
	vm *goja.Runtime
	fn goja.Callable
}

// NewScriptScorer compiles the script and resolves its score function.
func NewScriptScorer(script string) (*ScriptScorer, error) {
	vm := goja.New()
	if _, err := vm.RunString(script); err != nil {
		return nil, fmt.Errorf("compile score script: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get("score"))
	if !ok {
		return nil, fmt.Errorf("score script must define a function score(url, depth)")
	}
	return &ScriptScorer{vm: vm, fn: fn}, nil
}

// Score invokes the script. Script errors or non-numeric results fall back
// to the default heuristic so a bad script degrades instead of failing the
// run.
func (s *ScriptScorer) Score(link string, depth int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.fn(goja.Undefined(), s.vm.ToValue(link), s.vm.ToValue(depth))
	if err != nil {
		return DefaultScorer(link, depth)
	}
	return result.ToFloat()
}
