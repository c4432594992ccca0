// Package circularity finds an order in which theorems can be checked
// such that every `by` reference is checked before the theorem that uses
// it, and reports a cycle when no such order exists (spec §4.M, §8 S5).
package circularity

import (
	"fmt"
	"sort"

	"github.com/dragonhatcher/watson/internal/elaborate"
)

// ErrCycle reports a set of theorems whose `by` references form a cycle,
// in the order Tarjan's algorithm discovered them.
type ErrCycle struct{ Theorems []string }

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("circular theorem dependency: %v", e.Theorems)
}

// tarjan is one run of Tarjan's strongly-connected-components algorithm
// over the `by` reference graph. A theorem with no explicit `by` target
// (axiom, todo, or errored-before-reaching-a-tactic) is a graph node with
// no outgoing edge.
type tarjan struct {
	theorems map[string]*elaborate.Theorem
	index    map[string]int
	low      map[string]int
	onStack  map[string]bool
	stack    []string
	counter  int
	sccs     [][]string
}

func edges(th *elaborate.Theorem) []string {
	if th.IsAxiom || th.Tactic.IsTodo || th.Tactic.TheoremName == "" {
		return nil
	}
	return []string{th.Tactic.TheoremName}
}

func (t *tarjan) strongConnect(name string) {
	t.index[name] = t.counter
	t.low[name] = t.counter
	t.counter++
	t.stack = append(t.stack, name)
	t.onStack[name] = true

	th, known := t.theorems[name]
	if known {
		for _, dep := range edges(th) {
			if _, depKnown := t.theorems[dep]; !depKnown {
				continue
			}
			if _, seen := t.index[dep]; !seen {
				t.strongConnect(dep)
				if t.low[dep] < t.low[name] {
					t.low[name] = t.low[dep]
				}
			} else if t.onStack[dep] {
				if t.index[dep] < t.low[name] {
					t.low[name] = t.index[dep]
				}
			}
		}
	}

	if t.low[name] == t.index[name] {
		var scc []string
		for {
			n := len(t.stack) - 1
			top := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[top] = false
			scc = append(scc, top)
			if top == name {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}

// Result is the outcome of ordering every theorem in a project for
// checking: a dependency-safe Order covering every theorem (cyclic ones
// included, positioned after whatever they themselves depend on so a
// dependent's kernel check still sees its target's certificate), plus
// the set of theorems that belong to a cycle and the cycles themselves
// (spec §4.M, §8 S5: "both checked but flagged" — a cyclic theorem still
// gets a certificate, just an errored one, rather than being skipped).
type Result struct {
	Order  []string
	Cyclic map[string]bool
	Cycles [][]string
}

// Order computes a dependency-safe check order for every theorem: one
// that appears after whichever theorem its tactic applies via `by`,
// wherever such an order exists. A theorem whose `by` chain loops back
// on itself (including self-reference) is flagged in Result.Cyclic and
// listed in Result.Cycles, but still appears in Result.Order — the
// caller certifies it as errored rather than silently dropping it (spec
// §5's accumulation model: a cycle is one failure among many, not a
// reason to abandon the rest of the run).
func Order(theorems map[string]*elaborate.Theorem, declOrder []string) *Result {
	t := &tarjan{
		theorems: theorems,
		index:    make(map[string]int),
		low:      make(map[string]int),
		onStack:  make(map[string]bool),
	}
	for _, name := range declOrder {
		if _, seen := t.index[name]; !seen {
			t.strongConnect(name)
		}
	}

	res := &Result{Cyclic: make(map[string]bool)}
	// A DFS following `by`-edge A->B finishes and pops B's SCC before it
	// can finish and pop A's, so t.sccs is already dependency-before-
	// dependent order: exactly the order the kernel needs to check in,
	// cyclic components included (nothing outside a cycle can depend on
	// only part of it, so placing the whole component together is safe).
	for _, scc := range t.sccs {
		selfLoop := false
		if len(scc) == 1 {
			name := scc[0]
			if th, ok := theorems[name]; ok {
				for _, dep := range edges(th) {
					if dep == name {
						selfLoop = true
					}
				}
			}
		}
		if len(scc) > 1 || selfLoop {
			sort.Strings(scc)
			res.Cycles = append(res.Cycles, scc)
			for _, name := range scc {
				res.Cyclic[name] = true
			}
		}
		res.Order = append(res.Order, scc...)
	}
	return res
}
