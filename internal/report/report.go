// Package report renders an orchestrator.Result as a human summary and as
// a canonical CBOR-encoded certificate bundle (spec §4.O).
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/dragonhatcher/watson/internal/kernel"
)

// Summary tallies a run's theorem outcomes plus the per-theorem detail,
// in check order.
type Summary struct {
	Axioms   int              `cbor:"axioms"`
	Correct  int              `cbor:"correct"`
	Todo     int              `cbor:"todo"`
	Errored  int              `cbor:"errored"`
	Theorems []TheoremSummary `cbor:"theorems"`
}

// TheoremSummary is one theorem's certified outcome.
type TheoremSummary struct {
	Name    string `cbor:"name"`
	Status  string `cbor:"status"`
	Message string `cbor:"message,omitempty"`
}

// Build assembles a Summary from certs in checkOrder (falling back to
// sorted name order if checkOrder is empty).
func Build(certs map[string]*kernel.ProofCertificate, checkOrder []string) Summary {
	order := checkOrder
	if len(order) == 0 {
		for name := range certs {
			order = append(order, name)
		}
		sort.Strings(order)
	}
	var s Summary
	for _, name := range order {
		cert, ok := certs[name]
		if !ok {
			continue
		}
		ts := TheoremSummary{Name: name, Status: cert.Status.String()}
		if cert.Err != nil {
			ts.Message = cert.Err.Error()
		}
		switch cert.Status {
		case kernel.StatusAxiom:
			s.Axioms++
		case kernel.StatusCorrect:
			s.Correct++
		case kernel.StatusTodo:
			s.Todo++
		default:
			s.Errored++
		}
		s.Theorems = append(s.Theorems, ts)
	}
	return s
}

// EncodeCBOR canonically encodes a Summary, for a `.wcert` artifact that
// downstream tooling (e.g. a CI gate) can consume without re-running
// Watson.
func EncodeCBOR(s Summary) ([]byte, error) {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		return nil, err
	}
	return mode.Marshal(s)
}

// DecodeCBOR reverses EncodeCBOR.
func DecodeCBOR(data []byte) (Summary, error) {
	var s Summary
	err := cbor.Unmarshal(data, &s)
	return s, err
}

// String renders a Summary as the one-line-per-theorem text report
// a CLI prints to stdout.
func (s Summary) String() string {
	var b strings.Builder
	for _, t := range s.Theorems {
		fmt.Fprintf(&b, "%-7s %s", t.Status, t.Name)
		if t.Message != "" {
			fmt.Fprintf(&b, ": %s", t.Message)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\n%d axiom, %d correct, %d todo, %d errored\n", s.Axioms, s.Correct, s.Todo, s.Errored)
	return b.String()
}
