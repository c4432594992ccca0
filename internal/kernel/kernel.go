// Package kernel is the small trusted core: it re-verifies every safety
// invariant the elaborator is expected to have already established before
// accepting a theorem as proved, and it is the only component allowed to
// mint a ProofCertificate (spec §4.J).
package kernel

import (
	"fmt"

	"github.com/dragonhatcher/watson/internal/elaborate"
	"github.com/dragonhatcher/watson/internal/frag"
	"github.com/dragonhatcher/watson/internal/syntax"
)

// Status is a theorem's final disposition.
type Status int

const (
	StatusAxiom Status = iota
	StatusCorrect
	StatusTodo
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusAxiom:
		return "axiom"
	case StatusCorrect:
		return "correct"
	case StatusTodo:
		return "todo"
	default:
		return "errored"
	}
}

// ProofCertificate is the kernel's verdict on one theorem — the only
// artifact downstream reporting is allowed to trust.
type ProofCertificate struct {
	Theorem string
	Status  Status
	Err     error
}

// The eight safety failures the kernel itself re-checks rather than
// trusting the elaborator (spec §4.J, "kernel safety checks").

// ErrUnknownTarget reports `by` naming a theorem the kernel has no
// certificate for at all.
type ErrUnknownTarget struct{ Name string }

func (e *ErrUnknownTarget) Error() string { return fmt.Sprintf("unknown theorem %q", e.Name) }

// ErrTargetNotProved reports `by` naming a theorem that exists but was not
// certified axiom/correct — applying a todo, errored, or not-yet-checked
// theorem is itself unsafe.
type ErrTargetNotProved struct {
	Name   string
	Status Status
}

func (e *ErrTargetNotProved) Error() string {
	return fmt.Sprintf("theorem %q is not available to apply (status: %s)", e.Name, e.Status)
}

// ErrTemplateArity reports a template-argument count mismatch.
type ErrTemplateArity struct {
	Name      string
	Want, Got int
}

func (e *ErrTemplateArity) Error() string {
	return fmt.Sprintf("theorem %q expects %d template argument(s), got %d", e.Name, e.Want, e.Got)
}

// ErrTemplateCategory reports a template argument whose elaborated
// category does not match the corresponding template parameter's declared
// category.
type ErrTemplateCategory struct {
	Name  string
	Index int
}

func (e *ErrTemplateCategory) Error() string {
	return fmt.Sprintf("theorem %q: template argument %d has the wrong category", e.Name, e.Index)
}

// ErrUnsafeFragment reports a fragment with an escaping free variable —
// the "safe fragment" invariant (data model invariant 2).
type ErrUnsafeFragment struct{ Context string }

func (e *ErrUnsafeFragment) Error() string {
	return fmt.Sprintf("%s is not closed (contains a free variable)", e.Context)
}

// ErrHypothesisMismatch reports that, after template substitution, one of
// the target theorem's hypotheses is not among the current goal's
// available assumptions.
type ErrHypothesisMismatch struct{ Theorem string }

func (e *ErrHypothesisMismatch) Error() string {
	return fmt.Sprintf("a hypothesis required by %q is not available", e.Theorem)
}

// ErrConclusionMismatch reports that, after template substitution, the
// target theorem's conclusion does not match the current goal.
type ErrConclusionMismatch struct{ Theorem string }

func (e *ErrConclusionMismatch) Error() string {
	return fmt.Sprintf("%q does not conclude the current goal", e.Theorem)
}

// ErrProofIncomplete reports that a tactic ran without error but left the
// goal undischarged.
type ErrProofIncomplete struct{}

func (e *ErrProofIncomplete) Error() string { return "proof does not discharge its goal" }

// ProofState is the tactic runtime's mutable working state: the
// hypotheses currently available, and the single remaining goal (spec
// §4.J, §4.K "tactic runtime contract"). Tactics beyond this
// implementation's fixed `by`/`todo` surface syntax can still extend the
// available assumptions via AddAssumption/PopAssumption without the
// kernel itself changing.
type ProofState struct {
	assumptions []frag.Handle
	goal        frag.Handle
	completed   bool
}

// NewProofState builds the initial state for a theorem: its hypotheses as
// available assumptions, and its conclusion as the goal. Returns
// ErrUnsafeFragment if the elaborator handed it an unclosed fragment
// anywhere — the kernel does not trust that invariant from upstream.
func NewProofState(store *frag.Store, hyps []frag.Handle, conclusion frag.Handle) (*ProofState, error) {
	for i, h := range hyps {
		if !store.IsClosed(h) {
			return nil, &ErrUnsafeFragment{Context: fmt.Sprintf("hypothesis %d", i)}
		}
	}
	if !store.IsClosed(conclusion) {
		return nil, &ErrUnsafeFragment{Context: "conclusion"}
	}
	return &ProofState{assumptions: append([]frag.Handle{}, hyps...), goal: conclusion}, nil
}

// AddAssumption pushes h onto the available assumptions.
func (s *ProofState) AddAssumption(h frag.Handle) { s.assumptions = append(s.assumptions, h) }

// PopAssumption removes and returns the most recently added assumption.
func (s *ProofState) PopAssumption() (frag.Handle, bool) {
	if len(s.assumptions) == 0 {
		return 0, false
	}
	h := s.assumptions[len(s.assumptions)-1]
	s.assumptions = s.assumptions[:len(s.assumptions)-1]
	return h, true
}

func (s *ProofState) hasAssumption(h frag.Handle) bool {
	for _, a := range s.assumptions {
		if a == h {
			return true
		}
	}
	return false
}

// Complete reports whether the goal has been discharged.
func (s *ProofState) Complete() bool { return s.completed }

// ApplyError returns err unchanged. It records nothing on the state: the
// state stays incomplete, and the caller turns err into the certificate.
func (s *ProofState) ApplyError(err error) error { return err }

// ApplyTodo leaves the state unchanged; the goal is not marked discharged.
// Check issues StatusTodo, never an error, for a theorem whose tactic is
// todo, whatever this call does.
func (s *ProofState) ApplyTodo() {}

// ApplyTheorem is the kernel's one piece of real trusted-core logic:
// substitute templateArgs into target's hypotheses and conclusion, check
// every substituted hypothesis is already available, and check the
// substituted conclusion matches the current goal exactly (by Handle
// identity, which hash-consing makes a sound structural-equality check).
func (s *ProofState) ApplyTheorem(store *frag.Store, k *Kernel, name string, templateArgs []frag.Handle) error {
	cert, ok := k.certs[name]
	target, ok2 := k.theorems[name]
	if !ok || !ok2 {
		return &ErrUnknownTarget{Name: name}
	}
	if cert.Status != StatusAxiom && cert.Status != StatusCorrect {
		return &ErrTargetNotProved{Name: name, Status: cert.Status}
	}
	if len(templateArgs) != len(target.TemplateCats) {
		return &ErrTemplateArity{Name: name, Want: len(target.TemplateCats), Got: len(templateArgs)}
	}
	for i, a := range templateArgs {
		if store.Get(a).Cat != target.TemplateCats[i] {
			return &ErrTemplateCategory{Name: name, Index: i}
		}
		if !store.IsClosed(a) {
			return &ErrUnsafeFragment{Context: fmt.Sprintf("template argument %d to %q", i, name)}
		}
	}
	for _, h := range target.Hyps {
		sh := store.SubstituteTemplates(h, templateArgs)
		if !s.hasAssumption(sh) {
			return &ErrHypothesisMismatch{Theorem: name}
		}
	}
	sc := store.SubstituteTemplates(target.Conclusion, templateArgs)
	if sc != s.goal {
		return &ErrConclusionMismatch{Theorem: name}
	}
	s.completed = true
	return nil
}

// Kernel accumulates certificates across a run, in the order theorems are
// checked (the orchestrator takes that order from package circularity;
// theorems on a `by` cycle are certified errored through MarkCircular
// instead of Check).
type Kernel struct {
	syn      *syntax.Registry
	store    *frag.Store
	certs    map[string]*ProofCertificate
	theorems map[string]*elaborate.Theorem
}

// NewKernel builds an empty Kernel over store.
func NewKernel(syn *syntax.Registry, store *frag.Store) *Kernel {
	return &Kernel{
		syn: syn, store: store,
		certs:    make(map[string]*ProofCertificate),
		theorems: make(map[string]*elaborate.Theorem),
	}
}

// CertFor returns the certificate already issued for name, if any.
func (k *Kernel) CertFor(name string) (*ProofCertificate, bool) {
	c, ok := k.certs[name]
	return c, ok
}

// MarkCircular records th as errored with err (a circularity.ErrCycle,
// typically) without running the safety checks Check would — a theorem
// whose `by` chain loops back on itself has no safe checking order, so
// the kernel never attempts it, but it still receives a certificate
// (spec §8 S5: "both checked but flagged") so downstream reporting and
// any theorem that names it via `by` see ErrTargetNotProved rather than
// ErrUnknownTarget.
func (k *Kernel) MarkCircular(th *elaborate.Theorem, err error) *ProofCertificate {
	cert := &ProofCertificate{Theorem: th.Name, Status: StatusErrored, Err: err}
	k.certs[th.Name] = cert
	k.theorems[th.Name] = th
	return cert
}

// Check certifies th, the theorems it may reference via `by` having
// already been checked and registered. It never returns an error: every
// failure becomes a StatusErrored certificate, so a run can keep checking
// the rest of the project (spec §5 accumulation model).
func (k *Kernel) Check(th *elaborate.Theorem) *ProofCertificate {
	var cert *ProofCertificate
	defer func() { k.certs[th.Name] = cert; k.theorems[th.Name] = th }()

	if th.IsAxiom {
		cert = &ProofCertificate{Theorem: th.Name, Status: StatusAxiom}
		return cert
	}

	state, err := NewProofState(k.store, th.Hyps, th.Conclusion)
	if err != nil {
		cert = &ProofCertificate{Theorem: th.Name, Status: StatusErrored, Err: err}
		return cert
	}

	if th.Tactic.IsTodo {
		state.ApplyTodo()
		cert = &ProofCertificate{Theorem: th.Name, Status: StatusTodo}
		return cert
	}

	if err := state.ApplyTheorem(k.store, k, th.Tactic.TheoremName, th.Tactic.TemplateArgs); err != nil {
		cert = &ProofCertificate{Theorem: th.Name, Status: StatusErrored, Err: state.ApplyError(err)}
		return cert
	}
	if !state.Complete() {
		cert = &ProofCertificate{Theorem: th.Name, Status: StatusErrored, Err: &ErrProofIncomplete{}}
		return cert
	}
	cert = &ProofCertificate{Theorem: th.Name, Status: StatusCorrect}
	return cert
}
