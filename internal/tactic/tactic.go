// Package tactic is the runtime contract between a proof's tactic body
// and the trusted kernel: tactics never hold a kernel.ProofState directly,
// only an opaque Handle into a Session, so a handle stops working once
// closed by construction rather than by convention (spec §4.K,
// open question "safe handle lifetimes").
package tactic

import (
	"fmt"

	"github.com/dragonhatcher/watson/internal/frag"
	"github.com/dragonhatcher/watson/internal/kernel"
)

// Handle names one open proof state within a Session. The zero Handle is
// never valid — Session.Open always returns a handle >= 1.
type Handle int

// ErrInvalidHandle reports use of a Handle that was never opened, or has
// already been closed.
type ErrInvalidHandle struct{ Handle Handle }

func (e *ErrInvalidHandle) Error() string {
	return fmt.Sprintf("invalid or closed proof-state handle %d", e.Handle)
}

// Session multiplexes a run's open proof states behind Handles. A closed
// handle's slot is nilled, not reused, so a stale Handle a buggy tactic
// held onto after Close fails loudly instead of silently touching a
// different theorem's state.
type Session struct {
	kernel *kernel.Kernel
	states map[Handle]*kernel.ProofState
	next   Handle
}

// NewSession builds a Session backed by k.
func NewSession(k *kernel.Kernel) *Session {
	return &Session{kernel: k, states: make(map[Handle]*kernel.ProofState)}
}

// Open starts a new proof state for a theorem's hypotheses and
// conclusion, returning a Handle to it. Fails if either is not closed
// (spec §4.J, "safe fragment").
func (s *Session) Open(store *frag.Store, hyps []frag.Handle, conclusion frag.Handle) (Handle, error) {
	state, err := kernel.NewProofState(store, hyps, conclusion)
	if err != nil {
		return 0, err
	}
	s.next++
	h := s.next
	s.states[h] = state
	return h, nil
}

func (s *Session) state(h Handle) (*kernel.ProofState, error) {
	st, ok := s.states[h]
	if !ok {
		return nil, &ErrInvalidHandle{Handle: h}
	}
	return st, nil
}

// AddAssumption pushes a fragment onto h's available assumptions.
func (s *Session) AddAssumption(h Handle, fh frag.Handle) error {
	st, err := s.state(h)
	if err != nil {
		return err
	}
	st.AddAssumption(fh)
	return nil
}

// PopAssumption removes and returns h's most recently added assumption.
func (s *Session) PopAssumption(h Handle) (frag.Handle, bool, error) {
	st, err := s.state(h)
	if err != nil {
		return 0, false, err
	}
	fh, ok := st.PopAssumption()
	return fh, ok, nil
}

// ApplyTheorem runs the kernel's trusted substitution-and-match check for
// applying name to h's current goal.
func (s *Session) ApplyTheorem(h Handle, store *frag.Store, name string, templateArgs []frag.Handle) error {
	st, err := s.state(h)
	if err != nil {
		return err
	}
	return st.ApplyTheorem(store, s.kernel, name, templateArgs)
}

// ApplyTodo checks h and calls kernel.ProofState.ApplyTodo, which leaves
// the state unchanged.
func (s *Session) ApplyTodo(h Handle) error {
	st, err := s.state(h)
	if err != nil {
		return err
	}
	st.ApplyTodo()
	return nil
}

// Complete reports whether h's goal has been discharged.
func (s *Session) Complete(h Handle) (bool, error) {
	st, err := s.state(h)
	if err != nil {
		return false, err
	}
	return st.Complete(), nil
}

// Close invalidates h. Any later use of h returns ErrInvalidHandle.
func (s *Session) Close(h Handle) {
	delete(s.states, h)
}
