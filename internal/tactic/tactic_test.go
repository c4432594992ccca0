package tactic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonhatcher/watson/internal/elaborate"
	"github.com/dragonhatcher/watson/internal/frag"
	"github.com/dragonhatcher/watson/internal/kernel"
	"github.com/dragonhatcher/watson/internal/parsestate"
	"github.com/dragonhatcher/watson/internal/syntax"
	"github.com/dragonhatcher/watson/internal/tactic"
)

func fixture(t *testing.T) (*kernel.Kernel, *frag.Store, frag.Handle) {
	t.Helper()
	ps := parsestate.New()
	syn, err := syntax.NewRegistry(ps)
	require.NoError(t, err)
	sentence, ok := syn.CategoryByName("sentence")
	require.True(t, ok)
	truth, err := syn.DeclareRule("truth", sentence, []syntax.FPart{
		{Kind: syntax.FPartLiteral, Literal: "T"},
	}, 0, parsestate.AssocNone)
	require.NoError(t, err)
	store := frag.NewStore(syn)
	T := store.RuleApplication(sentence, truth, nil)

	k := kernel.NewKernel(syn, store)
	k.Check(&elaborate.Theorem{Name: "triv", IsAxiom: true, Conclusion: T})
	return k, store, T
}

func TestSession_OpenThenApplyTheoremCompletesGoal(t *testing.T) {
	k, store, T := fixture(t)
	sess := tactic.NewSession(k)

	h, err := sess.Open(store, nil, T)
	require.NoError(t, err)

	require.NoError(t, sess.ApplyTheorem(h, store, "triv", nil))
	done, err := sess.Complete(h)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestSession_OperationsOnClosedHandleFail(t *testing.T) {
	k, store, T := fixture(t)
	sess := tactic.NewSession(k)

	h, err := sess.Open(store, nil, T)
	require.NoError(t, err)
	sess.Close(h)

	_, err = sess.Complete(h)
	require.Error(t, err)
	var invalid *tactic.ErrInvalidHandle
	require.ErrorAs(t, err, &invalid)
}

func TestSession_AddAndPopAssumptionRoundTrips(t *testing.T) {
	k, store, T := fixture(t)
	sess := tactic.NewSession(k)

	h, err := sess.Open(store, nil, T)
	require.NoError(t, err)

	require.NoError(t, sess.AddAssumption(h, T))
	got, ok, err := sess.PopAssumption(h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, T, got)

	_, ok, err = sess.PopAssumption(h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_OpenRejectsUnsafeFragment(t *testing.T) {
	k, store, _ := fixture(t)
	sess := tactic.NewSession(k)

	free := store.VarHole(0, 0) // an injected free binder, never closed
	_, err := sess.Open(store, nil, free)
	require.Error(t, err)
}
