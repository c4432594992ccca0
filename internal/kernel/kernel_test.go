package kernel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonhatcher/watson/internal/elaborate"
	"github.com/dragonhatcher/watson/internal/frag"
	"github.com/dragonhatcher/watson/internal/kernel"
	"github.com/dragonhatcher/watson/internal/parsestate"
	"github.com/dragonhatcher/watson/internal/syntax"
)

// fixture builds a tiny "sentence ::= T" grammar, its single closed
// fragment T, and a Store/Registry pair kernel tests can check theorems
// against (mirrors scenarios S1-S4 of the spec without going through the
// parser/elaborator text pipeline).
func fixture(t *testing.T) (*syntax.Registry, *frag.Store, syntax.FCatID, frag.Handle) {
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
	return syn, store, sentence, T
}

func TestKernel_AxiomIsCertifiedWithoutChecking(t *testing.T) {
	syn, store, _, T := fixture(t)
	k := kernel.NewKernel(syn, store)
	triv := &elaborate.Theorem{Name: "triv", IsAxiom: true, Conclusion: T}

	cert := k.Check(triv)
	assert.Equal(t, kernel.StatusAxiom, cert.Status)
}

func TestKernel_TheoremProvedByAxiomIsCorrect(t *testing.T) {
	syn, store, _, T := fixture(t)
	k := kernel.NewKernel(syn, store)

	triv := &elaborate.Theorem{Name: "triv", IsAxiom: true, Conclusion: T}
	k.Check(triv)

	triv2 := &elaborate.Theorem{
		Name: "triv2", Conclusion: T,
		Tactic: elaborate.TacticSpec{TheoremName: "triv"},
	}
	cert := k.Check(triv2)
	assert.Equal(t, kernel.StatusCorrect, cert.Status)
	assert.NoError(t, cert.Err)
}

func TestKernel_TodoIsCorrectButNotAnError(t *testing.T) {
	syn, store, _, T := fixture(t)
	k := kernel.NewKernel(syn, store)

	maybe := &elaborate.Theorem{
		Name: "maybe", Conclusion: T,
		Tactic: elaborate.TacticSpec{IsTodo: true},
	}
	cert := k.Check(maybe)
	assert.Equal(t, kernel.StatusTodo, cert.Status)
}

func TestKernel_MissingHypothesisErrors(t *testing.T) {
	syn, store, sentence, T := fixture(t)
	k := kernel.NewKernel(syn, store)

	// axiom imp : (T) |- T   -- requires T as an available hypothesis.
	imp := &elaborate.Theorem{
		Name: "imp", IsAxiom: true,
		Hyps: []frag.Handle{T}, Conclusion: T,
	}
	k.Check(imp)

	// theorem wrong : |- T proof by imp qed  -- no hypotheses available.
	_ = sentence
	wrong := &elaborate.Theorem{
		Name: "wrong", Conclusion: T,
		Tactic: elaborate.TacticSpec{TheoremName: "imp"},
	}
	cert := k.Check(wrong)
	assert.Equal(t, kernel.StatusErrored, cert.Status)
	require.Error(t, cert.Err)
	_, ok := cert.Err.(*kernel.ErrHypothesisMismatch)
	assert.True(t, ok)
}

func TestKernel_ApplyingUnknownTheoremErrors(t *testing.T) {
	syn, store, _, T := fixture(t)
	k := kernel.NewKernel(syn, store)

	wrong := &elaborate.Theorem{
		Name: "wrong", Conclusion: T,
		Tactic: elaborate.TacticSpec{TheoremName: "nonexistent"},
	}
	cert := k.Check(wrong)
	assert.Equal(t, kernel.StatusErrored, cert.Status)
	_, ok := cert.Err.(*kernel.ErrUnknownTarget)
	assert.True(t, ok)
}

func TestKernel_ApplyingAnErroredTheoremIsRejected(t *testing.T) {
	syn, store, _, T := fixture(t)
	k := kernel.NewKernel(syn, store)

	bad := &elaborate.Theorem{
		Name: "bad", Conclusion: T,
		Tactic: elaborate.TacticSpec{TheoremName: "nonexistent"},
	}
	k.Check(bad)

	wrong := &elaborate.Theorem{
		Name: "wrong", Conclusion: T,
		Tactic: elaborate.TacticSpec{TheoremName: "bad"},
	}
	cert := k.Check(wrong)
	assert.Equal(t, kernel.StatusErrored, cert.Status)
	_, ok := cert.Err.(*kernel.ErrTargetNotProved)
	assert.True(t, ok)
}
