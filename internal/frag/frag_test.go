package frag_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dragonhatcher/watson/internal/frag"
	"github.com/dragonhatcher/watson/internal/parsestate"
	"github.com/dragonhatcher/watson/internal/syntax"
)

// setup builds a tiny formal grammar: `sentence ::= "T"` (truth, no
// children) and `sentence ::= sentence "->" %x sentence @x` standing in
// for an implication binding a single name — enough to exercise rule
// applications, binders, and de Bruijn variables.
func setup(t *testing.T) (*syntax.Registry, *frag.Store, syntax.FCatID, syntax.FRuleID, syntax.FRuleID) {
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

	implies, err := syn.DeclareRule("implies", sentence, []syntax.FPart{
		{Kind: syntax.FPartChild, Cat: sentence},
		{Kind: syntax.FPartBinder, BinderName: "x"},
		{Kind: syntax.FPartChild, Cat: sentence},
		{Kind: syntax.FPartVar, RefersTo: 1},
	}, 0, parsestate.AssocNone)
	require.NoError(t, err)

	store := frag.NewStore(syn)
	return syn, store, sentence, truth, implies
}

func TestStore_InternIsIdempotentByHandle(t *testing.T) {
	_, store, sentence, truth, _ := setup(t)
	h1 := store.RuleApplication(sentence, truth, nil)
	h2 := store.RuleApplication(sentence, truth, nil)
	require.Equal(t, h1, h2)
}

func TestStore_HoleFlagsPropagateFromChildren(t *testing.T) {
	_, store, sentence, truth, implies := setup(t)
	t1 := store.RuleApplication(sentence, truth, nil)
	holeChild := store.Hole(sentence, 0)

	plain := store.RuleApplication(sentence, implies, []frag.Handle{t1, t1})
	require.False(t, store.Get(plain).HasHole)

	withHole := store.RuleApplication(sentence, implies, []frag.Handle{holeChild, t1})
	require.True(t, store.Get(withHole).HasHole)
}

func TestStore_FillHolesReplacesOnlyMatchingIndex(t *testing.T) {
	_, store, sentence, truth, implies := setup(t)
	t1 := store.RuleApplication(sentence, truth, nil)
	hole0 := store.Hole(sentence, 0)

	templ := store.RuleApplication(sentence, implies, []frag.Handle{hole0, t1})
	filled := store.FillHoles(templ, []frag.Handle{t1})

	require.Equal(t, store.RuleApplication(sentence, implies, []frag.Handle{t1, t1}), filled)
	require.False(t, store.Get(filled).HasHole)
}

func TestStore_FillHolesShiftsFillerUnderEnclosingBinder(t *testing.T) {
	_, store, sentence, truth, implies := setup(t)
	t1 := store.RuleApplication(sentence, truth, nil)
	hole0 := store.Hole(sentence, 0)

	// implies's consequent (child index 2) sits under the one binder
	// implies itself introduces, so a Hole planted there needs its filler
	// shifted by 1.
	templ := store.RuleApplication(sentence, implies, []frag.Handle{t1, hole0, store.Var(sentence, 0)})

	// filler references the nearest binder in its own (shallower) origin
	// context; once planted under implies's binder it must skip past it
	// to keep pointing at the same thing, i.e. become Var(1).
	filler := store.Var(sentence, 0)
	filled := store.FillHoles(templ, []frag.Handle{filler})

	want := store.RuleApplication(sentence, implies, []frag.Handle{t1, store.Var(sentence, 1), store.Var(sentence, 0)})
	require.Equal(t, want, filled)
}

func TestStore_FillHolesDoesNotShiftAtDepthZero(t *testing.T) {
	_, store, sentence, truth, implies := setup(t)
	t1 := store.RuleApplication(sentence, truth, nil)
	hole0 := store.Hole(sentence, 0)

	// implies's antecedent (child index 0) sits under no binder, so a
	// filler there is planted verbatim.
	templ := store.RuleApplication(sentence, implies, []frag.Handle{hole0, t1, store.Var(sentence, 0)})
	filler := store.Var(sentence, 0)
	filled := store.FillHoles(templ, []frag.Handle{filler})

	want := store.RuleApplication(sentence, implies, []frag.Handle{filler, t1, store.Var(sentence, 0)})
	require.Equal(t, want, filled)
}

func TestStore_FillHolesNoOpWithoutHasHole(t *testing.T) {
	_, store, sentence, truth, _ := setup(t)
	t1 := store.RuleApplication(sentence, truth, nil)
	require.Equal(t, t1, store.FillHoles(t1, nil))
}

func TestStore_SubstituteTemplatesFillsArgHoles(t *testing.T) {
	_, store, sentence, truth, _ := setup(t)
	t1 := store.RuleApplication(sentence, truth, nil)

	// TemplateRef(0, [t1]) substituted with template t_0 = Hole(0): the
	// template's hole is filled by the reference's argument t1.
	arg := t1
	ref := store.TemplateRef(sentence, 0, []frag.Handle{arg})
	require.True(t, store.Get(ref).HasTemplate)

	out := store.SubstituteTemplates(ref, []frag.Handle{store.Hole(sentence, 0)})
	require.Equal(t, t1, out)
}

func TestStore_SubstituteTemplatesNoOpWithoutHasTemplate(t *testing.T) {
	_, store, sentence, truth, _ := setup(t)
	t1 := store.RuleApplication(sentence, truth, nil)
	require.Equal(t, t1, store.SubstituteTemplates(t1, nil))
}

func TestStore_IsClosedRejectsFreeVar(t *testing.T) {
	_, store, sentence, _, _ := setup(t)
	free := store.Var(sentence, 0)
	require.False(t, store.IsClosed(free))
}

func TestStore_IsClosedAcceptsVarBoundByEnclosingBinder(t *testing.T) {
	_, store, sentence, truth, implies := setup(t)
	t1 := store.RuleApplication(sentence, truth, nil)
	// implies has three child-producing parts (antecedent, consequent,
	// the `@x` occurrence); its own binder covers the trailing Var(0), so
	// a whole implies application is closed even though its rightmost
	// child is a Var.
	bound := store.RuleApplication(sentence, implies, []frag.Handle{t1, t1, store.Var(sentence, 0)})
	require.True(t, store.IsClosed(bound))
}

func TestStore_IsClosedRejectsVarHole(t *testing.T) {
	_, store, sentence, _, _ := setup(t)
	vh := store.VarHole(sentence, 0)
	require.False(t, store.IsClosed(vh))
}
