package macro_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonhatcher/watson/internal/macro"
	"github.com/dragonhatcher/watson/internal/parser"
	"github.com/dragonhatcher/watson/internal/parsestate"
)

// setup builds `sentence ::= "T"` plus a builtin `and(sentence, sentence)`
// rule, then registers the macro `$x: sentence "&" $y: sentence => and(x,
// y) end` — the shape of spec §8 scenario S6.
func setup(t *testing.T) (*parsestate.State, parsestate.CatID, parsestate.RuleID, *macro.Registry) {
	t.Helper()
	ps := parsestate.New()
	sentence, err := ps.AddCategory("sentence", false)
	require.NoError(t, err)
	ps.AddRule(sentence, "truth", []parsestate.Part{{Kind: parsestate.PartLiteral, Text: "T"}}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)
	andRule := ps.AddRule(sentence, "and", []parsestate.Part{
		{Kind: parsestate.PartCatRef, Cat: sentence},
		{Kind: parsestate.PartCatRef, Cat: sentence},
	}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)

	reg := macro.NewRegistry(ps)
	_, err = reg.Declare("and_sym", sentence, []macro.Part{
		{Kind: macro.PartBinding, Bind: "x", Cat: sentence},
		{Kind: macro.PartLiteral, Text: "&"},
		{Kind: macro.PartBinding, Bind: "y", Cat: sentence},
	}, macro.ReplPart{
		Rule: andRule,
		Cat:  sentence,
		Children: []macro.ReplPart{
			{IsBindingRef: true, Bind: "x"},
			{IsBindingRef: true, Bind: "y"},
		},
	})
	require.NoError(t, err)
	return ps, sentence, andRule, reg
}

func TestMacro_ReduceToBuiltinExpandsMacroPossibility(t *testing.T) {
	ps, sentence, andRule, reg := setup(t)
	p := parser.New(ps, "main", "T & T")
	h, end, err := p.ParseAt(sentence, 0)
	require.NoError(t, err)
	require.Equal(t, 5, end)

	expander := macro.NewExpander(ps, p.Forest(), reg)
	reduced, err := expander.Reduce(h)
	require.NoError(t, err)

	node := p.Forest().Node(reduced)
	require.Len(t, node.Possibilities, 1)
	assert.Equal(t, andRule, node.Possibilities[0].Rule)
	require.Len(t, node.Possibilities[0].Children, 2)
	assert.False(t, node.Possibilities[0].Children[0].IsAtom)
}

func TestMacro_DuplicateNameIsRejected(t *testing.T) {
	_, sentence, _, reg := setup(t)
	_, err := reg.Declare("and_sym", sentence, nil, macro.ReplPart{})
	assert.Error(t, err)
}
