package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonhatcher/watson/internal/parser"
	"github.com/dragonhatcher/watson/internal/parsestate"
)

func TestParser_ParsesSingleLiteralRule(t *testing.T) {
	ps := parsestate.New()
	sentence, err := ps.AddCategory("sentence", false)
	require.NoError(t, err)
	ps.AddRule(sentence, "truth", []parsestate.Part{
		{Kind: parsestate.PartLiteral, Text: "T"},
	}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)

	p := parser.New(ps, "main", "T")
	h, end, err := p.ParseAt(sentence, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, end)
	node := p.Forest().Node(h)
	require.Len(t, node.Possibilities, 1)
}

func TestParser_PackedForestSharesAmbiguousDerivations(t *testing.T) {
	ps := parsestate.New()
	sentence, err := ps.AddCategory("sentence", false)
	require.NoError(t, err)
	// Two rules deriving the identical span "T": genuine ambiguity, both
	// possibilities must survive in one packed Node (spec §4.D).
	ps.AddRule(sentence, "truth-a", []parsestate.Part{{Kind: parsestate.PartLiteral, Text: "T"}}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)
	ps.AddRule(sentence, "truth-b", []parsestate.Part{{Kind: parsestate.PartLiteral, Text: "T"}}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)

	p := parser.New(ps, "main", "T")
	h, _, err := p.ParseAt(sentence, 0)
	require.NoError(t, err)
	assert.Len(t, p.Forest().Node(h).Possibilities, 2)
}

func TestParser_NoDerivationReportsLongestPrefix(t *testing.T) {
	ps := parsestate.New()
	sentence, err := ps.AddCategory("sentence", false)
	require.NoError(t, err)
	ps.AddRule(sentence, "truth", []parsestate.Part{
		{Kind: parsestate.PartLiteral, Text: "T"},
		{Kind: parsestate.PartLiteral, Text: "F"},
	}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)

	p := parser.New(ps, "main", "T Q")
	_, _, err = p.ParseAt(sentence, 0)
	require.Error(t, err)
	failure, ok := err.(*parser.Failure)
	require.True(t, ok)
	assert.Equal(t, 1, failure.LongestOK)
}

func TestParser_AtomFullSpanIncludesLeadingTrivia(t *testing.T) {
	ps := parsestate.New()
	sentence, err := ps.AddCategory("sentence", false)
	require.NoError(t, err)
	ps.AddRule(sentence, "truth", []parsestate.Part{
		{Kind: parsestate.PartLiteral, Text: "T"},
	}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)

	p := parser.New(ps, "main", "  T")
	h, end, err := p.ParseAt(sentence, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, end)

	node := p.Forest().Node(h)
	atom := node.Possibilities[0].Children[0].Atom
	assert.Equal(t, 0, atom.FullSpan.StartByte, "full span should include the leading whitespace")
	assert.Equal(t, 2, atom.ContentSpan.StartByte, "content span should start at the literal itself")
	assert.Equal(t, 3, atom.ContentSpan.EndByte)
}

func TestParser_KeywordIsNotMatchedAsName(t *testing.T) {
	ps := parsestate.New()
	sentence, err := ps.AddCategory("sentence", false)
	require.NoError(t, err)
	ps.AddRule(sentence, "uses-kw", []parsestate.Part{
		{Kind: parsestate.PartKeyword, Text: "end"},
	}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)
	ps.AddRule(sentence, "uses-name", []parsestate.Part{
		{Kind: parsestate.PartName},
	}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)

	p := parser.New(ps, "main", "end")
	h, end, err := p.ParseAt(sentence, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, end)
	// "end" is reserved: only the keyword rule should match it, not the
	// name rule (spec §4.D "Name ... fails if the lexeme coincides with a
	// token the surrounding grammar would prefer as a keyword").
	require.Len(t, p.Forest().Node(h).Possibilities, 1)
}
