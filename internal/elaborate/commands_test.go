package elaborate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonhatcher/watson/internal/elaborate"
)

func TestNextCommand_ScansModule(t *testing.T) {
	cmd, end, err := elaborate.NextCommand("main", "module helper", 0)
	require.NoError(t, err)
	assert.Equal(t, elaborate.CmdModule, cmd.Kind)
	assert.Equal(t, "helper", cmd.Module)
	assert.Equal(t, len("module helper"), end)
}

func TestNextCommand_ScansSyntaxCategory(t *testing.T) {
	cmd, _, err := elaborate.NextCommand("main", "syntax_category sentence", 0)
	require.NoError(t, err)
	assert.Equal(t, elaborate.CmdSyntaxCategory, cmd.Kind)
	assert.Equal(t, "sentence", cmd.SyntaxCategory)
}

func TestNextCommand_ScansSyntaxRuleWithLiteralPart(t *testing.T) {
	cmd, _, err := elaborate.NextCommand("main", `syntax truth sentence ::= "T" end`, 0)
	require.NoError(t, err)
	assert.Equal(t, elaborate.CmdSyntax, cmd.Kind)
	assert.Equal(t, "truth", cmd.RuleName)
	assert.Equal(t, "sentence", cmd.RuleCat)
	require.Len(t, cmd.RuleParts, 1)
	assert.Equal(t, "literal", cmd.RuleParts[0].Kind)
	assert.Equal(t, "T", cmd.RuleParts[0].Text)
}

func TestNextCommand_ScansNotationWithPrecedenceAndAssociativity(t *testing.T) {
	cmd, _, err := elaborate.NextCommand("main", `notation and sentence 10 left ::= $sentence "&" $sentence end`, 0)
	require.NoError(t, err)
	assert.Equal(t, elaborate.CmdNotation, cmd.Kind)
	assert.Equal(t, 10, cmd.RulePrec)
	require.Len(t, cmd.RuleParts, 3)
	assert.Equal(t, "cat", cmd.RuleParts[0].Kind)
	assert.Equal(t, "sentence", cmd.RuleParts[0].CatName)
}

func TestNextCommand_ScansMacroWithBindingCaptures(t *testing.T) {
	cmd, _, err := elaborate.NextCommand("main", `macro and_sym ::= $x: sentence "&" $y: sentence => and(x, y) end`, 0)
	require.NoError(t, err)
	assert.Equal(t, elaborate.CmdMacro, cmd.Kind)
	assert.Equal(t, "and_sym", cmd.MacroName)
	require.Len(t, cmd.MacroPattern, 3)
	assert.Equal(t, "bind", cmd.MacroPattern[0].Kind)
	assert.Equal(t, "x", cmd.MacroPattern[0].Bind)
	assert.False(t, cmd.MacroReplSpan.Zero())
}

func TestNextCommand_ScansAxiomWithoutHypotheses(t *testing.T) {
	cmd, _, err := elaborate.NextCommand("main", `axiom triv : |- T end`, 0)
	require.NoError(t, err)
	assert.Equal(t, elaborate.CmdAxiom, cmd.Kind)
	assert.True(t, cmd.IsAxiom)
	assert.Equal(t, "triv", cmd.TheoremName)
	assert.Empty(t, cmd.Hyps)
}

func TestNextCommand_ScansAxiomWithTemplatesAndHypotheses(t *testing.T) {
	cmd, _, err := elaborate.NextCommand("main", `axiom imp [A: sentence][B: sentence] : (A) |- B end`, 0)
	require.NoError(t, err)
	require.Len(t, cmd.Templates, 2)
	assert.Equal(t, "A", cmd.Templates[0].Name)
	assert.Equal(t, "sentence", cmd.Templates[0].Cat)
	require.Len(t, cmd.Hyps, 1)
}

func TestNextCommand_ScansTheoremWithProofTactic(t *testing.T) {
	cmd, end, err := elaborate.NextCommand("main", `theorem triv2 : |- T proof by triv qed`, 0)
	require.NoError(t, err)
	assert.Equal(t, elaborate.CmdTheorem, cmd.Kind)
	assert.False(t, cmd.IsAxiom)
	assert.Equal(t, "triv2", cmd.TheoremName)
	assert.False(t, cmd.Tactic.Span.Zero())
	assert.Equal(t, len(`theorem triv2 : |- T proof by triv qed`), end)
}

func TestNextCommand_ErrorsOnUnrecognizedKeyword(t *testing.T) {
	_, _, err := elaborate.NextCommand("main", "bogus stuff here", 0)
	require.Error(t, err)
	var parseErr *elaborate.ErrParse
	require.ErrorAs(t, err, &parseErr)
}

func TestNextCommand_ErrorsAtEndOfInput(t *testing.T) {
	_, _, err := elaborate.NextCommand("main", "   ", 0)
	require.Error(t, err)
}
