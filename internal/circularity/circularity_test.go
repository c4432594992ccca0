package circularity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dragonhatcher/watson/internal/circularity"
	"github.com/dragonhatcher/watson/internal/elaborate"
)

func th(name, by string) *elaborate.Theorem {
	return &elaborate.Theorem{Name: name, Tactic: elaborate.TacticSpec{TheoremName: by}}
}

func axiom(name string) *elaborate.Theorem {
	return &elaborate.Theorem{Name: name, IsAxiom: true}
}

func TestOrder_LinearChainOrdersDependencyBeforeDependent(t *testing.T) {
	theorems := map[string]*elaborate.Theorem{
		"a": axiom("a"),
		"b": th("b", "a"),
		"c": th("c", "b"),
	}
	res := circularity.Order(theorems, []string{"a", "b", "c"})
	assert.Empty(t, res.Cycles)

	pos := map[string]int{}
	for i, n := range res.Order {
		pos[n] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["b"], pos["c"])
}

func TestOrder_DetectsMutualCycle(t *testing.T) {
	theorems := map[string]*elaborate.Theorem{
		"a": th("a", "b"),
		"b": th("b", "a"),
	}
	res := circularity.Order(theorems, []string{"a", "b"})
	require := assert.New(t)
	require.Len(res.Cycles, 1)
	require.ElementsMatch([]string{"a", "b"}, res.Cycles[0])
	require.True(res.Cyclic["a"])
	require.True(res.Cyclic["b"])
	require.ElementsMatch([]string{"a", "b"}, res.Order)
}

func TestOrder_DetectsSelfReference(t *testing.T) {
	theorems := map[string]*elaborate.Theorem{
		"a": th("a", "a"),
	}
	res := circularity.Order(theorems, []string{"a"})
	assert.Len(t, res.Cycles, 1)
	assert.Equal(t, []string{"a"}, res.Cycles[0])
	assert.True(t, res.Cyclic["a"])
	assert.Equal(t, []string{"a"}, res.Order)
}

func TestOrder_SizeOneComponentWithoutSelfEdgeIsNotACycle(t *testing.T) {
	theorems := map[string]*elaborate.Theorem{
		"a": axiom("a"),
		"b": th("b", "a"),
	}
	res := circularity.Order(theorems, []string{"a", "b"})
	assert.Empty(t, res.Cycles)
	assert.False(t, res.Cyclic["a"])
	assert.False(t, res.Cyclic["b"])
}

func TestOrder_DependentOnACyclicComponentIsOrderedAfterIt(t *testing.T) {
	theorems := map[string]*elaborate.Theorem{
		"a": th("a", "b"),
		"b": th("b", "a"),
		"c": th("c", "a"),
	}
	res := circularity.Order(theorems, []string{"a", "b", "c"})
	assert.Len(t, res.Cycles, 1)
	assert.False(t, res.Cyclic["c"])

	pos := map[string]int{}
	for i, n := range res.Order {
		pos[n] = i
	}
	assert.Less(t, pos["a"], pos["c"])
	assert.Less(t, pos["b"], pos["c"])
}
