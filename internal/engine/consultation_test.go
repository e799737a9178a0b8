package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/visa-advisor/pkg/models"
)

func newSession(defs ...models.RuleDefinition) *Consultation {
	return NewConsultation(NewRuleSet(defs))
}

func TestConsultationSingleTerminalRule(t *testing.T) {
	c := newSession(
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"a", "b"}, []string{"eligible"}, 10),
	)

	result := c.Start()
	require.Equal(t, StateAwaitingAnswer, result.State)
	assert.Equal(t, "a", result.Question)

	result, err := c.Answer("a", true)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingAnswer, result.State)
	assert.Equal(t, "b", result.Question)

	result, err = c.Answer("b", true)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, result.State)
	assert.Equal(t, map[string]bool{"eligible": true}, result.Results)
	assert.Equal(t, "grant", result.AppliedRule)
}

func TestConsultationChainedFiring(t *testing.T) {
	c := newSession(
		def("derive", models.LogicAnd, models.CategoryIntermediate,
			[]string{"a"}, []string{"b"}, 10),
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"b"}, []string{"c"}, 20),
	)

	result := c.Start()
	require.Equal(t, StateAwaitingAnswer, result.State)
	assert.Equal(t, "a", result.Question, "derivable conditions are never asked")

	result, err := c.Answer("a", true)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, result.State)
	assert.Equal(t, map[string]bool{"b": true, "c": true}, result.Results,
		"intermediate conclusion fires the terminal rule in the same step")
	assert.Equal(t, "grant", result.AppliedRule)
}

func TestConsultationImpossibleOnFalseTerminalCondition(t *testing.T) {
	c := newSession(
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"a", "b"}, []string{"eligible"}, 10),
	)

	c.Start()
	result, err := c.Answer("a", false)
	require.NoError(t, err)
	assert.Equal(t, StateImpossible, result.State)
	assert.Empty(t, result.Results)
}

func TestConsultationOrTerminalFalseConditionIsImpossible(t *testing.T) {
	c := newSession(
		def("grant", models.LogicOr, models.CategoryTerminal,
			[]string{"a", "b"}, []string{"eligible"}, 10),
	)

	c.Start()
	result, err := c.Answer("a", false)
	require.NoError(t, err)
	assert.Equal(t, StateImpossible, result.State,
		"one false condition ends the session even under OR combination")
}

func TestConsultationFalseIntermediateCompletesEmpty(t *testing.T) {
	c := newSession(
		def("derive", models.LogicAnd, models.CategoryIntermediate,
			[]string{"a"}, []string{"b"}, 10),
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"b"}, []string{"c"}, 20),
	)

	c.Start()
	result, err := c.Answer("a", false)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State,
		"no question left and no terminal condition explicitly false")
	assert.Empty(t, result.Results)
}

func TestConsultationSkipsUnnecessaryQuestions(t *testing.T) {
	// Rule "dead" consumes x but produces nothing any terminal rule
	// needs, so x must never be asked.
	c := newSession(
		def("dead", models.LogicAnd, models.CategoryIntermediate,
			[]string{"x"}, []string{"unused"}, 10),
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"a"}, []string{"eligible"}, 20),
	)

	result := c.Start()
	require.Equal(t, StateAwaitingAnswer, result.State)
	assert.Equal(t, "a", result.Question)
}

func TestConsultationAcceptsUnaskedAnswerKey(t *testing.T) {
	c := newSession(
		def("grant1", models.LogicAnd, models.CategoryTerminal,
			[]string{"a", "b"}, []string{"eligible1"}, 10),
		def("grant2", models.LogicOr, models.CategoryTerminal,
			[]string{"c", "d"}, []string{"eligible2"}, 20),
	)

	c.Start()
	result, err := c.Answer("c", true)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, result.State)
	assert.Equal(t, "grant2", result.AppliedRule)
}

func TestConsultationAnswerBeforeStart(t *testing.T) {
	c := newSession(
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"a"}, []string{"eligible"}, 10),
	)

	_, err := c.Answer("a", true)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestConsultationGoBack(t *testing.T) {
	c := newSession(
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"a", "b"}, []string{"eligible"}, 10),
	)

	c.Start()
	_, err := c.Answer("a", true)
	require.NoError(t, err)

	result, err := c.GoBack()
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAnswer, result.State)
	assert.Equal(t, "a", result.Question, "undoing the answer re-asks it")
	assert.Empty(t, c.Status().Findings)

	_, err = c.GoBack()
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestConsultationGoBackRestoresFiredRules(t *testing.T) {
	c := newSession(
		def("derive", models.LogicAnd, models.CategoryIntermediate,
			[]string{"a"}, []string{"b"}, 10),
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"b", "c"}, []string{"eligible"}, 20),
	)

	c.Start()
	result, err := c.Answer("a", true)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingAnswer, result.State)
	require.Equal(t, "c", result.Question)
	require.Len(t, c.Status().AppliedRules, 1)

	result, err = c.GoBack()
	require.NoError(t, err)
	assert.Equal(t, "a", result.Question)
	assert.Empty(t, c.Status().AppliedRules)
	assert.Empty(t, c.Status().Hypotheses)

	derive, ok := c.rules.Get("derive")
	require.True(t, ok)
	assert.False(t, derive.IsFired())
}

func TestConsultationStatusIsIdempotent(t *testing.T) {
	c := newSession(
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"a", "b"}, []string{"eligible"}, 10),
	)

	c.Start()
	_, err := c.Answer("a", true)
	require.NoError(t, err)

	first := c.Status()
	first.Findings["b"] = true
	second := c.Status()

	assert.Equal(t, StateAwaitingAnswer, second.State)
	assert.Equal(t, map[string]bool{"a": true}, second.Findings)
	assert.Equal(t, []string{"grant"}, second.PendingRules)
}

func TestConsultationAppliedRuleCapturesKnownConditions(t *testing.T) {
	c := newSession(
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"a", "b"}, []string{"eligible"}, 10),
	)

	c.Start()
	_, err := c.Answer("a", true)
	require.NoError(t, err)
	_, err = c.Answer("b", true)
	require.NoError(t, err)

	status := c.Status()
	require.Len(t, status.AppliedRules, 1)
	assert.Equal(t, "grant", status.AppliedRules[0].Name)
	assert.Equal(t, map[string]bool{"a": true, "b": true}, status.AppliedRules[0].KnownConditions)
}

func TestConsultationReset(t *testing.T) {
	c := newSession(
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"a"}, []string{"eligible"}, 10),
	)

	c.Start()
	_, err := c.Answer("a", true)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, c.Status().State)

	c.Reset()
	status := c.Status()
	assert.Equal(t, StateReady, status.State)
	assert.Empty(t, status.Findings)
	assert.Empty(t, status.AppliedRules)

	result := c.Start()
	assert.Equal(t, "a", result.Question, "session is reusable after reset")
}

func TestConsultationReasoningChain(t *testing.T) {
	c := newSession(
		def("derive", models.LogicAnd, models.CategoryIntermediate,
			[]string{"a", "b"}, []string{"c"}, 30),
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"c"}, []string{"eligible"}, 10),
	)

	result := c.Start()
	require.Equal(t, StateAwaitingAnswer, result.State)
	require.Equal(t, "a", result.Question)
	require.Len(t, result.ReasoningChain, 2)

	assert.Equal(t, "grant", result.ReasoningChain[0].Name, "chain is sorted by ascending priority")
	assert.Equal(t, "derive", result.ReasoningChain[1].Name)

	derive := result.ReasoningChain[1]
	require.Len(t, derive.Conditions, 2)
	assert.Equal(t, ConditionCurrent, derive.Conditions[0].Status)
	assert.Equal(t, ConditionUnknown, derive.Conditions[1].Status)

	result, err := c.Answer("a", true)
	require.NoError(t, err)
	require.Equal(t, "b", result.Question)
	derive = result.ReasoningChain[1]
	assert.Equal(t, ConditionSatisfied, derive.Conditions[0].Status)
	assert.Equal(t, ConditionCurrent, derive.Conditions[1].Status)
}

func TestConsultationFiredRulesStayInChain(t *testing.T) {
	c := newSession(
		def("derive", models.LogicAnd, models.CategoryIntermediate,
			[]string{"a"}, []string{"b"}, 10),
		def("grant", models.LogicAnd, models.CategoryTerminal,
			[]string{"b", "c"}, []string{"eligible"}, 20),
	)

	c.Start()
	result, err := c.Answer("a", true)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingAnswer, result.State)
	require.Equal(t, "c", result.Question)

	var names []string
	for _, r := range result.ReasoningChain {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "derive", "already fired rules remain visible in the chain")
	for _, r := range result.ReasoningChain {
		if r.Name == "derive" {
			assert.True(t, r.Fired)
		}
	}
}

func TestConsultationConflictResolutionByInsertionOrder(t *testing.T) {
	c := newSession(
		def("later", models.LogicAnd, models.CategoryTerminal,
			[]string{"a"}, []string{"outcome1"}, 50),
		def("earlier", models.LogicAnd, models.CategoryTerminal,
			[]string{"a"}, []string{"outcome2"}, 10),
	)

	c.Start()
	result, err := c.Answer("a", true)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, result.State)
	assert.Equal(t, "later", result.AppliedRule,
		"first rule by insertion order fires, priority does not reorder the conflict set")
}
