package models

// CombinationLogic controls how a rule combines its conditions.
type CombinationLogic string

const (
	LogicAnd CombinationLogic = "AND"
	LogicOr  CombinationLogic = "OR"
)

// RuleCategory distinguishes rules that conclude a consultation from
// intermediate rules that only derive hypotheses.
type RuleCategory string

const (
	CategoryTerminal     RuleCategory = "terminal"
	CategoryIntermediate RuleCategory = "intermediate"
)

// RuleDefinition is the plain, immutable record a rule is built from.
// Both the builtin rule base and rules loaded from the database produce
// the same shape, so a single evaluator serves both origins.
type RuleDefinition struct {
	Name       string           `json:"name" yaml:"name"`
	VisaType   string           `json:"visa_type" yaml:"visa_type"`
	Category   RuleCategory     `json:"rule_type" yaml:"rule_type"`
	Logic      CombinationLogic `json:"condition_logic" yaml:"condition_logic"`
	Conditions []string         `json:"conditions" yaml:"conditions"`
	Actions    []string         `json:"actions" yaml:"actions"`
	Priority   int              `json:"priority" yaml:"priority"`
}

// Terminal reports whether firing this rule concludes a consultation.
func (d RuleDefinition) Terminal() bool {
	return d.Category == CategoryTerminal
}

// QuestionRank is one entry of the ranked-question output: how many
// terminal rules require the question and the smallest leaf-question
// set among those rules.
type QuestionRank struct {
	Question        string `json:"question"`
	RequiredByCount int    `json:"rule_count"`
	MinLeafSetSize  int    `json:"min_questions"`
}
