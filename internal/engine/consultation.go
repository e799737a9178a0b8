package engine

import (
	"errors"
	"sort"

	"github.com/todmy/visa-advisor/pkg/models"
)

var (
	// ErrNotStarted is returned when an answer arrives before Start.
	ErrNotStarted = errors.New("consultation has not been started")
	// ErrNoHistory is returned by GoBack when the undo stack is empty.
	ErrNoHistory = errors.New("no snapshot to roll back to")
)

// State is the consultation lifecycle state.
type State string

const (
	StateReady          State = "ready"
	StateAwaitingAnswer State = "awaiting_answer"
	StateCompleted      State = "completed"
	StateImpossible     State = "impossible"
)

// ConditionStatus tags a reasoning-chain condition.
type ConditionStatus string

const (
	ConditionCurrent     ConditionStatus = "current"
	ConditionSatisfied   ConditionStatus = "satisfied"
	ConditionUnsatisfied ConditionStatus = "unsatisfied"
	ConditionUnknown     ConditionStatus = "unknown"
)

// ChainCondition is one annotated condition of a reasoning-chain rule.
type ChainCondition struct {
	Condition string          `json:"condition"`
	Status    ConditionStatus `json:"status"`
}

// ChainRule renders one rule of the reasoning chain.
type ChainRule struct {
	Name       string                  `json:"name"`
	Category   models.RuleCategory     `json:"rule_type"`
	Logic      models.CombinationLogic `json:"condition_logic"`
	Priority   int                     `json:"priority"`
	Fired      bool                    `json:"fired"`
	Conditions []ChainCondition        `json:"conditions"`
	Actions    []string                `json:"actions"`
}

// AppliedRule records a rule firing together with the subset of its
// conditions that had a known value at the moment it fired.
type AppliedRule struct {
	Name            string          `json:"rule_name"`
	KnownConditions map[string]bool `json:"known_conditions"`
}

// StepResult is the outcome of one inference step: either a question to
// put to the user, a conclusion, or the impossibility verdict.
type StepResult struct {
	State          State           `json:"status"`
	Question       string          `json:"question,omitempty"`
	ReasoningChain []ChainRule     `json:"reasoning_chain,omitempty"`
	Results        map[string]bool `json:"results,omitempty"`
	AppliedRule    string          `json:"applied_rule,omitempty"`
}

// StatusReport is the idempotent snapshot returned by Status.
type StatusReport struct {
	State        State           `json:"status"`
	Findings     map[string]bool `json:"findings"`
	Hypotheses   map[string]bool `json:"hypotheses"`
	PendingRules []string        `json:"pending_rules"`
	AppliedRules []AppliedRule   `json:"applied_rules"`
}

type snapshot struct {
	findings   map[string]bool
	hypotheses map[string]bool
	fired      map[string]bool
	applied    []AppliedRule
	evaluating map[string]bool
}

// Consultation drives the ask-fire loop for one session against one
// rule set. All methods must be called sequentially; a Consultation has
// no internal locking and is never shared between goroutines.
type Consultation struct {
	memory     *WorkingMemory
	rules      *RuleSet
	derivable  map[string]bool
	conflict   []*Rule
	pending    []*Rule
	evaluating map[string]bool
	applied    []AppliedRule
	undo       []snapshot
	state      State
}

// NewConsultation creates a session over the given rule set. The rule
// set's fired flags belong to this session; do not reuse the set.
func NewConsultation(rules *RuleSet) *Consultation {
	derivable := make(map[string]bool)
	for _, r := range rules.Rules() {
		for _, action := range r.Actions() {
			derivable[action] = true
		}
	}
	return &Consultation{
		memory:     NewWorkingMemory(),
		rules:      rules,
		derivable:  derivable,
		evaluating: make(map[string]bool),
		state:      StateReady,
	}
}

// Start resets all session state and runs the first inference step.
func (c *Consultation) Start() StepResult {
	c.Reset()
	return c.step()
}

// Answer records a user-supplied finding and advances the inference.
// A snapshot is pushed first, so GoBack undoes exactly one answer.
func (c *Consultation) Answer(key string, value bool) (StepResult, error) {
	if c.state == StateReady {
		return StepResult{}, ErrNotStarted
	}
	c.SaveSnapshot()
	c.memory.SetFinding(key, value)
	return c.step(), nil
}

// Status reports the current session state without mutating it.
func (c *Consultation) Status() StatusReport {
	active := c.pending
	if c.state != StateAwaitingAnswer {
		active = c.conflict
	}
	names := make([]string, len(active))
	for i, r := range active {
		names[i] = r.Name()
	}
	applied := make([]AppliedRule, len(c.applied))
	for i, a := range c.applied {
		applied[i] = AppliedRule{Name: a.Name, KnownConditions: copyFacts(a.KnownConditions)}
	}
	return StatusReport{
		State:        c.state,
		Findings:     c.memory.Findings(),
		Hypotheses:   c.memory.Hypotheses(),
		PendingRules: names,
		AppliedRules: applied,
	}
}

// Reset clears all mutable session state and returns to Ready. The
// rule set reference is kept.
func (c *Consultation) Reset() {
	c.memory.Clear()
	c.rules.resetFired()
	c.conflict = nil
	c.pending = nil
	c.evaluating = make(map[string]bool)
	c.applied = nil
	c.undo = nil
	c.state = StateReady
}

// SaveSnapshot deep-copies the restorable session state onto the undo
// stack: both fact maps, applied-rule history, fired flags, and the
// evaluating set.
func (c *Consultation) SaveSnapshot() {
	applied := make([]AppliedRule, len(c.applied))
	for i, a := range c.applied {
		applied[i] = AppliedRule{Name: a.Name, KnownConditions: copyFacts(a.KnownConditions)}
	}
	c.undo = append(c.undo, snapshot{
		findings:   c.memory.Findings(),
		hypotheses: c.memory.Hypotheses(),
		fired:      c.rules.firedFlags(),
		applied:    applied,
		evaluating: copyFacts(c.evaluating),
	})
}

// GoBack pops the most recent snapshot, restores it, and re-runs the
// step procedure so the caller gets the directive for the restored
// state.
func (c *Consultation) GoBack() (StepResult, error) {
	if len(c.undo) == 0 {
		return StepResult{}, ErrNoHistory
	}
	snap := c.undo[len(c.undo)-1]
	c.undo = c.undo[:len(c.undo)-1]
	c.memory.restore(snap.findings, snap.hypotheses)
	c.rules.restoreFired(snap.fired)
	c.applied = snap.applied
	c.evaluating = snap.evaluating
	return c.step(), nil
}

// step runs the inference procedure: fire every eligible rule in
// insertion order (re-checking impossibility before each firing) until
// a terminal rule concludes the session, then fall through to question
// discovery or completion.
func (c *Consultation) step() StepResult {
	for {
		if c.terminalBlocked() {
			c.state = StateImpossible
			c.pending = nil
			c.conflict = nil
			return StepResult{State: StateImpossible}
		}

		c.conflict = c.selectApplicableRules()
		if len(c.conflict) == 0 {
			break
		}

		rule := c.conflict[0]
		c.applyRule(rule)
		if rule.Terminal() {
			c.state = StateCompleted
			return StepResult{
				State:       StateCompleted,
				Results:     c.memory.Hypotheses(),
				AppliedRule: rule.Name(),
			}
		}
	}

	question := c.nextQuestion()
	if question == "" {
		c.state = StateCompleted
		c.pending = nil
		return StepResult{State: StateCompleted, Results: c.memory.Hypotheses()}
	}

	c.pending = c.pendingRulesFor(question)
	c.extendEvaluating(c.pending)
	c.state = StateAwaitingAnswer
	return StepResult{
		State:          StateAwaitingAnswer,
		Question:       question,
		ReasoningChain: c.reasoningChain(question),
	}
}

// terminalBlocked implements the negative short-circuit: any unfired
// terminal rule with an explicitly false condition ends the session.
// OR-combination terminal rules are not special-cased.
func (c *Consultation) terminalBlocked() bool {
	for _, r := range c.rules.Rules() {
		if r.IsFired() || !r.Terminal() {
			continue
		}
		for _, cond := range r.Conditions() {
			if c.memory.GetValue(cond) == False {
				return true
			}
		}
	}
	return false
}

func (c *Consultation) selectApplicableRules() []*Rule {
	var applicable []*Rule
	for _, r := range c.rules.Rules() {
		if r.IsFired() {
			continue
		}
		if r.CheckSatisfied(c.memory) {
			applicable = append(applicable, r)
		}
	}
	return applicable
}

func (c *Consultation) applyRule(rule *Rule) {
	known := make(map[string]bool)
	for _, cond := range rule.Conditions() {
		if v := c.memory.GetValue(cond); v.Known() {
			known[cond] = v == True
		}
	}
	rule.ExecuteActions(c.memory)
	rule.Fire()
	c.applied = append(c.applied, AppliedRule{Name: rule.Name(), KnownConditions: known})
}

// nextQuestion scans unfired rules in insertion order for the first
// condition that is not derivable from any rule, has no known value,
// and is still necessary for reaching some terminal conclusion.
func (c *Consultation) nextQuestion() string {
	for _, r := range c.rules.Rules() {
		if r.IsFired() {
			continue
		}
		for _, cond := range r.Conditions() {
			if c.derivable[cond] || c.memory.HasKey(cond) {
				continue
			}
			if c.conditionNecessary(r, cond, map[string]bool{}) {
				return cond
			}
		}
	}
	return ""
}

// conditionNecessary decides whether asking candidate is still useful
// as a condition of rule. An AND rule with another explicitly false
// condition can never fire, so it justifies nothing. Otherwise the rule
// justifies the question if it is terminal, or if one of its actions is
// in turn needed by some other unfired rule. The visited path is copied
// per branch, so a rule reachable on several sibling branches is
// explored once per path.
func (c *Consultation) conditionNecessary(rule *Rule, candidate string, path map[string]bool) bool {
	if rule.Logic() != models.LogicOr {
		for _, other := range rule.Conditions() {
			if other == candidate {
				continue
			}
			if c.memory.GetValue(other) == False {
				return false
			}
		}
	}
	if rule.Terminal() {
		return true
	}
	for _, action := range rule.Actions() {
		for _, consumer := range c.rules.Rules() {
			if consumer.IsFired() || consumer.Name() == rule.Name() || path[consumer.Name()] {
				continue
			}
			if !consumer.hasCondition(action) {
				continue
			}
			branch := copyFacts(path)
			branch[rule.Name()] = true
			if c.conditionNecessary(consumer, action, branch) {
				return true
			}
		}
	}
	return false
}

// pendingRulesFor collects the unfired rules blocked on the question,
// excluding AND rules already disqualified by a sibling false
// condition.
func (c *Consultation) pendingRulesFor(question string) []*Rule {
	var pending []*Rule
	for _, r := range c.rules.Rules() {
		if r.IsFired() || !r.hasCondition(question) {
			continue
		}
		if r.Logic() != models.LogicOr && c.disqualified(r, question) {
			continue
		}
		pending = append(pending, r)
	}
	return pending
}

func (c *Consultation) disqualified(rule *Rule, question string) bool {
	for _, cond := range rule.Conditions() {
		if cond == question {
			continue
		}
		if c.memory.GetValue(cond) == False {
			return true
		}
	}
	return false
}

// extendEvaluating adds the pending rules and, transitively, every
// unfired rule that consumes one of their actions. Entries accumulate
// until a full reset.
func (c *Consultation) extendEvaluating(pending []*Rule) {
	queue := append([]*Rule(nil), pending...)
	for len(queue) > 0 {
		rule := queue[0]
		queue = queue[1:]
		if c.evaluating[rule.Name()] {
			continue
		}
		c.evaluating[rule.Name()] = true
		for _, action := range rule.Actions() {
			for _, consumer := range c.rules.Rules() {
				if consumer.IsFired() || c.evaluating[consumer.Name()] {
					continue
				}
				if consumer.hasCondition(action) {
					queue = append(queue, consumer)
				}
			}
		}
	}
}

// reasoningChain renders every rule in the evaluating set, fired or
// not, sorted by ascending priority with insertion order as tie-break.
func (c *Consultation) reasoningChain(question string) []ChainRule {
	var chain []ChainRule
	for _, r := range c.rules.Rules() {
		if !c.evaluating[r.Name()] {
			continue
		}
		conditions := make([]ChainCondition, len(r.Conditions()))
		for i, cond := range r.Conditions() {
			conditions[i] = ChainCondition{Condition: cond, Status: c.conditionStatus(cond, question)}
		}
		chain = append(chain, ChainRule{
			Name:       r.Name(),
			Category:   r.Category(),
			Logic:      r.Logic(),
			Priority:   r.Priority(),
			Fired:      r.IsFired(),
			Conditions: conditions,
			Actions:    append([]string(nil), r.Actions()...),
		})
	}
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Priority < chain[j].Priority
	})
	return chain
}

func (c *Consultation) conditionStatus(cond, question string) ConditionStatus {
	if cond == question {
		return ConditionCurrent
	}
	switch c.memory.GetValue(cond) {
	case True:
		return ConditionSatisfied
	case False:
		return ConditionUnsatisfied
	default:
		return ConditionUnknown
	}
}
