package engine

import (
	"github.com/todmy/visa-advisor/pkg/models"
)

// Rule pairs an immutable definition with the one piece of per-session
// state, the fired flag. The definition is copied at construction so a
// RuleSet never shares mutable state with its source records.
type Rule struct {
	def   models.RuleDefinition
	fired bool
}

func newRule(def models.RuleDefinition) *Rule {
	def.Conditions = append([]string(nil), def.Conditions...)
	def.Actions = append([]string(nil), def.Actions...)
	return &Rule{def: def}
}

// Name returns the rule's unique name within its set.
func (r *Rule) Name() string { return r.def.Name }

// Conditions returns the ordered condition identifiers.
func (r *Rule) Conditions() []string { return r.def.Conditions }

// Actions returns the ordered action identifiers.
func (r *Rule) Actions() []string { return r.def.Actions }

// Logic returns the AND/OR combination logic.
func (r *Rule) Logic() models.CombinationLogic { return r.def.Logic }

// Category returns the terminal/intermediate category.
func (r *Rule) Category() models.RuleCategory { return r.def.Category }

// Priority returns the display/validation ordering value.
func (r *Rule) Priority() int { return r.def.Priority }

// Terminal reports whether firing this rule ends the consultation.
func (r *Rule) Terminal() bool { return r.def.Terminal() }

// Definition returns a copy of the underlying record.
func (r *Rule) Definition() models.RuleDefinition {
	def := r.def
	def.Conditions = append([]string(nil), r.def.Conditions...)
	def.Actions = append([]string(nil), r.def.Actions...)
	return def
}

// CheckSatisfied evaluates the conditions against working memory.
// AND logic needs every condition explicitly true; OR logic needs at
// least one. An Unknown condition never satisfies either form.
func (r *Rule) CheckSatisfied(mem *WorkingMemory) bool {
	if r.def.Logic == models.LogicOr {
		for _, cond := range r.def.Conditions {
			if mem.GetValue(cond) == True {
				return true
			}
		}
		return false
	}
	for _, cond := range r.def.Conditions {
		if mem.GetValue(cond) != True {
			return false
		}
	}
	return true
}

// ExecuteActions asserts every action as a true hypothesis. Rules only
// conclude positively; negative conclusions are never stored.
func (r *Rule) ExecuteActions(mem *WorkingMemory) {
	for _, action := range r.def.Actions {
		mem.PutHypothesis(action, true)
	}
}

// Fire marks the rule fired. Within a session the transition is
// one-way; only a snapshot restore or a reset reverts it.
func (r *Rule) Fire() { r.fired = true }

// IsFired reports whether the rule has fired in this session.
func (r *Rule) IsFired() bool { return r.fired }

func (r *Rule) hasCondition(key string) bool {
	for _, cond := range r.def.Conditions {
		if cond == key {
			return true
		}
	}
	return false
}

// RuleSet is an insertion-ordered, name-keyed rule collection owning
// per-session fired state. Redefining a name replaces the rule in its
// original position, so insertion order is preserved exactly.
type RuleSet struct {
	rules []*Rule
	index map[string]int
}

// NewRuleSet builds a fresh set (all rules unfired) from plain records.
func NewRuleSet(defs []models.RuleDefinition) *RuleSet {
	s := &RuleSet{index: make(map[string]int, len(defs))}
	for _, def := range defs {
		r := newRule(def)
		if pos, ok := s.index[def.Name]; ok {
			s.rules[pos] = r
			continue
		}
		s.index[def.Name] = len(s.rules)
		s.rules = append(s.rules, r)
	}
	return s
}

// Rules returns the rules in insertion order. The slice is shared;
// callers must not reorder it.
func (s *RuleSet) Rules() []*Rule { return s.rules }

// Get looks a rule up by name.
func (s *RuleSet) Get(name string) (*Rule, bool) {
	pos, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.rules[pos], true
}

// Len returns the number of rules in the set.
func (s *RuleSet) Len() int { return len(s.rules) }

// Definitions returns copies of every rule's record in insertion order.
func (s *RuleSet) Definitions() []models.RuleDefinition {
	defs := make([]models.RuleDefinition, len(s.rules))
	for i, r := range s.rules {
		defs[i] = r.Definition()
	}
	return defs
}

func (s *RuleSet) firedFlags() map[string]bool {
	flags := make(map[string]bool, len(s.rules))
	for _, r := range s.rules {
		flags[r.Name()] = r.fired
	}
	return flags
}

func (s *RuleSet) restoreFired(flags map[string]bool) {
	for _, r := range s.rules {
		r.fired = flags[r.Name()]
	}
}

func (s *RuleSet) resetFired() {
	for _, r := range s.rules {
		r.fired = false
	}
}
