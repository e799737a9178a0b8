// Package validation checks a rule set for structural problems before
// it is handed to a live consultation: consistency errors, cyclic
// dependencies, unreachable conditions, and evaluation-order
// violations. All functions are pure and safe to call concurrently.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/todmy/visa-advisor/pkg/models"
)

// ErrUnknownFixType is returned for an auto-fix request naming a
// violation type the fixer does not handle.
var ErrUnknownFixType = errors.New("unknown auto-fix type")

// FixTypeWrongOrder is the violation type the order auto-fix accepts.
const FixTypeWrongOrder = "wrong_order"

// ConsistencyError is one typed consistency finding.
type ConsistencyError struct {
	Type        string `json:"type"`
	RuleName    string `json:"rule_name,omitempty"`
	Description string `json:"description"`
}

// Cycle is a cyclic dependency path; the first rule name is repeated at
// the end to close the loop.
type Cycle struct {
	Path        []string `json:"cycle"`
	Description string   `json:"description"`
}

// UnreachableRule reports conditions of a rule that are produced as
// actions somewhere in the set but that no other rule can derive for
// this consumer.
type UnreachableRule struct {
	RuleName    string              `json:"rule_name"`
	Category    models.RuleCategory `json:"rule_type"`
	Conditions  []string            `json:"unreachable_conditions"`
	Description string              `json:"description"`
}

// OrderViolation reports a producer evaluated after one of its
// consumers.
type OrderViolation struct {
	Type             string `json:"type"`
	ProducerRule     string `json:"producer_rule"`
	ProducerPriority int    `json:"producer_priority"`
	ConsumerRule     string `json:"consumer_rule"`
	ConsumerPriority int    `json:"consumer_priority"`
	Action           string `json:"action"`
	Description      string `json:"description"`
}

// Report aggregates all validation findings for a rule set.
type Report struct {
	TotalRules        int                `json:"total_rules"`
	Status            string             `json:"status"`
	ErrorCount        int                `json:"error_count"`
	WarningCount      int                `json:"warning_count"`
	ConsistencyErrors []ConsistencyError `json:"consistency_errors"`
	Cycles            []Cycle            `json:"circular_dependencies"`
	Unreachable       []UnreachableRule  `json:"unreachable_rules"`
	OrderViolations   []OrderViolation   `json:"dependency_order_violations"`
}

// Validate runs every check over the rule set. Consistency errors and
// order violations count as errors; cycles and unreachable conditions
// are warnings for a human to act on.
func Validate(defs []models.RuleDefinition) Report {
	report := Report{
		TotalRules:        len(defs),
		ConsistencyErrors: CheckConsistency(defs),
		Cycles:            FindCircularDependencies(defs),
		Unreachable:       FindUnreachableConditions(defs),
		OrderViolations:   CheckDependencyOrder(defs),
	}
	report.ErrorCount = len(report.ConsistencyErrors) + len(report.OrderViolations)
	report.WarningCount = len(report.Cycles) + len(report.Unreachable)
	switch {
	case report.ErrorCount > 0:
		report.Status = "error"
	case report.WarningCount > 0:
		report.Status = "warning"
	default:
		report.Status = "ok"
	}
	return report
}

// CheckConsistency reports duplicate rule names, empty condition or
// action lists, and the absence of any terminal rule.
func CheckConsistency(defs []models.RuleDefinition) []ConsistencyError {
	var errs []ConsistencyError

	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		if seen[def.Name] {
			errs = append(errs, ConsistencyError{
				Type:        "duplicate_name",
				RuleName:    def.Name,
				Description: fmt.Sprintf("rule name %q is duplicated", def.Name),
			})
		}
		seen[def.Name] = true
	}

	for _, def := range defs {
		if len(def.Conditions) == 0 {
			errs = append(errs, ConsistencyError{
				Type:        "empty_conditions",
				RuleName:    def.Name,
				Description: fmt.Sprintf("rule %s has no conditions", def.Name),
			})
		}
		if len(def.Actions) == 0 {
			errs = append(errs, ConsistencyError{
				Type:        "empty_actions",
				RuleName:    def.Name,
				Description: fmt.Sprintf("rule %s has no actions", def.Name),
			})
		}
	}

	hasTerminal := false
	for _, def := range defs {
		if def.Terminal() {
			hasTerminal = true
			break
		}
	}
	if !hasTerminal {
		errs = append(errs, ConsistencyError{
			Type:        "no_terminal_rules",
			Description: "the rule set contains no terminal rule",
		})
	}

	return errs
}

// FindCircularDependencies detects cycles in the dependency graph with
// an edge from producer P to consumer C whenever an action of P appears
// among the conditions of C. Rules consuming their own action are
// reported directly because the graph holds no self-edges.
func FindCircularDependencies(defs []models.RuleDefinition) []Cycle {
	var cycles []Cycle

	g := simple.NewDirectedGraph()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
		g.AddNode(simple.Node(i))
	}

	for pi, producer := range defs {
		for _, action := range producer.Actions {
			for ci, consumer := range defs {
				if !containsString(consumer.Conditions, action) {
					continue
				}
				if pi == ci {
					cycles = append(cycles, Cycle{
						Path:        []string{producer.Name, producer.Name},
						Description: fmt.Sprintf("rule %s consumes its own action %q", producer.Name, action),
					})
					continue
				}
				g.SetEdge(g.NewEdge(simple.Node(pi), simple.Node(ci)))
			}
		}
	}

	for _, nodes := range topo.DirectedCyclesIn(g) {
		path := make([]string, len(nodes))
		for i, n := range nodes {
			path[i] = names[n.ID()]
		}
		cycles = append(cycles, Cycle{
			Path:        path,
			Description: strings.Join(path, " -> "),
		})
	}

	return cycles
}

// FindUnreachableConditions reports, per consuming rule, conditions
// that appear as an action somewhere in the set but that no other rule
// produces. A rule producing its own condition does not count as a
// producer for itself.
func FindUnreachableConditions(defs []models.RuleDefinition) []UnreachableRule {
	allActions := make(map[string]bool)
	for _, def := range defs {
		for _, action := range def.Actions {
			allActions[action] = true
		}
	}

	var unreachable []UnreachableRule
	for _, def := range defs {
		var blocked []string
		for _, cond := range def.Conditions {
			if !allActions[cond] {
				// A plain question for the user; nothing to derive.
				continue
			}
			derivable := false
			for _, other := range defs {
				if other.Name == def.Name {
					continue
				}
				if containsString(other.Actions, cond) {
					derivable = true
					break
				}
			}
			if !derivable {
				blocked = append(blocked, cond)
			}
		}
		if len(blocked) > 0 {
			unreachable = append(unreachable, UnreachableRule{
				RuleName:   def.Name,
				Category:   def.Category,
				Conditions: blocked,
				Description: fmt.Sprintf("rule %s: conditions %q cannot be derived by any other rule",
					def.Name, strings.Join(blocked, ", ")),
			})
		}
	}
	return unreachable
}

// CheckDependencyOrder flags every producer/consumer pair where the
// producer's priority is greater than the consumer's, i.e. the producer
// would be evaluated after the rule that needs its action.
func CheckDependencyOrder(defs []models.RuleDefinition) []OrderViolation {
	var violations []OrderViolation
	for _, consumer := range defs {
		for _, cond := range consumer.Conditions {
			for _, producer := range defs {
				if producer.Name == consumer.Name || !containsString(producer.Actions, cond) {
					continue
				}
				if producer.Priority > consumer.Priority {
					violations = append(violations, OrderViolation{
						Type:             FixTypeWrongOrder,
						ProducerRule:     producer.Name,
						ProducerPriority: producer.Priority,
						ConsumerRule:     consumer.Name,
						ConsumerPriority: consumer.Priority,
						Action:           cond,
						Description: fmt.Sprintf(
							"rule %s (priority=%d) produces %q but is ordered after consumer %s (priority=%d)",
							producer.Name, producer.Priority, cond, consumer.Name, consumer.Priority),
					})
				}
			}
		}
	}
	return violations
}

// ApplyOrderFixes returns a copy of the rule set with each violating
// consumer moved after its producer: the consumer's priority becomes
// the producer's priority plus ten. Within one batch the first
// violation naming a consumer wins; all changes land together.
func ApplyOrderFixes(defs []models.RuleDefinition, violations []OrderViolation) ([]models.RuleDefinition, error) {
	producerPriority := make(map[string]int, len(defs))
	for _, def := range defs {
		producerPriority[def.Name] = def.Priority
	}

	newPriority := make(map[string]int)
	for _, v := range violations {
		if v.Type != FixTypeWrongOrder {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFixType, v.Type)
		}
		if _, done := newPriority[v.ConsumerRule]; done {
			continue
		}
		producer, ok := producerPriority[v.ProducerRule]
		if !ok {
			continue
		}
		newPriority[v.ConsumerRule] = producer + 10
	}

	fixed := make([]models.RuleDefinition, len(defs))
	copy(fixed, defs)
	for i := range fixed {
		if p, ok := newPriority[fixed[i].Name]; ok {
			fixed[i].Priority = p
		}
	}
	return fixed, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
