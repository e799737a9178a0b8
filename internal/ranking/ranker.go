// Package ranking pre-computes which leaf questions are most
// discriminating for a rule set, so an interview can front-load the
// facts shared by the most conclusions.
package ranking

import (
	"sort"

	"github.com/todmy/visa-advisor/pkg/models"
)

type questionStats struct {
	ruleCount    int
	minLeafCount int
}

// RankQuestions produces a deterministic total order over the leaf
// questions of the rule set: descending count of terminal rules that
// require the question, then ascending size of the smallest leaf set
// among those rules, then lexical order.
func RankQuestions(defs []models.RuleDefinition) []models.QuestionRank {
	derivable := make(map[string]bool)
	producers := make(map[string][]int)
	for i, def := range defs {
		for _, action := range def.Actions {
			derivable[action] = true
			producers[action] = append(producers[action], i)
		}
	}

	stats := make(map[string]*questionStats)
	for _, def := range defs {
		if !def.Terminal() {
			continue
		}
		leaves := collectLeafQuestions(defs, def, derivable, producers, map[string]bool{})
		size := len(leaves)
		for question := range leaves {
			s, ok := stats[question]
			if !ok {
				s = &questionStats{minLeafCount: size}
				stats[question] = s
			}
			s.ruleCount++
			if size < s.minLeafCount {
				s.minLeafCount = size
			}
		}
	}

	ranked := make([]models.QuestionRank, 0, len(stats))
	for question, s := range stats {
		ranked = append(ranked, models.QuestionRank{
			Question:        question,
			RequiredByCount: s.ruleCount,
			MinLeafSetSize:  s.minLeafCount,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].RequiredByCount != ranked[j].RequiredByCount {
			return ranked[i].RequiredByCount > ranked[j].RequiredByCount
		}
		if ranked[i].MinLeafSetSize != ranked[j].MinLeafSetSize {
			return ranked[i].MinLeafSetSize < ranked[j].MinLeafSetSize
		}
		return ranked[i].Question < ranked[j].Question
	})
	return ranked
}

// collectLeafQuestions unwinds every derivable condition of the rule
// into the leaf conditions of the rules producing it. The visited set
// is copied per branch: a producing rule reachable over several paths
// is expanded once per path, and only a rule already on the current
// path is skipped.
func collectLeafQuestions(defs []models.RuleDefinition, def models.RuleDefinition,
	derivable map[string]bool, producers map[string][]int, visited map[string]bool) map[string]bool {

	if visited[def.Name] {
		return map[string]bool{}
	}
	visited[def.Name] = true

	leaves := make(map[string]bool)
	for _, cond := range def.Conditions {
		if !derivable[cond] {
			leaves[cond] = true
			continue
		}
		for _, pi := range producers[cond] {
			branch := make(map[string]bool, len(visited))
			for name := range visited {
				branch[name] = true
			}
			for leaf := range collectLeafQuestions(defs, defs[pi], derivable, producers, branch) {
				leaves[leaf] = true
			}
		}
	}
	return leaves
}
