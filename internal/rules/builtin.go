// Package rules holds the builtin visa knowledge base and track
// filters. Rules loaded from the database satisfy the same
// RuleDefinition contract, so consultations run identically from
// either source.
package rules

import (
	"sort"

	"github.com/todmy/visa-advisor/pkg/models"
)

// Visa tracks. A consultation runs against the rules of one track;
// "ALL" rules are included in every track.
const (
	TrackE   = "E"
	TrackL   = "L"
	TrackB   = "B"
	TrackH   = "H"
	TrackJ   = "J"
	TrackAll = "ALL"
)

// TrackNames maps the consultation tracks to display names.
var TrackNames = map[string]string{
	TrackE: "E visa (investor / trade representative)",
	TrackL: "L visa (intra-company transferee)",
	TrackB: "B visa (business / tourism)",
}

// ConsultationTracks lists the tracks offered to consultations, in
// display order.
var ConsultationTracks = []string{TrackE, TrackL, TrackB}

func and(name, track string, category models.RuleCategory, priority int, conditions []string, action string) models.RuleDefinition {
	return models.RuleDefinition{
		Name:       name,
		VisaType:   track,
		Category:   category,
		Logic:      models.LogicAnd,
		Conditions: conditions,
		Actions:    []string{action},
		Priority:   priority,
	}
}

func or(name, track string, category models.RuleCategory, priority int, conditions []string, action string) models.RuleDefinition {
	def := and(name, track, category, priority, conditions, action)
	def.Logic = models.LogicOr
	return def
}

// Builtin returns the full builtin rule base in its canonical order.
// Rule names and priorities follow the original numbering; the
// validator intentionally has findings to report against this set.
func Builtin() []models.RuleDefinition {
	terminal := models.CategoryTerminal
	chain := models.CategoryIntermediate

	return []models.RuleDefinition{
		and("1", TrackE, terminal, 10, []string{
			"applicant and company share the same nationality",
			"company meets the E visa requirements",
			"applicant meets the E visa requirements",
		}, "eligible to apply for an E visa"),
		or("2", TrackE, chain, 20, []string{
			"company meets the E visa investment requirement",
			"company meets the E visa trade requirement",
		}, "company meets the E visa requirements"),
		or("3", TrackE, chain, 30, []string{
			"equipment and buildings worth at least $300,000 before depreciation are recorded as company assets",
			"the company acquired, or was acquired by, a company for at least $300,000",
			"without sufficient revenue yet, the company has spent at least $300,000 including running costs",
			"at least $300,000 was spent to establish the company (excluding real estate)",
		}, "company meets the E visa investment requirement"),
		and("4", TrackE, chain, 40, []string{
			"at least 50% of the company's trade is between Japan and the US",
			"the company's trade is continuous",
			"trade profits cover at least 80% of the company's expenses",
		}, "company meets the E visa trade requirement"),
		or("5", TrackE, chain, 50, []string{
			"applicant meets the E visa manager-level requirements",
			"applicant meets the E visa essential staff requirements",
			"applicant meets the E visa TDY (short-term needs) requirements",
		}, "applicant meets the E visa requirements"),
		and("6", TrackE, chain, 60, []string{
			"applicant will hold a position recognized as manager-level or above at the US office",
			"applicant has sufficient ability to perform manager-level duties",
		}, "applicant meets the E visa manager-level requirements"),
		or("7", TrackE, chain, 70, []string{
			"applicant will hold an officer position such as CEO",
			"applicant will hold a position involved in managing the US office, such as corporate planning manager",
			"applicant will hold a manager-level position supervising multiple full-time staff with hiring and evaluation responsibility",
		}, "applicant will hold a position recognized as manager-level or above at the US office"),
		and("8", TrackE, chain, 80, []string{
			"applicant has at least 2 years of experience closely related to the US position",
			"applicant has at least 2 years of management experience",
		}, "applicant has sufficient ability to perform manager-level duties"),
		or("9", TrackE, chain, 90, []string{
			"applicant has at least 2 years of experience as a manager",
			"applicant has at least 2 years of experience in roles requiring management, such as project manager",
		}, "applicant has at least 2 years of management experience"),
		or("10", TrackE, chain, 100, []string{
			"applicant has a graduate science degree and at least 3 years of experience closely related to the US technical role",
			"applicant has an undergraduate science degree and at least 4 years of experience closely related to the US technical role",
			"applicant has at least 5 years of experience closely related to the US role",
		}, "applicant meets the E visa essential staff requirements"),
		and("11", TrackE, chain, 110, []string{
			"applicant can explain a limited-purpose assignment of at most 2 years",
			"applicant has at least 2 years of experience closely related to the US role",
		}, "applicant meets the E visa TDY (short-term needs) requirements"),

		and("12", TrackL, terminal, 120, []string{
			"the transfer is an intra-group move into the US from outside the US",
			"company meets the Blanket L visa requirements",
			"applicant meets the Blanket L visa requirements",
		}, "eligible to apply for a Blanket L visa"),
		or("13", TrackL, chain, 130, []string{
			"combined sales of the US subsidiaries are at least $25 million",
			"the US subsidiaries employ at least 1,000 local hires",
			"at least 10 L visa petitions are filed per year",
		}, "company meets the Blanket L visa requirements"),
		and("14", TrackL, chain, 140, []string{
			"applicant belonged to a non-US group company for at least 1 of the last 3 years",
			"applicant meets the Blanket L manager or staff requirements",
		}, "applicant meets the Blanket L visa requirements"),
		or("15", TrackL, chain, 150, []string{
			"applicant meets the Blanket L manager requirements",
			"applicant meets the Blanket L specialized staff requirements",
		}, "applicant meets the Blanket L manager or staff requirements"),
		and("16", TrackL, chain, 160, []string{
			"applicant has experience as a manager",
			"the US role is regarded as a manager position",
		}, "applicant meets the Blanket L manager requirements"),
		and("17", TrackL, chain, 170, []string{
			"applicant has specialized knowledge",
			"the US role requires specialized knowledge",
		}, "applicant meets the Blanket L specialized staff requirements"),
		and("18", TrackL, terminal, 180, []string{
			"the transfer is an intra-group move into the US from outside the US",
			"applicant meets the individual L visa requirements",
		}, "eligible to apply for an individual L visa"),
		and("19", TrackL, chain, 190, []string{
			"applicant belonged to a non-US group company for at least 1 of the last 3 years",
			"applicant meets the individual L manager or staff requirements",
		}, "applicant meets the individual L visa requirements"),
		and("20", TrackL, chain, 200, []string{
			"applicant has experience as a manager",
			"the US role is regarded as a manager position",
			"the US role has at least 2 full-time degree-holding subordinates",
		}, "applicant meets the individual L manager requirements"),
		and("21", TrackL, chain, 210, []string{
			"applicant has specialized knowledge",
			"the US role requires specialized knowledge",
		}, "applicant meets the individual L staff requirements"),

		or("22", TrackH, terminal, 220, []string{
			"applicant holds a university degree in a field matching the job duties",
			"applicant holds a university degree in a different field but has at least 3 years of practical experience",
			"applicant holds no university degree but has enough practical experience (12 years for high school graduates, 3 years for technical college graduates)",
		}, "eligible to apply for an H-1B visa"),
		or("23", TrackB, terminal, 230, []string{
			"meets the B visa requirements (ESTA authorization would pass)",
			"meets the B visa requirements (ESTA authorization would not pass)",
		}, "eligible to apply for a B visa"),
		and("24", TrackB, chain, 240, []string{
			"the US activities are within business-visitor scope",
			"a single stay exceeds 90 days",
			"a single stay does not exceed 6 months",
		}, "meets the B visa requirements (ESTA authorization would pass)"),
		and("25", TrackB, chain, 250, []string{
			"the US activities are within business-visitor scope",
			"a single stay does not exceed 6 months",
		}, "meets the B visa requirements (ESTA authorization would not pass)"),
		and("26", TrackB, terminal, 260, []string{
			"the work services equipment sold to a US company",
			"there is a contract or purchase order showing the equipment sale",
			"a single stay does not exceed 6 months",
		}, "eligible to apply for a contract-based B visa"),
		and("27", TrackB, terminal, 270, []string{
			"the work is highly specialized and would require an H-1B visa",
			"a single stay does not exceed 6 months",
		}, "eligible to apply for a B-1 in lieu of H-1B visa"),
		and("28", TrackJ, terminal, 280, []string{
			"the training includes on-the-job training",
			"the training period is within 18 months",
			"applicant has the English ability needed for the training",
		}, "eligible to apply for a J-1 visa"),
		and("29", TrackB, terminal, 290, []string{
			"the training content is within business-visitor scope",
			"the training period is within 6 months",
		}, "eligible to apply for a B visa"),
		and("30", TrackB, terminal, 300, []string{
			"the training content is within business-visitor scope",
			"the training period is within 6 months",
		}, "eligible to apply for a B-1 in lieu of H-3 visa"),
	}
}

// ByTrack filters the builtin base to one visa track. Rules tagged
// "ALL" belong to every track; an empty or "ALL" track returns the
// whole base.
func ByTrack(track string) []models.RuleDefinition {
	all := Builtin()
	if track == "" || track == TrackAll {
		return all
	}
	var filtered []models.RuleDefinition
	for _, def := range all {
		if def.VisaType == track || def.VisaType == TrackAll {
			filtered = append(filtered, def)
		}
	}
	return filtered
}

// Questions returns the sorted distinct condition texts of a rule
// slice, the full catalog of questions a consultation may ask.
func Questions(defs []models.RuleDefinition) []string {
	seen := make(map[string]bool)
	var questions []string
	for _, def := range defs {
		for _, cond := range def.Conditions {
			if !seen[cond] {
				seen[cond] = true
				questions = append(questions, cond)
			}
		}
	}
	sort.Strings(questions)
	return questions
}
