package main

import "strings"

// Points awarded per answer.
const (
	pointsUnique   = 10
	pointsRepeated = 5
	pointsHalf     = 5
)

// AnswerResult is the per-answer scoring breakdown kept for display.
type AnswerResult struct {
	PlayerID string `json:"playerId"`
	Category string `json:"category"`
	Answer   string `json:"answer"`
	Points   int    `json:"points"`
	Reason   string `json:"reason"`
}

// scoreRound assigns points to every answer of a round and returns the
// per-player totals plus the detailed breakdown. Answer points are mutated
// in place.
//
// Per category, precedence per answer:
//  1. blank → 0 ("blank")
//  2. invalidated → 0 ("invalidated")
//  3. half point → 5 ("half_point")
//  4. wrong first letter → 0 ("wrong_letter"), a safety net on top of
//     automatic validation
//  5. unique among the category's countable answers → 10 ("unique"),
//     otherwise → 5 ("repeated")
func scoreRound(answers []Answer, categories []string, letter string) ([]Answer, map[string]int, []AnswerResult) {
	totals := make(map[string]int)
	var results []AnswerResult

	for _, category := range categories {
		// Occurrence sets count non-blank answers that were not invalidated.
		occurrences := make(map[string][]string)
		for _, answer := range answers {
			if answer.Category != category || answer.Text == "" || answer.Invalidated() {
				continue
			}
			normalized := normalizeAnswer(answer.Text)
			occurrences[normalized] = append(occurrences[normalized], answer.PlayerID)
		}

		for i := range answers {
			answer := &answers[i]
			if answer.Category != category {
				continue
			}

			var points int
			var reason string

			switch {
			case answer.Text == "":
				points, reason = 0, "blank"
			case answer.Invalidated():
				points, reason = 0, "invalidated"
			case answer.ValidationState == validationHalf:
				points, reason = pointsHalf, "half_point"
			case !strings.EqualFold(firstRune(strings.TrimSpace(answer.Text)), letter):
				points, reason = 0, "wrong_letter"
			case len(occurrences[normalizeAnswer(answer.Text)]) == 1:
				points, reason = pointsUnique, "unique"
			default:
				points, reason = pointsRepeated, "repeated"
			}

			answer.Points = points
			totals[answer.PlayerID] += points

			results = append(results, AnswerResult{
				PlayerID: answer.PlayerID,
				Category: category,
				Answer:   answer.Text,
				Points:   points,
				Reason:   reason,
			})
		}
	}

	return answers, totals, results
}
