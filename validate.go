package main

import "strings"

// AutoInvalidated flags one answer rejected during automatic validation.
type AutoInvalidated struct {
	PlayerID      string `json:"player_id"`
	CategoryIndex int    `json:"category_index"`
	Reason        string `json:"reason"`
}

// AutoRepeated flags one answer that matches another player's answer in the
// same category. Informational only; the validation state is untouched.
type AutoRepeated struct {
	PlayerID      string `json:"player_id"`
	CategoryIndex int    `json:"category_index"`
	Answer        string `json:"answer"`
}

func normalizeAnswer(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// autoValidate applies the automatic validation rules for one round and
// mutates the validation state of rejected answers in place.
//
// Precedence per answer, first match wins:
//  1. blank answers are skipped entirely (they score zero later anyway)
//  2. wrong first letter marks the answer invalid
//  3. a single-character answer marks it invalid even if the letter matched
//  4. an answer equal to another player's in the same category is reported
//     as repeated but stays in whatever state it already had
func autoValidate(answers []Answer, categories []string, letter string) ([]Answer, []AutoInvalidated, []AutoRepeated) {
	categoryIndex := make(map[string]int, len(categories))
	for i, category := range categories {
		categoryIndex[category] = i
	}

	// Occurrences of each normalized answer per category, across players.
	counts := make(map[string]map[string][]string)
	for _, category := range categories {
		counts[category] = make(map[string][]string)
	}
	for _, answer := range answers {
		normalized := normalizeAnswer(answer.Text)
		if normalized == "" {
			continue
		}
		if _, ok := counts[answer.Category]; !ok {
			continue
		}
		counts[answer.Category][normalized] = append(counts[answer.Category][normalized], answer.PlayerID)
	}

	var invalidated []AutoInvalidated
	var repeated []AutoRepeated

	for i := range answers {
		answer := &answers[i]

		trimmed := strings.TrimSpace(answer.Text)
		if trimmed == "" {
			continue
		}

		index, ok := categoryIndex[answer.Category]
		if !ok {
			continue
		}

		switch {
		case !strings.EqualFold(firstRune(trimmed), letter):
			answer.ValidationState = validationInvalid
			invalidated = append(invalidated, AutoInvalidated{
				PlayerID:      answer.PlayerID,
				CategoryIndex: index,
				Reason:        "wrong_letter",
			})

		case len([]rune(trimmed)) == 1:
			answer.ValidationState = validationInvalid
			invalidated = append(invalidated, AutoInvalidated{
				PlayerID:      answer.PlayerID,
				CategoryIndex: index,
				Reason:        "too_short",
			})

		case len(counts[answer.Category][normalizeAnswer(answer.Text)]) > 1:
			repeated = append(repeated, AutoRepeated{
				PlayerID:      answer.PlayerID,
				CategoryIndex: index,
				Answer:        answer.Text,
			})
		}
	}

	return answers, invalidated, repeated
}

func firstRune(value string) string {
	for _, r := range value {
		return string(r)
	}
	return ""
}

// cycleValidation advances an answer's manual validation state:
// valid → half → invalid → valid.
func cycleValidation(state string) string {
	switch state {
	case validationValid:
		return validationHalf
	case validationHalf:
		return validationInvalid
	default:
		return validationValid
	}
}
