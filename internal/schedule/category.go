package schedule

import (
	"strings"

	"lockin/internal/model"
)

// Classifier assigns a coarse category to an activity label. It is a
// best-effort display heuristic, not authoritative; the parser takes one
// as a parameter so alternative strategies can be swapped in and tested
// independently of line parsing.
type Classifier func(label string) model.Category

// KeywordClassifier is the default classifier: a case-insensitive keyword
// match over the label, falling back to the study category.
func KeywordClassifier(label string) model.Category {
	l := strings.ToLower(label)
	switch {
	case containsAny(l, "workout", "gym", "exercise", "run"):
		return model.CategoryFitness
	case containsAny(l, "class", "lecture", "seminar"):
		return model.CategoryClass
	case containsAny(l, "deep", "focus"):
		return model.CategoryDeepFocus
	case containsAny(l, "walk", "break", "rest"):
		return model.CategoryBreak
	default:
		return model.CategoryStudy
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
