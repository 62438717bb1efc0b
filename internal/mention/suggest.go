package mention

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// SuggestionState is the composer's suggestion popup state, recomputed on
// every keystroke. TriggerIndex is a rune index, nil when no trigger is active.
type SuggestionState struct {
	Suggestions  []Entity `json:"suggestions"`
	IsVisible    bool     `json:"is_visible"`
	TriggerIndex *int     `json:"trigger_index"`
}

func hiddenState() SuggestionState {
	return SuggestionState{Suggestions: []Entity{}}
}

// ComputeSuggestionState looks backward from caret (a rune index) for the
// nearest trigger. The trigger is active only at text start or right after
// whitespace, and only while no whitespace sits between it and the caret.
// An active trigger suggests every roster entry whose name contains the typed
// query, case-insensitively, in roster order.
func ComputeSuggestionState(text string, caret int, roster []Entity, trigger rune) SuggestionState {
	runes := []rune(text)
	if caret < 0 {
		caret = 0
	}
	if caret > len(runes) {
		caret = len(runes)
	}

	triggerIndex := -1
	for i := caret - 1; i >= 0; i-- {
		r := runes[i]
		if unicode.IsSpace(r) {
			return hiddenState()
		}
		if r == trigger {
			triggerIndex = i
			break
		}
	}
	if triggerIndex < 0 {
		return hiddenState()
	}
	if triggerIndex > 0 && !unicode.IsSpace(runes[triggerIndex-1]) {
		return hiddenState()
	}

	fold := cases.Fold()
	query := fold.String(string(runes[triggerIndex+1 : caret]))
	suggestions := make([]Entity, 0, len(roster))
	for _, e := range roster {
		if strings.Contains(fold.String(e.Name), query) {
			suggestions = append(suggestions, e)
		}
	}

	return SuggestionState{
		Suggestions:  suggestions,
		IsVisible:    len(suggestions) > 0,
		TriggerIndex: &triggerIndex,
	}
}
