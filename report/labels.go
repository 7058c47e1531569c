package report

import (
	"fmt"

	"github.com/use-agent/maillage/models"
)

// Labels is the human-readable vocabulary of one export locale.
type Labels struct {
	Header  [5]string
	Actions map[models.Action]string
	States  map[models.AnchorState]string
}

// Locales.
const (
	LocaleEN = "en"
	LocaleFR = "fr"
)

var labelSets = map[string]Labels{
	LocaleEN: {
		Header: [5]string{"Keyword", "Source Page", "Target Page", "Required Action", "Anchor State"},
		Actions: map[models.Action]string{
			models.ActionAddLink:        "AddLink",
			models.ActionOptimizeAnchor: "OptimizeAnchor",
		},
		States: map[models.AnchorState]string{
			models.AnchorNotApplicable: "NotApplicable",
			models.AnchorNotOptimized:  "NotOptimized",
		},
	},
	LocaleFR: {
		Header: [5]string{"Mot-Clé", "Page Source", "Page Cible", "Action Requise", "Anchor Optimisé"},
		Actions: map[models.Action]string{
			models.ActionAddLink:        "Ajouter un lien",
			models.ActionOptimizeAnchor: "Optimiser l'ancre",
		},
		States: map[models.AnchorState]string{
			models.AnchorNotApplicable: "Non Applicable",
			models.AnchorNotOptimized:  "Non",
		},
	},
}

// LabelsFor returns the label set of locale; "" means English.
func LabelsFor(locale string) (Labels, error) {
	if locale == "" {
		locale = LocaleEN
	}
	l, ok := labelSets[locale]
	if !ok {
		return Labels{}, fmt.Errorf("report: unknown locale %q", locale)
	}
	return l, nil
}

// Row renders one record as the five exported columns.
func (l Labels) Row(rec models.OpportunityRecord) []string {
	action, ok := l.Actions[rec.Action]
	if !ok {
		action = string(rec.Action)
	}
	state, ok := l.States[rec.AnchorState]
	if !ok {
		state = string(rec.AnchorState)
	}
	return []string{rec.Keyword, rec.SourceURL, rec.TargetURL, action, state}
}
