package engine

import (
	"fmt"
	"strings"

	"github.com/smarttrash/smarttrash/internal/model"
)

// BuildAnalysisPrompt embeds the detected labels in the fixed analysis template.
func BuildAnalysisPrompt(labels []string) string {
	return fmt.Sprintf(`The following items were detected in a trash can: %s

Assess the discarded item and output ONLY valid JSON with exactly these fields (no markdown, no explanation):
{"%s": "...", "%s": "...", "%s": "...", "%s": "...", "%s": "..."}

Rules:
- %s: one of "recyclable", "compostable", "hazardous", "general"
- %s: estimated CO2e emitted producing the item, e.g. "0.08 kg"
- %s: estimated CO2e emitted disposing of the item, e.g. "0.02 kg"
- %s: one short sentence on how to dispose of it
- %s: how long it takes to decompose, e.g. "450 years"`,
		strings.Join(labels, ", "),
		model.FieldWasteCategory,
		model.FieldProductionEmissions,
		model.FieldDisposalEmissions,
		model.FieldRecommendedDisposal,
		model.FieldDecompositionTime,
		model.FieldWasteCategory,
		model.FieldProductionEmissions,
		model.FieldDisposalEmissions,
		model.FieldRecommendedDisposal,
		model.FieldDecompositionTime,
	)
}

const detectPrompt = `List the physical objects visible in this image, most prominent first.

Output ONLY a JSON array of short lowercase object names, e.g. ["bottle", "plastic"].
Output [] if no object is recognisable. No markdown, no explanation.`
