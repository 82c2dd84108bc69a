package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/smarttrash/smarttrash/internal/model"
)

// StubLabeler returns fixed labels (for development/testing).
type StubLabeler struct {
	Labels []string
}

func (l *StubLabeler) Detect(_ context.Context, _ []byte) ([]string, error) {
	if l.Labels == nil {
		return []string{"bottle", "plastic"}, nil
	}
	out := make([]string, len(l.Labels))
	copy(out, l.Labels)
	return out, nil
}

// StubModelClient returns mock LLM responses (for development/testing).
type StubModelClient struct{}

func (m *StubModelClient) Complete(_ context.Context, prompt string) (string, error) {
	a := model.Analysis{
		WasteCategory:       model.CategoryGeneral,
		ProductionEmissions: "0.05 kg",
		DisposalEmissions:   "0.01 kg",
		RecommendedDisposal: "Place in the general waste bin.",
		DecompositionTime:   "unknown",
	}
	lower := strings.ToLower(promptLabels(prompt))
	switch {
	case strings.Contains(lower, "bottle") || strings.Contains(lower, "can"):
		a.WasteCategory = model.CategoryRecyclable
		a.ProductionEmissions = "0.08 kg"
		a.RecommendedDisposal = "Rinse and place in the recycling bin."
		a.DecompositionTime = "450 years"
	case strings.Contains(lower, "banana") || strings.Contains(lower, "food"):
		a.WasteCategory = model.CategoryCompostable
		a.ProductionEmissions = "0.02 kg"
		a.RecommendedDisposal = "Add to compost."
		a.DecompositionTime = "2-5 weeks"
	case strings.Contains(lower, "battery"):
		a.WasteCategory = model.CategoryHazardous
		a.ProductionEmissions = "0.5 kg"
		a.RecommendedDisposal = "Take to a battery collection point."
		a.DecompositionTime = "100 years"
	}
	b, _ := json.Marshal(a)
	return string(b), nil
}

// promptLabels returns the label list from the first line of an analysis prompt.
func promptLabels(prompt string) string {
	line, _, _ := strings.Cut(prompt, "\n")
	if i := strings.LastIndex(line, ": "); i >= 0 {
		return line[i+2:]
	}
	return line
}
