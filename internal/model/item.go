package model

import (
	"strings"
	"time"
)

// Unknown is the sentinel stored in any analysis field that could not be determined.
const Unknown = "unknown"

// UnknownLabel is the item type used when an item has no detected objects.
const UnknownLabel = "Unknown"

// Waste category constants
const (
	CategoryRecyclable  = "recyclable"
	CategoryCompostable = "compostable"
	CategoryHazardous   = "hazardous"
	CategoryGeneral     = "general"
)

// Categories lists the category buckets counted in statistics, in display order.
var Categories = []string{
	CategoryRecyclable,
	CategoryCompostable,
	CategoryHazardous,
	CategoryGeneral,
}

// Analysis field names, as requested from and returned by the language model.
const (
	FieldWasteCategory       = "waste_category"
	FieldProductionEmissions = "production_emissions"
	FieldDisposalEmissions   = "disposal_emissions"
	FieldRecommendedDisposal = "recommended_disposal"
	FieldDecompositionTime   = "decomposition_time"
)

// AnalysisFields lists the five fields every stored analysis carries.
var AnalysisFields = []string{
	FieldWasteCategory,
	FieldProductionEmissions,
	FieldDisposalEmissions,
	FieldRecommendedDisposal,
	FieldDecompositionTime,
}

// Analysis is the normalized waste-impact assessment of one discarded item.
type Analysis struct {
	WasteCategory       string `json:"waste_category"`
	ProductionEmissions string `json:"production_emissions"`
	DisposalEmissions   string `json:"disposal_emissions"`
	RecommendedDisposal string `json:"recommended_disposal"`
	DecompositionTime   string `json:"decomposition_time"`
	// RawAnalysis holds the model output verbatim when it could not be parsed.
	RawAnalysis string `json:"raw_analysis,omitempty"`
}

// UnknownAnalysis returns an Analysis with every field set to the sentinel.
func UnknownAnalysis() Analysis {
	return Analysis{
		WasteCategory:       Unknown,
		ProductionEmissions: Unknown,
		DisposalEmissions:   Unknown,
		RecommendedDisposal: Unknown,
		DecompositionTime:   Unknown,
	}
}

// Set assigns the named analysis field. Unknown names are ignored.
func (a *Analysis) Set(field, value string) {
	switch field {
	case FieldWasteCategory:
		a.WasteCategory = value
	case FieldProductionEmissions:
		a.ProductionEmissions = value
	case FieldDisposalEmissions:
		a.DisposalEmissions = value
	case FieldRecommendedDisposal:
		a.RecommendedDisposal = value
	case FieldDecompositionTime:
		a.DecompositionTime = value
	}
}

// Complete reports whether all five analysis fields are populated.
func (a Analysis) Complete() bool {
	return a.WasteCategory != "" &&
		a.ProductionEmissions != "" &&
		a.DisposalEmissions != "" &&
		a.RecommendedDisposal != "" &&
		a.DecompositionTime != ""
}

// Item is one persisted observation of a discarded object.
type Item struct {
	ID              int       `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	ImageReference  string    `json:"image_reference"`
	DetectedObjects []string  `json:"detected_objects"`
	Analysis
}

// NewItem creates an Item with a private copy of the detected objects.
func NewItem(id int, ts time.Time, imageRef string, objects []string, a Analysis) Item {
	detected := make([]string, len(objects))
	copy(detected, objects)
	return Item{
		ID:              id,
		Timestamp:       ts,
		ImageReference:  imageRef,
		DetectedObjects: detected,
		Analysis:        a,
	}
}

// PrimaryLabel is the item type used for statistics: the first detected object.
func (it Item) PrimaryLabel() string {
	if len(it.DetectedObjects) == 0 {
		return UnknownLabel
	}
	return it.DetectedObjects[0]
}

// Matches reports whether keyword occurs, case-insensitively, in any detected
// object or in the unparsed model output.
func (it Item) Matches(keyword string) bool {
	kw := strings.ToLower(keyword)
	if kw == "" {
		return false
	}
	for _, obj := range it.DetectedObjects {
		if strings.Contains(strings.ToLower(obj), kw) {
			return true
		}
	}
	return it.RawAnalysis != "" && strings.Contains(strings.ToLower(it.RawAnalysis), kw)
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	return NewItem(it.ID, it.Timestamp, it.ImageReference, it.DetectedObjects, it.Analysis)
}

// BucketCategory maps a free-form waste category onto one of the four counted
// buckets. Anything unrecognised counts as general waste.
func BucketCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	switch c {
	case CategoryRecyclable, CategoryCompostable, CategoryHazardous, CategoryGeneral:
		return c
	case "general waste":
		return CategoryGeneral
	}
	return CategoryGeneral
}
