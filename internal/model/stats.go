package model

import (
	"strings"
	"time"
)

// Snapshot is the running aggregate kept alongside the item list.
type Snapshot struct {
	TotalItems           int            `json:"total_items"`
	TotalCarbonFootprint float64        `json:"total_carbon_footprint"`
	Categories           map[string]int `json:"categories"`
	ItemTypes            map[string]int `json:"item_types"`
}

// NewSnapshot returns a zeroed snapshot with every category bucket present.
func NewSnapshot() Snapshot {
	s := Snapshot{
		Categories: make(map[string]int, len(Categories)),
		ItemTypes:  make(map[string]int),
	}
	for _, c := range Categories {
		s.Categories[c] = 0
	}
	return s
}

// Add folds one item into the snapshot. It is the only place the per-item
// aggregation rules live; the store and the period statistics both use it.
func (s *Snapshot) Add(it Item) {
	if s.Categories == nil || s.ItemTypes == nil {
		s.fill()
	}
	s.TotalItems++
	s.TotalCarbonFootprint += ParseEmission(it.ProductionEmissions)
	s.Categories[BucketCategory(it.WasteCategory)]++
	s.ItemTypes[it.PrimaryLabel()]++
}

// Normalize ensures the maps exist and all category buckets are present.
func (s *Snapshot) Normalize() {
	s.fill()
}

func (s *Snapshot) fill() {
	if s.Categories == nil {
		s.Categories = make(map[string]int, len(Categories))
	}
	for _, c := range Categories {
		if _, ok := s.Categories[c]; !ok {
			s.Categories[c] = 0
		}
	}
	if s.ItemTypes == nil {
		s.ItemTypes = make(map[string]int)
	}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		TotalItems:           s.TotalItems,
		TotalCarbonFootprint: s.TotalCarbonFootprint,
		Categories:           make(map[string]int, len(s.Categories)),
		ItemTypes:            make(map[string]int, len(s.ItemTypes)),
	}
	for k, v := range s.Categories {
		out.Categories[k] = v
	}
	for k, v := range s.ItemTypes {
		out.ItemTypes[k] = v
	}
	return out
}

// Period names a statistics window.
type Period string

// Period constants
const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodAll   Period = "all"
)

// ParsePeriod resolves a period name. "today" is accepted for day.
func ParsePeriod(s string) (Period, bool) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear, PeriodAll:
		return p, true
	case "today":
		return PeriodDay, true
	}
	return "", false
}

// ItemCount is one entry of a ranked item-type list.
type ItemCount struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// PeriodStats is the aggregate view of the items recorded within a window.
type PeriodStats struct {
	Period          Period         `json:"period" yaml:"period"`
	Since           *time.Time     `json:"since,omitempty" yaml:"since,omitempty"`
	TotalItems      int            `json:"total_items" yaml:"total_items"`
	CarbonFootprint string         `json:"carbon_footprint" yaml:"carbon_footprint"`
	CarbonValue     float64        `json:"carbon_footprint_kg" yaml:"carbon_footprint_kg"`
	Categories      map[string]int `json:"categories" yaml:"categories"`
	ItemTypes       map[string]int `json:"item_types" yaml:"item_types"`
	TopItems        []ItemCount    `json:"top_items" yaml:"top_items"`
	RecentItems     []Item         `json:"recent_items" yaml:"-"`
}
