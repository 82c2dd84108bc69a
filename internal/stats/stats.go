// Package stats derives period-scoped statistics from stored items.
//
// The running snapshot kept by the store is updated once per append; the views
// computed here instead rescan the items that fall inside a time window. Both
// fold items with model.Snapshot.Add, so the aggregation rules are shared.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/smarttrash/smarttrash/internal/model"
)

// ErrUnknownPeriod is returned for a period name that is not day, week, month, year or all.
var ErrUnknownPeriod = errors.New("stats: unknown period")

const (
	topItemsLimit    = 5
	recentItemsLimit = 5
	carbonUnit       = "kg CO2e"
)

// ItemSource provides a consistent copy of the stored items.
type ItemSource interface {
	Items(ctx context.Context) ([]model.Item, error)
}

// Engine computes period statistics over an item source.
type Engine struct {
	source ItemSource
	now    func() time.Time
}

// New creates an Engine reading from source. A nil now uses time.Now.
func New(source ItemSource, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{source: source, now: now}
}

// Compute returns the statistics for the named period.
func (e *Engine) Compute(ctx context.Context, period string) (model.PeriodStats, error) {
	p, ok := model.ParsePeriod(period)
	if !ok {
		return model.PeriodStats{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
	items, err := e.source.Items(ctx)
	if err != nil {
		return model.PeriodStats{}, fmt.Errorf("load items: %w", err)
	}
	return Compute(items, p, e.now())
}

// WindowStart resolves the inclusive lower bound of period relative to now, in
// now's location. bounded is false for PeriodAll. Weeks start on Monday.
func WindowStart(period model.Period, now time.Time) (start time.Time, bounded bool, err error) {
	y, m, d := now.Date()
	loc := now.Location()
	switch period {
	case model.PeriodDay:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), true, nil
	case model.PeriodWeek:
		// time.Weekday has Sunday = 0; shift so Monday = 0.
		offset := (int(now.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc), true, nil
	case model.PeriodMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), true, nil
	case model.PeriodYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), true, nil
	case model.PeriodAll:
		return time.Time{}, false, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
}

// Compute aggregates the items recorded within period. It does not modify items.
func Compute(items []model.Item, period model.Period, now time.Time) (model.PeriodStats, error) {
	start, bounded, err := WindowStart(period, now)
	if err != nil {
		return model.PeriodStats{}, err
	}

	acc := model.NewSnapshot()
	var order []string // item types in first-encountered order
	var inWindow []model.Item
	for _, it := range items {
		if bounded && it.Timestamp.Before(start) {
			continue
		}
		label := it.PrimaryLabel()
		if _, seen := acc.ItemTypes[label]; !seen {
			order = append(order, label)
		}
		acc.Add(it)
		inWindow = append(inWindow, it)
	}

	out := model.PeriodStats{
		Period:          period,
		TotalItems:      acc.TotalItems,
		CarbonFootprint: FormatCarbon(acc.TotalCarbonFootprint),
		CarbonValue:     acc.TotalCarbonFootprint,
		Categories:      acc.Categories,
		ItemTypes:       acc.ItemTypes,
		TopItems:        topItems(acc.ItemTypes, order, topItemsLimit),
		RecentItems:     recentItems(inWindow, recentItemsLimit),
	}
	if bounded {
		out.Since = &start
	}
	return out, nil
}

// FormatCarbon renders a carbon footprint with two decimals and its unit.
func FormatCarbon(kg float64) string {
	return fmt.Sprintf("%.2f %s", kg, carbonUnit)
}

// topItems ranks labels by count, descending. The sort is stable over the
// first-encountered order, so ties keep scan order.
func topItems(counts map[string]int, order []string, limit int) []model.ItemCount {
	ranked := make([]model.ItemCount, 0, len(order))
	for _, label := range order {
		ranked = append(ranked, model.ItemCount{Label: label, Count: counts[label]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// recentItems returns the newest limit items, newest first.
func recentItems(items []model.Item, limit int) []model.Item {
	out := make([]model.Item, 0, limit)
	for i := len(items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, items[i].Clone())
	}
	return out
}
