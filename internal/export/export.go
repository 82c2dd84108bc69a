// Package export writes the item history to files for offline analysis.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog/log"

	"github.com/smarttrash/smarttrash/internal/model"
)

// Row is the flat, columnar form of one item.
type Row struct {
	ID                  int64    `parquet:"id" json:"id"`
	Timestamp           string   `parquet:"timestamp" json:"timestamp"`
	ImageReference      string   `parquet:"image_reference" json:"image_reference"`
	DetectedObjects     []string `parquet:"detected_objects,list" json:"detected_objects"`
	PrimaryLabel        string   `parquet:"primary_label" json:"primary_label"`
	WasteCategory       string   `parquet:"waste_category" json:"waste_category"`
	CategoryBucket      string   `parquet:"category_bucket" json:"category_bucket"`
	ProductionEmissions string   `parquet:"production_emissions" json:"production_emissions"`
	ProductionKg        float64  `parquet:"production_kg" json:"production_kg"`
	DisposalEmissions   string   `parquet:"disposal_emissions" json:"disposal_emissions"`
	RecommendedDisposal string   `parquet:"recommended_disposal" json:"recommended_disposal"`
	DecompositionTime   string   `parquet:"decomposition_time" json:"decomposition_time"`
	RawAnalysis         string   `parquet:"raw_analysis,optional" json:"raw_analysis,omitempty"`
}

// NewRow flattens an item.
func NewRow(it model.Item) Row {
	objects := make([]string, len(it.DetectedObjects))
	copy(objects, it.DetectedObjects)
	return Row{
		ID:                  int64(it.ID),
		Timestamp:           it.Timestamp.Format(time.RFC3339),
		ImageReference:      it.ImageReference,
		DetectedObjects:     objects,
		PrimaryLabel:        it.PrimaryLabel(),
		WasteCategory:       it.WasteCategory,
		CategoryBucket:      model.BucketCategory(it.WasteCategory),
		ProductionEmissions: it.ProductionEmissions,
		ProductionKg:        model.ParseEmission(it.ProductionEmissions),
		DisposalEmissions:   it.DisposalEmissions,
		RecommendedDisposal: it.RecommendedDisposal,
		DecompositionTime:   it.DecompositionTime,
		RawAnalysis:         it.RawAnalysis,
	}
}

// WriteParquet writes items as a single Parquet file.
func WriteParquet(w io.Writer, items []model.Item) error {
	rows := make([]Row, len(items))
	for i, it := range items {
		rows[i] = NewRow(it)
	}

	pw := parquet.NewGenericWriter[Row](w)
	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// ReadParquet reads rows written by WriteParquet.
func ReadParquet(r io.ReaderAt, size int64) ([]Row, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	var out []Row
	batch := make([]Row, 128)
	for {
		n, err := reader.Read(batch)
		out = append(out, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
	}
	return out, nil
}

// WriteJSONL writes one JSON row per line.
func WriteJSONL(w io.Writer, items []model.Item) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if err := enc.Encode(NewRow(it)); err != nil {
			return fmt.Errorf("write row %d: %w", it.ID, err)
		}
	}
	return nil
}

// WriteFile picks the format from the file extension (.parquet, .jsonl or .json).
func WriteFile(path string, items []model.Item) error {
	var write func(io.Writer, []model.Item) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		write = WriteParquet
	case ".jsonl", ".json":
		write = WriteJSONL
	default:
		return fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, items); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("items", len(items)).Msg("items exported")
	return nil
}
