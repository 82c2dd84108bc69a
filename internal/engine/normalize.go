package engine

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/smarttrash/smarttrash/internal/model"
)

// NormalizeAnalysis turns raw model output into a complete Analysis. Every one
// of the five fields is always populated; anything that cannot be determined
// is set to model.Unknown. When the output is not a JSON object at all, the
// text is kept verbatim in RawAnalysis.
func NormalizeAnalysis(raw string) model.Analysis {
	a := model.UnknownAnalysis()

	var fields map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &fields); err != nil || fields == nil {
		a.RawAnalysis = raw
		return a
	}

	for _, name := range model.AnalysisFields {
		if s, ok := fieldString(fields[name]); ok {
			a.Set(name, s)
		}
	}
	return a
}

// stripCodeFence removes a surrounding Markdown code block, which models add
// even when asked not to.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// fieldString renders a decoded JSON value as a field string. ok is false for
// null, missing and blank values.
func fieldString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		if strings.TrimSpace(val) == "" {
			return "", false
		}
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
