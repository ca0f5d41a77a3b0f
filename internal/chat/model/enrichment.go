package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind names an enrichment type.
type Kind string

const (
	KindInsight       Kind = "insight"
	KindVisualization Kind = "visualization"
)

// Kinds lists every supported enrichment kind.
var Kinds = []Kind{KindInsight, KindVisualization}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindInsight || k == KindVisualization
}

// ParseKind accepts the kind names plus the short forms used on the console.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "insight", "insights":
		return KindInsight, nil
	case "visualization", "visualisation", "viz", "chart":
		return KindVisualization, nil
	}
	return "", fmt.Errorf("unknown enrichment kind %q", s)
}

// EnrichmentKey identifies at most one Enrichment in a conversation.
type EnrichmentKey struct {
	Kind     Kind
	Position int
}

func (k EnrichmentKey) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.Position)
}

// Enrichment is an optional elaboration attached to a successful Response.
type Enrichment struct {
	Kind         Kind               `json:"kind"`
	Position     int                `json:"position"`
	Status       Status             `json:"status"`
	Payload      *EnrichmentPayload `json:"payload,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

// EnrichmentPayload holds exactly one of Insight or Visualization.
type EnrichmentPayload struct {
	Insight       *Insight       `json:"insight,omitempty"`
	Visualization *Visualization `json:"visualization,omitempty"`
}

// Kind returns the kind matching the populated field.
func (p *EnrichmentPayload) Kind() Kind {
	switch {
	case p == nil:
		return ""
	case p.Insight != nil:
		return KindInsight
	case p.Visualization != nil:
		return KindVisualization
	}
	return ""
}

// EnrichmentOutcome is the result of one Insights or Visualization API call.
type EnrichmentOutcome struct {
	Payload *EnrichmentPayload
	Err     error
}

type Insight struct {
	Text string `json:"insights"`
}

type Visualization struct {
	Explanation string              `json:"explanation"`
	Config      VisualizationConfig `json:"visualization_config"`
	Data        []Record            `json:"visualization_data"`
}

// VisualizationConfig names the columns a chart reads. Bar and line charts use
// X and Y; pie charts use Labels and Values.
type VisualizationConfig struct {
	ChartType string `json:"chart_type"`
	X         string `json:"x,omitempty"`
	Y         string `json:"y,omitempty"`
	Labels    string `json:"labels,omitempty"`
	Values    string `json:"values,omitempty"`
	TopN      int    `json:"top_n,omitempty"`
}

// Series extracts chart-ready labels and numeric values from Data. Rows whose
// value is not numeric are skipped. When TopN is set, the TopN largest values
// are kept in descending order.
func (v *Visualization) Series() (labels []string, values []float64, err error) {
	if v == nil {
		return nil, nil, fmt.Errorf("no visualization")
	}
	labelKey, valueKey := v.Config.X, v.Config.Y
	switch strings.ToLower(v.Config.ChartType) {
	case "bar", "line":
	case "pie":
		labelKey, valueKey = v.Config.Labels, v.Config.Values
	default:
		return nil, nil, fmt.Errorf("unsupported chart type %q", v.Config.ChartType)
	}
	if labelKey == "" || valueKey == "" {
		return nil, nil, fmt.Errorf("chart %q is missing column names", v.Config.ChartType)
	}

	type point struct {
		label string
		value float64
	}
	points := make([]point, 0, len(v.Data))
	for _, row := range v.Data {
		f, ok := toFloat(row[valueKey])
		if !ok {
			continue
		}
		points = append(points, point{label: fmt.Sprint(row[labelKey]), value: f})
	}
	if v.Config.TopN > 0 && len(points) > v.Config.TopN {
		sort.SliceStable(points, func(i, j int) bool { return points[i].value > points[j].value })
		points = points[:v.Config.TopN]
	}

	labels = make([]string, len(points))
	values = make([]float64, len(points))
	for i, p := range points {
		labels[i] = p.label
		values[i] = p.value
	}
	return labels, values, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
