package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
	errx "github.com/Chative-core-poc-v1/sqlchat/internal/core/error"
)

const maxErrSnippet = 200 // limit error snippet size

// consumed Query API fields; everything else lands in ResponsePayload.Debug.
var consumedQueryFields = map[string]bool{
	"generated_sql": true,
	"query_result":  true,
	"results":       true,
	"suggestions":   true,
	"error":         true,
	"status":        true,
}

// generatedSQL accepts either a bare SQL string or the object form
// {query, suggestions, blocked_cmds}.
type generatedSQL struct {
	Query       string
	Suggestions []string
	Blocked     string
}

func (g *generatedSQL) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &g.Query)
	}
	var obj struct {
		Query       json.RawMessage `json:"query"`
		Suggestions json.RawMessage `json:"suggestions"`
		Blocked     json.RawMessage `json:"blocked_cmds"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	g.Query = looseString(obj.Query)
	g.Blocked = looseString(obj.Blocked)
	sugg, err := decodeSuggestions(obj.Suggestions)
	if err != nil {
		return err
	}
	g.Suggestions = sugg
	return nil
}

type queryMetadata struct {
	Columns []string `json:"columns"`
}

func decodeQueryPayload(data []byte) (*model.ResponsePayload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errx.WrapDecode(fmt.Errorf("query response is not a json object: %w", err))
	}

	errText := looseString(raw["error"])
	if looseString(raw["status"]) == "error" {
		if errText == "" {
			errText = "query api reported an error"
		}
		return nil, errx.WrapBackend(errors.New(errText), 0)
	}

	p := &model.ResponsePayload{Error: errText}

	var gen generatedSQL
	if v, ok := raw["generated_sql"]; ok {
		if err := gen.UnmarshalJSON(v); err != nil {
			return nil, errx.WrapDecode(fmt.Errorf("generated_sql: %w", err))
		}
	}
	p.GeneratedSQL = gen.Query
	p.BlockedCommands = gen.Blocked

	rowsRaw, ok := raw["query_result"]
	if !ok || isNull(rowsRaw) {
		rowsRaw = raw["results"]
	}
	rows, columns, err := decodeRows(rowsRaw)
	if err != nil {
		return nil, errx.WrapDecode(fmt.Errorf("query_result: %w", err))
	}
	p.Rows = rows
	p.Columns = columns

	if metaRaw, ok := raw["query_metadata"]; ok {
		var meta queryMetadata
		if err := json.Unmarshal(metaRaw, &meta); err == nil && len(meta.Columns) > 0 {
			p.Columns = meta.Columns
		}
	}

	topLevel, err := decodeSuggestions(raw["suggestions"])
	if err != nil {
		return nil, errx.WrapDecode(fmt.Errorf("suggestions: %w", err))
	}
	p.Suggestions = mergeSuggestions(gen.Suggestions, topLevel)

	for k, v := range raw {
		if consumedQueryFields[k] {
			continue
		}
		if p.Debug == nil {
			p.Debug = make(map[string]json.RawMessage)
		}
		p.Debug[k] = v
	}
	return p, nil
}

// decodeRows decodes an array of row objects, keeping numbers as json.Number
// and reporting the column order of the first row.
func decodeRows(b json.RawMessage) ([]model.Record, []string, error) {
	if isNull(b) {
		return nil, nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, nil, err
	}
	rows := make([]model.Record, 0, len(items))
	for i, item := range items {
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()
		var rec model.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, rec)
	}
	if len(items) == 0 {
		return rows, nil, nil
	}
	columns, err := objectKeys(items[0])
	if err != nil {
		return nil, nil, err
	}
	return rows, columns, nil
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(b json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("row is not an object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// decodeSuggestions accepts a list of strings or a newline separated string.
func decodeSuggestions(b json.RawMessage) ([]string, error) {
	if isNull(b) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		return compact(list), nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return compact(strings.Split(s, "\n")), nil
}

func mergeSuggestions(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func decodeInsight(data []byte) (*model.EnrichmentPayload, error) {
	var body struct {
		Insights json.RawMessage `json:"insights"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, errx.WrapDecode(fmt.Errorf("insights response: %w", err))
	}
	text := looseString(body.Insights)
	if strings.TrimSpace(text) == "" {
		return nil, errx.WrapDecode(errors.New("insights response has no insights"))
	}
	return &model.EnrichmentPayload{Insight: &model.Insight{Text: text}}, nil
}

func decodeVisualization(data []byte) (*model.EnrichmentPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v model.Visualization
	if err := dec.Decode(&v); err != nil {
		return nil, errx.WrapDecode(fmt.Errorf("visualization response: %w", err))
	}
	return &model.EnrichmentPayload{Visualization: &v}, nil
}

// looseString renders a JSON string as its value and any other non-null JSON
// value as its compact text.
func looseString(b json.RawMessage) string {
	if isNull(b) {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return string(b)
	}
	return buf.String()
}

func isNull(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
