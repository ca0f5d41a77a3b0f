package console

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/conversation"
	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
)

const maxTableRows = 20

type palette struct {
	query   *color.Color
	sql     *color.Color
	warn    *color.Color
	err     *color.Color
	dim     *color.Color
	insight *color.Color
}

func newPalette(noColor bool) *palette {
	p := &palette{
		query:   color.New(color.FgCyan, color.Bold),
		sql:     color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		err:     color.New(color.FgRed),
		dim:     color.New(color.Faint, color.Italic),
		insight: color.New(color.FgMagenta),
	}
	if noColor {
		for _, c := range []*color.Color{p.query, p.sql, p.warn, p.err, p.dim, p.insight} {
			c.DisableColor()
		}
	}
	return p
}

// renderer writes timeline entries as plain terminal text.
type renderer struct {
	w io.Writer
	p *palette
}

func (r *renderer) entries(entries []conversation.DisplayEntry) {
	for _, e := range entries {
		r.entry(e)
	}
}

func (r *renderer) entry(e conversation.DisplayEntry) {
	switch e.Kind {
	case conversation.EntryQuery:
		r.p.query.Fprintf(r.w, "[%d] > %s\n", e.Position+1, e.Text)
	case conversation.EntryError:
		r.p.err.Fprintf(r.w, "    error: %s\n", e.Text)
	case conversation.EntryResponse:
		r.payload(e.Payload)
		if e.Insight != nil {
			r.insight(e.Insight)
		}
		if e.Visualization != nil {
			r.visualization(e.Visualization)
		}
	}
}

func (r *renderer) payload(p *model.ResponsePayload) {
	if p == nil {
		return
	}
	if p.GeneratedSQL != "" {
		r.p.sql.Fprintf(r.w, "    sql: %s\n", p.GeneratedSQL)
	}
	if p.BlockedCommands != "" {
		r.p.warn.Fprintf(r.w, "    blocked: %s\n", p.BlockedCommands)
	}
	if p.Error != "" {
		r.p.err.Fprintf(r.w, "    error: %s\n", p.Error)
	}
	r.table(p)
	for _, s := range p.Suggestions {
		r.p.dim.Fprintf(r.w, "    try: %s\n", s)
	}
}

func (r *renderer) table(p *model.ResponsePayload) {
	if !p.HasRows() {
		fmt.Fprintln(r.w, "    (no rows)")
		return
	}
	columns := p.Columns
	if len(columns) == 0 {
		for k := range p.Rows[0] {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "    %s\n", strings.Join(columns, "\t"))
	for i, row := range p.Rows {
		if i == maxTableRows {
			break
		}
		cells := make([]string, len(columns))
		for j, col := range columns {
			cells[j] = cell(row[col])
		}
		fmt.Fprintf(tw, "    %s\n", strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	if n := len(p.Rows); n > maxTableRows {
		r.p.dim.Fprintf(r.w, "    ... %d more rows\n", n-maxTableRows)
	}
	fmt.Fprintf(r.w, "    (%d rows)\n", len(p.Rows))
}

func (r *renderer) insight(in *model.Insight) {
	r.p.insight.Fprintf(r.w, "    insight: %s\n", strings.TrimSpace(in.Text))
}

func (r *renderer) visualization(v *model.Visualization) {
	r.p.insight.Fprintf(r.w, "    chart (%s): %s\n", v.Config.ChartType, strings.TrimSpace(v.Explanation))
	labels, values, err := v.Series()
	if err != nil {
		r.p.warn.Fprintf(r.w, "    %v\n", err)
		return
	}
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	for i := range labels {
		fmt.Fprintf(tw, "      %s\t%s\n", labels[i], formatNumber(values[i]))
	}
	_ = tw.Flush()
}

// enrichment reports the outcome of a /insight or /viz command.
func (r *renderer) enrichment(e *model.Enrichment) {
	if e == nil {
		return
	}
	if e.Status == model.StatusError {
		r.p.err.Fprintf(r.w, "    %s failed: %s (run the command again to retry)\n", e.Kind, e.ErrorMessage)
		return
	}
	if e.Payload == nil {
		return
	}
	switch e.Kind {
	case model.KindInsight:
		r.insight(e.Payload.Insight)
	case model.KindVisualization:
		r.visualization(e.Payload.Visualization)
	}
}

func (r *renderer) pending() {
	r.p.dim.Fprintln(r.w, "    ... running query")
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return formatNumber(x)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

func formatNumber(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
}
