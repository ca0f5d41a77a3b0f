package conversation

import (
	"strconv"

	"github.com/Chative-core-poc-v1/sqlchat/internal/chat/model"
)

type EntryKind string

const (
	EntryQuery    EntryKind = "query"
	EntryResponse EntryKind = "response"
	EntryError    EntryKind = "error"
)

// DisplayEntry is one renderable row of the timeline.
type DisplayEntry struct {
	ID       string
	Kind     EntryKind
	Position int
	// Text is the query text for query entries and the error message for
	// error entries.
	Text          string
	Payload       *model.ResponsePayload
	Insight       *model.Insight
	Visualization *model.Visualization
}

// Project merges queries, responses and enrichments into display order. It
// keeps no state between calls and runs in time linear in its input.
//
// Pending responses produce no entry; use ShowPending to decide whether to
// draw an in-progress indicator. Only successful enrichments are attached.
func Project(queries []model.Query, responses []model.Response, enrichments []model.Enrichment) []DisplayEntry {
	type attached struct {
		insight       *model.Insight
		visualization *model.Visualization
	}
	byPos := make(map[int]attached, len(enrichments))
	for _, e := range enrichments {
		if e.Status != model.StatusSuccess || e.Payload == nil {
			continue
		}
		a := byPos[e.Position]
		switch e.Kind {
		case model.KindInsight:
			a.insight = e.Payload.Insight
		case model.KindVisualization:
			a.visualization = e.Payload.Visualization
		}
		byPos[e.Position] = a
	}

	out := make([]DisplayEntry, 0, len(queries)+len(responses))
	for i, q := range queries {
		id := strconv.Itoa(i)
		out = append(out, DisplayEntry{ID: "q" + id, Kind: EntryQuery, Position: i, Text: q.Text})
		if i >= len(responses) {
			continue
		}
		r := responses[i]
		switch r.Status {
		case model.StatusSuccess:
			a := byPos[i]
			out = append(out, DisplayEntry{
				ID:            "r" + id,
				Kind:          EntryResponse,
				Position:      i,
				Payload:       r.Payload,
				Insight:       a.insight,
				Visualization: a.visualization,
			})
		case model.StatusError:
			out = append(out, DisplayEntry{ID: "e" + id, Kind: EntryError, Position: i, Text: r.ErrorMessage})
		}
	}
	return out
}

// ProjectSnapshot is Project over a Snapshot.
func ProjectSnapshot(s Snapshot) []DisplayEntry {
	return Project(s.Queries, s.Responses, s.Enrichments)
}

// ShowPending reports whether a dispatch is in flight for the last query.
func ShowPending(s Snapshot) bool {
	n := len(s.Queries)
	if !s.DispatchInFlight || n == 0 {
		return false
	}
	return len(s.Responses) < n || !s.Responses[n-1].Status.Terminal()
}
