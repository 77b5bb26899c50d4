package gviz

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

var envelopePattern = regexp.MustCompile(`google\.visualization\.Query\.setResponse\(([\s\S]*)\);?\s*$`)

type response struct {
	Status string `json:"status"`
	Errors []struct {
		Reason          string `json:"reason"`
		Message         string `json:"message"`
		DetailedMessage string `json:"detailed_message"`
	} `json:"errors"`
	Table *struct {
		Cols []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
			Type  string `json:"type"`
		} `json:"cols"`
		Rows []struct {
			C []*struct {
				V any `json:"v"`
			} `json:"c"`
		} `json:"rows"`
	} `json:"table"`
}

// ParseResponse strips the callback envelope from a gviz body and converts the table into
// rows keyed by column label. Unlabeled columns are dropped and absent cells become nil.
func ParseResponse(body []byte) (sitedata.Table, error) {
	m := envelopePattern.FindSubmatch(body)
	if m == nil {
		return sitedata.Table{}, fmt.Errorf("%w: response envelope not found", sitedata.ErrMalformedResponse)
	}

	var resp response
	if err := json.Unmarshal(m[1], &resp); err != nil {
		return sitedata.Table{}, fmt.Errorf("%w: %v", sitedata.ErrMalformedResponse, err)
	}
	if resp.Status == "error" {
		return sitedata.Table{}, fmt.Errorf("%w: %s", sitedata.ErrUpstreamReported, upstreamMessage(resp))
	}
	if resp.Table == nil {
		return sitedata.Table{}, fmt.Errorf("%w: response has no table", sitedata.ErrMalformedResponse)
	}

	labels := make([]string, len(resp.Table.Cols))
	columns := make([]string, 0, len(resp.Table.Cols))
	for i, col := range resp.Table.Cols {
		labels[i] = strings.TrimSpace(col.Label)
		if labels[i] != "" {
			columns = append(columns, labels[i])
		}
	}

	rows := make([]sitedata.Row, 0, len(resp.Table.Rows))
	for _, r := range resp.Table.Rows {
		row := make(sitedata.Row, len(columns))
		for i, label := range labels {
			if label == "" {
				continue
			}
			if i < len(r.C) && r.C[i] != nil {
				row[label] = r.C[i].V
			} else {
				row[label] = nil
			}
		}
		rows = append(rows, row)
	}
	return sitedata.Table{Columns: columns, Rows: rows}, nil
}

func upstreamMessage(resp response) string {
	if len(resp.Errors) == 0 {
		return "unknown error"
	}
	e := resp.Errors[0]
	switch {
	case e.Message != "":
		return e.Message
	case e.DetailedMessage != "":
		return e.DetailedMessage
	case e.Reason != "":
		return e.Reason
	default:
		return "unknown error"
	}
}
