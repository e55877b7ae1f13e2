package ui

import (
	"encoding/json"
	"io"
	"time"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
)

// jsonRecord is the wire shape shared by the json and jsonl presenters.
type jsonRecord struct {
	Type      string               `json:"type"`
	Timestamp time.Time            `json:"ts"`
	Src       string               `json:"src,omitempty"`
	Dst       string               `json:"dst,omitempty"`
	Item      string               `json:"item,omitempty"`
	Action    string               `json:"action,omitempty"`
	Bytes     int64                `json:"bytes,omitempty"`
	ErrorCode string               `json:"error_code,omitempty"`
	Config    *event.ConfigPayload `json:"config,omitempty"`
}

func toRecord(ev event.Event) jsonRecord {
	return jsonRecord{
		Type:      ev.Type.String(),
		Timestamp: ev.Timestamp,
		Src:       ev.Src,
		Dst:       ev.Dst,
		Item:      ev.Item,
		Action:    string(ev.Action),
		Bytes:     ev.Bytes,
		ErrorCode: ev.ErrorCode,
		Config:    ev.Config,
	}
}

// jsonPresenter buffers every record and emits a single document with the
// final stats when the stream closes.
type jsonPresenter struct {
	w       io.Writer
	stats   *stats.Collector
	records []jsonRecord
}

func (p *jsonPresenter) Run(events <-chan event.Event) error {
	for ev := range events {
		p.records = append(p.records, toRecord(ev))
	}

	snap := p.stats.Snapshot()
	doc := struct {
		Events []jsonRecord   `json:"events"`
		Stats  stats.Snapshot `json:"stats"`
	}{Events: p.records, Stats: snap}

	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func (p *jsonPresenter) Summary() string { return "" }

// jsonlPresenter streams one JSON object per event line.
type jsonlPresenter struct {
	w io.Writer
}

func (p *jsonlPresenter) Run(events <-chan event.Event) error {
	enc := json.NewEncoder(p.w)
	for ev := range events {
		if err := enc.Encode(toRecord(ev)); err != nil {
			return err
		}
	}
	return nil
}

func (p *jsonlPresenter) Summary() string { return "" }
