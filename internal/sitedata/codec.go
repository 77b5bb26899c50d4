package sitedata

import (
	"encoding/json"
	"fmt"
	"time"
)

// EncodeTabs splits a snapshot into one JSON blob per tab, the unit persisted by
// row-oriented cache backends.
func EncodeTabs(snap *Snapshot) (map[TabName][]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is nil")
	}
	parts := map[TabName]any{
		TabMenu:     snap.Menu,
		TabPages:    snap.Pages,
		TabContent:  snap.Content,
		TabSettings: snap.Settings,
	}
	if len(snap.Templates) > 0 {
		parts[TabTemplates] = snap.Templates
	}
	out := make(map[TabName][]byte, len(parts))
	for tab, v := range parts {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", tab, err)
		}
		out[tab] = data
	}
	return out, nil
}

// DecodeTabs rebuilds a snapshot from per-tab blobs. Every required tab must be present;
// a partial set is reported as ErrCacheMiss so callers fall through to a live fetch.
func DecodeTabs(blobs map[TabName][]byte, fetchedAt time.Time) (*Snapshot, error) {
	for _, tab := range RequiredTabs {
		if _, ok := blobs[tab]; !ok {
			return nil, fmt.Errorf("cached tab %s absent: %w", tab, ErrCacheMiss)
		}
	}
	snap := &Snapshot{FetchedAt: fetchedAt}
	targets := map[TabName]any{
		TabMenu:     &snap.Menu,
		TabPages:    &snap.Pages,
		TabContent:  &snap.Content,
		TabSettings: &snap.Settings,
	}
	if _, ok := blobs[TabTemplates]; ok {
		targets[TabTemplates] = &snap.Templates
	}
	for tab, dst := range targets {
		if err := json.Unmarshal(blobs[tab], dst); err != nil {
			return nil, fmt.Errorf("decode cached %s: %w", tab, err)
		}
	}
	if snap.Settings == nil {
		snap.Settings = Settings{}
	}
	return snap, nil
}
