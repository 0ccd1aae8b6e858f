package models

import "time"

const DefaultTTL = 15 * time.Minute

type CacheEntry struct {
	Data              []FuelStation
	FetchedAt         time.Time
	SourceLastUpdated *string
}

// IsValid reports whether the entry can still be served without re-fetching.
func (ce *CacheEntry) IsValid(now time.Time, ttl time.Duration) bool {
	if ce == nil {
		return false
	}
	return now.Sub(ce.FetchedAt) < ttl
}

// CachePayload is the serialized form of a cache entry, a single keyed
// record holding the station list, the capture time in epoch millis and the
// source freshness timestamp.
type CachePayload struct {
	Data        []FuelStation `json:"data"`
	Timestamp   int64         `json:"timestamp"`
	LastUpdated *string       `json:"lastUpdated"`
}

func (ce *CacheEntry) ToPayload() CachePayload {
	return CachePayload{
		Data:        ce.Data,
		Timestamp:   ce.FetchedAt.UnixMilli(),
		LastUpdated: ce.SourceLastUpdated,
	}
}

func (cp *CachePayload) ToEntry() *CacheEntry {
	return &CacheEntry{
		Data:              cp.Data,
		FetchedAt:         time.UnixMilli(cp.Timestamp).UTC(),
		SourceLastUpdated: cp.LastUpdated,
	}
}

func MarshalCachePayload(entry *CacheEntry) ([]byte, error) {
	return json.Marshal(entry.ToPayload())
}

func UnmarshalCachePayload(data []byte) (*CacheEntry, error) {
	var payload CachePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload.ToEntry(), nil
}
