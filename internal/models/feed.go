package models

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FlexString accepts either a JSON string or a JSON number. Several retailers
// publish numeric site IDs, others quote them. Any other JSON type is
// recorded as empty rather than failing the whole feed.
type FlexString string

func (fs *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*fs = ""
	if len(data) == 0 {
		return nil
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*fs = FlexString(strings.TrimSpace(s))
		}
	case c == '-' || (c >= '0' && c <= '9'):
		*fs = FlexString(data)
	}
	return nil
}

// FlexFloat accepts a JSON number, a quoted number or null. Unparseable and
// non-finite values ("NaN", "Inf") are recorded as absent rather than failing
// the whole feed.
type FlexFloat struct {
	Value float64
	Valid bool
}

func (ff *FlexFloat) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*ff = FlexFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*ff = FlexFloat{}
		return nil
	}
	*ff = FlexFloat{Value: v, Valid: true}
	return nil
}

type FeedLocation struct {
	Latitude  FlexFloat `json:"latitude"`
	Longitude FlexFloat `json:"longitude"`
}

type FeedStation struct {
	SiteId   FlexString           `json:"site_id"`
	Brand    FlexString           `json:"brand"`
	Address  FlexString           `json:"address"`
	Postcode FlexString           `json:"postcode"`
	Location FeedLocation         `json:"location"`
	Prices   map[string]FlexFloat `json:"prices"`
}

// FeedResponse is the common shape published by the retailers taking part
// in the CMA interim fuel price transparency scheme.
type FeedResponse struct {
	LastUpdated FlexString    `json:"last_updated"`
	Stations    []FeedStation `json:"stations"`
}

// FeedResult is one retailer's feed after normalization.
type FeedResult struct {
	Retailer    string
	Stations    []FuelStation
	LastUpdated *string
}
