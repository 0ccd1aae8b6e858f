package models

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// Retailer describes one upstream price feed: where to fetch it and the
// namespace applied to its site IDs.
type Retailer struct {
	Name   string `json:"name"`
	Url    string `json:"url"`
	Prefix string `json:"prefix"`
}

// SiteId namespaces a retailer-local identifier so IDs stay unique across
// sources that reuse numeric IDs.
func (org *Retailer) SiteId(localId string) string {
	return org.Prefix + "-" + localId
}

func FromCSV(record, headers []string) (*Retailer, error) {
	if len(record) < 2 {
		return nil, fmt.Errorf("expected at least 2 columns, got %d", len(record))
	}
	retailer := &Retailer{
		Name: strings.TrimSpace(record[0]),
		Url:  strings.TrimSpace(record[1]),
	}
	if retailer.Name == "" || retailer.Url == "" {
		return nil, fmt.Errorf("retailer name and url are required: %v", record)
	}
	if len(record) >= 3 && strings.TrimSpace(record[2]) != "" {
		retailer.Prefix = strings.TrimSpace(record[2])
	} else {
		retailer.Prefix = slug.Make(retailer.Name)
	}
	return retailer, nil
}
