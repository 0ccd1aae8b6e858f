// Package brands holds the built-in list of retailer price feeds.
package brands

import (
	_ "embed"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rm-hull/fuel-prices-aggregator/internal"
	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
)

//go:embed retailers.csv
var retailersCSV string

// ATTRIBUTION credits the retailers whose open data feeds are aggregated.
var ATTRIBUTION = []string{
	"Contains fuel price data published by UK retailers under the CMA interim fuel price transparency scheme",
}

// GetRetailersList parses the embedded feed list in file order. Prefixes must
// be unique since they namespace every site ID.
func GetRetailersList() ([]*models.Retailer, error) {
	retailers := make([]*models.Retailer, 0, 20)
	byPrefix := make(map[string]string, 20)

	for record := range internal.ParseCSV(strings.NewReader(retailersCSV), false, models.FromCSV) {
		if record.Error != nil {
			return nil, errors.Wrap(record.Error, "failed to load retailers")
		}

		retailer := record.Value
		if other, ok := byPrefix[retailer.Prefix]; ok {
			return nil, errors.Newf("%s and %s share site id prefix %q", other, retailer.Name, retailer.Prefix)
		}
		byPrefix[retailer.Prefix] = retailer.Name
		retailers = append(retailers, retailer)
	}

	return retailers, nil
}
