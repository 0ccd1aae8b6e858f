// Package regions maps UK postcodes onto broad geographic regions using the
// postcode area, the leading letters of the outward code.
package regions

import (
	_ "embed"
	"strings"
	"sync"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/rm-hull/fuel-prices-aggregator/internal"
)

//go:embed postcode_areas.csv
var postcodeAreasCSV string

// Other collects postcodes whose area is not in the table, including
// malformed postcodes and the Crown Dependencies.
const Other = "Other"

type areaRegion struct {
	Area   string
	Region string
}

func fromCSV(record, headers []string) (areaRegion, error) {
	if len(record) != 2 {
		return areaRegion{}, errors.Newf("expected 2 columns, got %d", len(record))
	}
	return areaRegion{
		Area:   strings.ToUpper(strings.TrimSpace(record[0])),
		Region: strings.TrimSpace(record[1]),
	}, nil
}

func GetAreaRegions() (map[string]string, error) {
	m := make(map[string]string, 128)
	for record := range internal.ParseCSV(strings.NewReader(postcodeAreasCSV), false, fromCSV) {
		if record.Error != nil {
			return nil, errors.Wrap(record.Error, "failed to load postcode areas")
		}
		if _, ok := m[record.Value.Area]; ok {
			return nil, errors.Newf("duplicate postcode area detected: %s", record.Value.Area)
		}
		m[record.Value.Area] = record.Value.Region
	}
	return m, nil
}

var areaRegions = sync.OnceValue(func() map[string]string {
	m, err := GetAreaRegions()
	if err != nil {
		panic(err)
	}
	return m
})

// PostcodeArea returns the leading letters of a postcode, "SW1A 1AA" -> "SW".
func PostcodeArea(postcode string) string {
	postcode = strings.ToUpper(strings.TrimSpace(postcode))
	end := 0
	for end < len(postcode) && end < 2 && unicode.IsLetter(rune(postcode[end])) {
		end++
	}
	return postcode[:end]
}

// Lookup returns the region for a postcode, or Other.
func Lookup(postcode string) string {
	if region, ok := areaRegions()[PostcodeArea(postcode)]; ok {
		return region
	}
	return Other
}

// Names lists every known region, excluding Other.
func Names() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0, 16)
	for record := range internal.ParseCSV(strings.NewReader(postcodeAreasCSV), false, fromCSV) {
		if record.Error != nil {
			break
		}
		if _, ok := seen[record.Value.Region]; !ok {
			seen[record.Value.Region] = struct{}{}
			names = append(names, record.Value.Region)
		}
	}
	return names
}
