package models

import (
	"math"
)

type FuelType string

const (
	E10 FuelType = "E10"
	B7  FuelType = "B7"
	E5  FuelType = "E5"
	SDV FuelType = "SDV"
)

// FuelTypes lists the fuel codes carried through from retailer feeds, in display order.
var FuelTypes = []FuelType{E10, B7, E5, SDV}

func (ft FuelType) IsValid() bool {
	switch ft {
	case E10, B7, E5, SDV:
		return true
	}
	return false
}

// UK bounding box, anything outside is treated as a bad geocode.
const (
	MinLongitude = -8.65
	MaxLongitude = 1.76
	MinLatitude  = 49.84
	MaxLatitude  = 60.86
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (loc Location) IsValid() bool {
	if math.IsNaN(loc.Latitude) || math.IsNaN(loc.Longitude) {
		return false
	}
	return loc.Longitude >= MinLongitude && loc.Longitude <= MaxLongitude &&
		loc.Latitude >= MinLatitude && loc.Latitude <= MaxLatitude
}

// Prices maps a fuel type to a price in pence to one decimal place (145.9),
// the precision retailers publish. A missing key means the station does not
// sell, or did not report, that fuel.
type Prices map[FuelType]float64

type FuelStation struct {
	SiteId      string   `json:"site_id"`
	Brand       string   `json:"brand"`
	Address     string   `json:"address"`
	Postcode    string   `json:"postcode"`
	Location    Location `json:"location"`
	Prices      Prices   `json:"prices"`
	LastUpdated *string  `json:"last_updated,omitempty"`
}

func (fs *FuelStation) Price(fuelType FuelType) (float64, bool) {
	price, ok := fs.Prices[fuelType]
	return price, ok
}
