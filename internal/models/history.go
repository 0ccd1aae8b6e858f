package models

import "time"

type HistoricalPricePoint struct {
	SiteId     string    `json:"site_id"`
	FuelType   FuelType  `json:"fuel_type"`
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recorded_at"`
}

type PricePoint struct {
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recorded_at"`
}

type HistoricalPrices struct {
	E10 []PricePoint `json:"e10"`
	B7  []PricePoint `json:"b7"`
	E5  []PricePoint `json:"e5"`
	SDV []PricePoint `json:"sdv"`
}

// EmptyHistoricalPrices has every bucket present (non-nil) so it serializes
// as empty arrays rather than nulls.
func EmptyHistoricalPrices() HistoricalPrices {
	return HistoricalPrices{
		E10: []PricePoint{},
		B7:  []PricePoint{},
		E5:  []PricePoint{},
		SDV: []PricePoint{},
	}
}

func (hp *HistoricalPrices) Append(fuelType FuelType, point PricePoint) {
	switch fuelType {
	case E10:
		hp.E10 = append(hp.E10, point)
	case B7:
		hp.B7 = append(hp.B7, point)
	case E5:
		hp.E5 = append(hp.E5, point)
	case SDV:
		hp.SDV = append(hp.SDV, point)
	}
}

func (hp *HistoricalPrices) Bucket(fuelType FuelType) []PricePoint {
	switch fuelType {
	case E10:
		return hp.E10
	case B7:
		return hp.B7
	case E5:
		return hp.E5
	case SDV:
		return hp.SDV
	}
	return nil
}
