package models

import "time"

type SearchStatistics struct {
	CheapestPfs       map[FuelType][]string       `json:"cheapest_pfs"`
	LowestPrice       map[FuelType]float64        `json:"lowest_price"`
	AveragePrice      map[FuelType]float64        `json:"average_price"`
	HighestPrice      map[FuelType]float64        `json:"highest_price"`
	PriceDistribution map[FuelType]map[string]int `json:"price_distribution"`
	StandardDeviation map[FuelType]float64        `json:"standard_deviation"`
	BrandDistribution map[string]int              `json:"brand_distribution"`
}

type SearchResponse struct {
	Results     []FuelStation     `json:"results"`
	Attribution []string          `json:"attribution"`
	Statistics  *SearchStatistics `json:"statistics,omitempty"`
	LastUpdated *time.Time        `json:"last_updated,omitempty"`
}

// Average is a rounded mean price. Pence is 0 when Samples is 0, callers that
// need to tell "no data" apart from a real price check Samples.
type Average struct {
	Pence   int `json:"pence"`
	Samples int `json:"samples"`
}

type RegionalCheapest struct {
	Region   string   `json:"region"`
	FuelType FuelType `json:"fuel_type"`
	Price    float64  `json:"price"`
	SiteIds  []string `json:"site_ids"`
}

type RankedStation struct {
	FuelStation
	Price      float64  `json:"price"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}
