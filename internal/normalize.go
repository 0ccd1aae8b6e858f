package internal

import (
	"fmt"
	"strings"

	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"github.com/shopspring/decimal"
)

var (
	pencePerPound = decimal.NewFromInt(100)
	poundsCutoff  = decimal.NewFromInt(10)
)

// Normalize maps one retailer's raw feed into the common station shape. It
// has no side effects: fetching, caching and retries belong to the caller.
func Normalize(retailer *models.Retailer, body []byte) (*models.FeedResult, error) {
	var resp models.FeedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s feed: %w", retailer.Name, err)
	}

	result := &models.FeedResult{
		Retailer: retailer.Name,
		Stations: make([]models.FuelStation, 0, len(resp.Stations)),
	}

	// An unparseable timestamp is treated as unknown.
	if lastUpdated := string(resp.LastUpdated); lastUpdated != "" {
		if _, ok := ParseFeedTimestamp(lastUpdated); ok {
			result.LastUpdated = &lastUpdated
		}
	}

	for _, raw := range resp.Stations {
		localId := string(raw.SiteId)
		if localId == "" {
			continue
		}

		station := models.FuelStation{
			SiteId:      retailer.SiteId(localId),
			Brand:       retailer.Name,
			Address:     string(raw.Address),
			Postcode:    string(raw.Postcode),
			Prices:      normalizePrices(raw.Prices),
			LastUpdated: result.LastUpdated,
		}
		if raw.Location.Latitude.Valid && raw.Location.Longitude.Valid {
			station.Location = models.Location{
				Latitude:  raw.Location.Latitude.Value,
				Longitude: raw.Location.Longitude.Value,
			}
		}

		result.Stations = append(result.Stations, station)
	}

	return result, nil
}

func normalizePrices(raw map[string]models.FlexFloat) models.Prices {
	prices := make(models.Prices, len(raw))
	for code, value := range raw {
		if !value.Valid || value.Value < 0 {
			continue
		}
		fuelType := models.FuelType(strings.ToUpper(strings.TrimSpace(code)))
		if fuelType == "" {
			continue
		}
		prices[fuelType] = toPence(value.Value)
	}
	return prices
}

// toPence converts a feed price into pence to one decimal place. A handful
// of retailers publish pounds (1.459) rather than pence (145.9).
func toPence(value float64) float64 {
	price := decimal.NewFromFloat(value)
	if price.IsPositive() && price.LessThan(poundsCutoff) {
		price = price.Mul(pencePerPound)
	}
	return price.Round(1).InexactFloat64()
}
