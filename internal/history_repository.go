package internal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/rm-hull/fuel-prices-aggregator/internal/models"
	"github.com/tavsec/gin-healthcheck/checks"
	"go.uber.org/zap"
)

//go:embed sql/insert_price_history.sql
var insertPriceHistorySQL string

//go:embed sql/select_price_history.sql
var selectPriceHistorySQL string

// PriceHistoryRepository is the append-only time series of price changes.
type PriceHistoryRepository interface {
	RecordPrices(ctx context.Context, stations []models.FuelStation, recordedAt time.Time) (int, error)
	History(ctx context.Context, siteId string, fuelType models.FuelType, since time.Time) ([]models.HistoricalPricePoint, error)
	Check() checks.Check
	Close() error
}

type sqliteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPriceHistoryRepository(db *sql.DB) PriceHistoryRepository {
	return &sqliteRepository{
		db:     db,
		logger: zap.L(),
	}
}

// RecordPrices appends a point for each (site, fuel type) whose price differs
// from the last recorded value. It returns the number of points written.
func (repo *sqliteRepository) RecordPrices(ctx context.Context, stations []models.FuelStation, recordedAt time.Time) (int, error) {
	if len(stations) == 0 {
		return 0, nil
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				repo.logger.Error("error rolling back transaction", zap.Error(rbErr))
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertPriceHistorySQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			repo.logger.Warn("failed to close statement", zap.Error(err))
		}
	}()

	count := 0
	recordedAtMillis := recordedAt.UnixMilli()
	for _, station := range stations {
		for fuelType, price := range station.Prices {
			var res sql.Result
			res, err = stmt.ExecContext(ctx, station.SiteId, string(fuelType), price, recordedAtMillis)
			if err != nil {
				return 0, fmt.Errorf("failed to execute individual insert: %w", err)
			}
			var n int64
			n, err = res.RowsAffected()
			if err != nil {
				return 0, fmt.Errorf("failed to read rows affected: %w", err)
			}
			count += int(n)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return count, nil
}

// History returns points for a site recorded at or after since, oldest first.
// An empty fuelType selects every fuel type.
func (repo *sqliteRepository) History(ctx context.Context, siteId string, fuelType models.FuelType, since time.Time) ([]models.HistoricalPricePoint, error) {
	rows, err := repo.db.QueryContext(ctx, selectPriceHistorySQL, siteId, string(fuelType), since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to execute history query: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			repo.logger.Warn("failed to close rows", zap.Error(err))
		}
	}()

	results := make([]models.HistoricalPricePoint, 0)
	for rows.Next() {
		var point models.HistoricalPricePoint
		var recordedAt int64
		if err := rows.Scan(&point.SiteId, &point.FuelType, &point.Price, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		point.RecordedAt = time.UnixMilli(recordedAt).UTC()
		results = append(results, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return results, nil
}

func (repo *sqliteRepository) Check() checks.Check {
	return &databaseCheck{db: repo.db}
}

func (repo *sqliteRepository) Close() error {
	return repo.db.Close()
}

type databaseCheck struct {
	db *sql.DB
}

func (check *databaseCheck) Pass() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return check.db.PingContext(ctx) == nil
}

func (check *databaseCheck) Name() string {
	return "sqlite"
}
