package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
)

// driftStableBand is the |delta| below which the series counts as stable.
const driftStableBand = 0.05

// ConfidenceService records immutable confidence samples per belief and
// computes drift statistics over the series.
type ConfidenceService struct {
	driver domain.Driver
	logger *zap.Logger
}

// DriftStats summarises how a belief's mean confidence moved over time.
type DriftStats struct {
	Points      int     `json:"points"`
	Delta       float64 `json:"delta"`
	SlopePerDay float64 `json:"slope_per_day"`
	Volatility  float64 `json:"volatility"`
	Direction   string  `json:"direction"`
}

func NewConfidenceService(d domain.Driver, logger *zap.Logger) *ConfidenceService {
	return &ConfidenceService{driver: d, logger: logger}
}

// RecordPoint appends one immutable sample. Two samples for the same belief
// in the same second probe forward a few seconds rather than overwrite.
func (c *ConfidenceService) RecordPoint(ctx context.Context, tenant, beliefID string, conf domain.Confidence, ts int64) error {
	if !conf.Valid() {
		return fmt.Errorf("%w: confidence interval out of order", domain.ErrInvalidInput)
	}
	for probe := int64(0); probe < 5; probe++ {
		key := domain.ConfidenceKey(tenant, beliefID, ts+probe)
		exists, err := c.driver.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("probe confidence key: %w", err)
		}
		if exists {
			continue
		}
		point := domain.ConfidencePoint{BeliefID: beliefID, Confidence: conf, Timestamp: ts + probe}
		raw, err := marshal(&point)
		if err != nil {
			return err
		}
		meta := domain.WriteMeta{Tenant: tenant, Type: "confidence", Immutable: true, Timestamp: ts + probe}
		if err := c.driver.Write(ctx, key, raw, meta); err != nil {
			return fmt.Errorf("write confidence point: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: confidence series saturated for belief %s at %d", domain.ErrConflict, beliefID, ts)
}

// Series returns the samples of a belief in chronological order.
func (c *ConfidenceService) Series(ctx context.Context, tenant, beliefID string) ([]domain.ConfidencePoint, error) {
	results, err := c.driver.Query(ctx, domain.QuerySpec{Pattern: domain.ConfidencePattern(tenant, beliefID)})
	if err != nil {
		return nil, fmt.Errorf("query confidence series: %w", err)
	}
	points := make([]domain.ConfidencePoint, 0, len(results))
	for _, kv := range results {
		var p domain.ConfidencePoint
		if err := unmarshal(kv.Value, &p); err != nil {
			c.logger.Warn("skipping undecodable confidence point", zap.String("key", kv.Key), zap.Error(err))
			continue
		}
		points = append(points, p)
	}
	// Key order is lexicographic; the series needs numeric time order.
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points, nil
}

// Drift computes first-to-last delta, a least-squares slope per day, and the
// standard deviation of successive mean deltas.
func (c *ConfidenceService) Drift(points []domain.ConfidencePoint) DriftStats {
	stats := DriftStats{Points: len(points), Direction: "stable"}
	if len(points) < 2 {
		return stats
	}

	first, last := points[0], points[len(points)-1]
	stats.Delta = last.Confidence.Mean - first.Confidence.Mean

	// Least squares over (days since first sample, mean).
	n := float64(len(points))
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		x := float64(p.Timestamp-first.Timestamp) / 86_400.0
		y := p.Confidence.Mean
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom != 0 {
		stats.SlopePerDay = (n*sumXY - sumX*sumY) / denom
	}

	var deltas []float64
	for i := 1; i < len(points); i++ {
		deltas = append(deltas, points[i].Confidence.Mean-points[i-1].Confidence.Mean)
	}
	var mean float64
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(len(deltas))
	var variance float64
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	stats.Volatility = math.Sqrt(variance / float64(len(deltas)))

	switch {
	case stats.Delta > driftStableBand:
		stats.Direction = "rising"
	case stats.Delta < -driftStableBand:
		stats.Direction = "falling"
	}
	return stats
}
