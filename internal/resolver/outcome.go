package resolver

import (
	"errors"

	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/metrics"
	"github.com/mgnrega-tn/backend/pkg/logger"
)

// Outcome tags the answer of a single tier. The engine falls through on
// both Empty and Unavailable; they differ only in how they are reported.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeEmpty
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeEmpty:
		return "empty"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

var errStoreUnconfigured = errors.New("primary store not configured")

type lookup[T any] struct {
	value   T
	outcome Outcome
}

func ok[T any](tier Tier, value T) lookup[T] {
	metrics.TierOutcomes.WithLabelValues(string(tier), OutcomeOK.String()).Inc()
	return lookup[T]{value: value, outcome: OutcomeOK}
}

func empty[T any](tier Tier) lookup[T] {
	metrics.TierOutcomes.WithLabelValues(string(tier), OutcomeEmpty.String()).Inc()
	logger.Debug("Tier has no data", zap.String("tier", string(tier)))
	return lookup[T]{outcome: OutcomeEmpty}
}

func unavailable[T any](tier Tier, err error, fields ...zap.Field) lookup[T] {
	metrics.TierOutcomes.WithLabelValues(string(tier), OutcomeUnavailable.String()).Inc()
	if errors.Is(err, errStoreUnconfigured) {
		logger.Debug("Tier not configured", zap.String("tier", string(tier)))
	} else {
		logger.Warn("Tier unavailable, falling back",
			append([]zap.Field{zap.String("tier", string(tier)), zap.Error(err)}, fields...)...,
		)
	}
	return lookup[T]{outcome: OutcomeUnavailable}
}
