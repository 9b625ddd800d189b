package basketsync

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/domain"
)

var operationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shopper_basket_operations_total",
		Help: "Basket operations by outcome",
	},
	[]string{"operation", "result"},
)

func observe(operation string, err error) {
	operationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, domain.ErrServerRejected):
		return "rejected"
	case errors.Is(err, domain.ErrTotalMismatch):
		return "mismatch"
	case errors.Is(err, domain.ErrUnknownStore), errors.Is(err, domain.ErrInvalidPrice), errors.Is(err, domain.ErrInvalidName):
		return "invalid"
	default:
		return "error"
	}
}
