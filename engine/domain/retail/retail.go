// Package retail is a sample domain adapter: retail orders as the opaque
// event payload, customer id as the grouping key, and two predictors
// translated from the original Rust predictors crate's retail heuristics.
package retail

import (
	"timelyworlds/engine/model"
	"timelyworlds/engine/predictor"
)

// Order is the domain payload carried by an EventEnvelope for the retail
// domain.
type Order struct {
	CustomerID uint64
	TotalCents int64
}

// NewOrderEvent builds the opaque envelope for one retail order at epoch.
func NewOrderEvent(epoch int64, order Order) model.EventEnvelope {
	return model.EventEnvelope{
		Domain:         "retail",
		Kind:           "order",
		Epoch:          epoch,
		Source:         "retail-ingest",
		FingerprintKey: fingerprint(order),
		GroupKey:       order.CustomerID,
		Payload:        order,
	}
}

// AggregateValue extracts the base-aggregate contribution (order total, in
// cents) from an event built by NewOrderEvent.
func AggregateValue(ev model.EventEnvelope) int64 {
	order, ok := ev.Payload.(Order)
	if !ok {
		return 0
	}
	return order.TotalCents
}

// FlatPredictor always predicts a constant delta, regardless of order size
// — a floor estimator for customers with no purchase history.
func FlatPredictor(delta int64) predictor.Predictor {
	return predictor.Const(delta)
}

// FractionPredictor predicts a delta proportional to the order total,
// e.g. "a repeat order of similar size is likely." floor is returned for
// any non-retail payload reaching it.
func FractionPredictor(fraction float64, floor int64) predictor.Predictor {
	return predictor.FromFloat64(floor, func(ev model.EventEnvelope) float64 {
		order, ok := ev.Payload.(Order)
		if !ok {
			return float64(floor)
		}
		return float64(order.TotalCents) * fraction
	})
}

func fingerprint(o Order) string {
	// Simple, deterministic fingerprint of customer id and total; two orders
	// from the same customer with the same total share one, which is
	// acceptable since FingerprintKey is diagnostic, not an identity used by
	// the core.
	buf := make([]byte, 0, 24)
	buf = appendUint(buf, o.CustomerID)
	buf = append(buf, ':')
	buf = appendInt(buf, o.TotalCents)
	return string(buf)
}

func appendUint(buf []byte, v uint64) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(buf, tmp[i:]...)
}

func appendInt(buf []byte, v int64) []byte {
	if v < 0 {
		buf = append(buf, '-')
		v = -v
	}
	return appendUint(buf, uint64(v))
}
