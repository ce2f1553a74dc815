// Package manufacturing is a sample domain adapter: operation-start events
// as the opaque payload, machine id as the grouping key, and a throughput
// predictor translated from the original Rust predictors crate's
// manufacturing heuristic.
package manufacturing

import (
	"timelyworlds/engine/model"
	"timelyworlds/engine/predictor"
)

// OperationStart is the domain payload for one manufacturing operation
// beginning on a machine.
type OperationStart struct {
	MachineID uint64
	WIPUnits  int64
}

// NewOperationEvent builds the opaque envelope for one operation start at
// epoch.
func NewOperationEvent(epoch int64, op OperationStart) model.EventEnvelope {
	return model.EventEnvelope{
		Domain:         "manufacturing",
		Kind:           "operation_start",
		Epoch:          epoch,
		Source:         "mes-ingest",
		FingerprintKey: fingerprint(op),
		GroupKey:       op.MachineID,
		Payload:        op,
	}
}

// AggregateValue extracts the base-aggregate contribution (work-in-progress
// units) from an event built by NewOperationEvent.
func AggregateValue(ev model.EventEnvelope) int64 {
	op, ok := ev.Payload.(OperationStart)
	if !ok {
		return 0
	}
	return op.WIPUnits
}

// ThroughputPredictor predicts that a machine currently running wip units
// will add roughly rate*wip additional units before the scenario horizon,
// clamped to floor when the payload is not recognized.
func ThroughputPredictor(rate float64, floor int64) predictor.Predictor {
	return predictor.FromFloat64(floor, func(ev model.EventEnvelope) float64 {
		op, ok := ev.Payload.(OperationStart)
		if !ok {
			return float64(floor)
		}
		return float64(op.WIPUnits) * rate
	})
}

func fingerprint(op OperationStart) string {
	buf := make([]byte, 0, 24)
	buf = appendUint(buf, op.MachineID)
	buf = append(buf, ':')
	buf = appendInt(buf, op.WIPUnits)
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
