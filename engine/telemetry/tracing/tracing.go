// Package tracing stamps the epoch and scenario ids a Step call is
// currently working through onto its context, so the logging and event-bus
// layers can tag every log line and notification with the epoch/scenario
// that produced it, without threading those ids through every signature.
package tracing

import (
	"context"
	"strconv"
)

type ctxKey struct{}

type ids struct {
	epoch       int64
	hasEpoch    bool
	scenarioID  uint64
	hasScenario bool
}

// WithEpoch returns a context tagging epoch as the one the call tree rooted
// here is processing. Engine.Step stamps this once per Step call.
func WithEpoch(ctx context.Context, epoch int64) context.Context {
	cur, _ := ctx.Value(ctxKey{}).(ids)
	cur.epoch, cur.hasEpoch = epoch, true
	return context.WithValue(ctx, ctxKey{}, cur)
}

// WithScenario layers a scenario id onto ctx's ids, for the
// publishScenario/publishAlert calls made while handling one scenario.
func WithScenario(ctx context.Context, scenarioID uint64) context.Context {
	cur, _ := ctx.Value(ctxKey{}).(ids)
	cur.scenarioID, cur.hasScenario = scenarioID, true
	return context.WithValue(ctx, ctxKey{}, cur)
}

// ExtractIDs returns the epoch and scenario ids carried by ctx as decimal
// strings, for use as a log or event field. Either is empty if ctx never
// had the corresponding With* function called on it.
func ExtractIDs(ctx context.Context) (epochID, scenarioID string) {
	cur, ok := ctx.Value(ctxKey{}).(ids)
	if !ok {
		return "", ""
	}
	if cur.hasEpoch {
		epochID = strconv.FormatInt(cur.epoch, 10)
	}
	if cur.hasScenario {
		scenarioID = strconv.FormatUint(cur.scenarioID, 10)
	}
	return epochID, scenarioID
}
