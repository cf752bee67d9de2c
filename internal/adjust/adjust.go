// Package adjust computes the confidence adjustment implied by a single
// feedback record. The calculation is pure: no storage, no clock, no
// randomness, so the same tags always yield the same result.
package adjust

import "github.com/hansei-ai/hansei/internal/model"

// Per-tag deltas. Tags are independent; deltas sum before clamping.
const (
	DeltaTooOptimistic   = -0.15
	DeltaTooConservative = 0.10
	DeltaWrongAssumption = -0.25
	DeltaMissingContext  = -0.05
	DeltaCorrect         = 0.05
)

// Bounds for a single adjustment value and for the accumulated bias.
const (
	MinValue = -0.30
	MaxValue = 0.20
)

// typeRules assigns the categorical label by fixed priority, first match
// wins. The label is independent of the numeric value: a feedback tagged
// both wrong_assumption and correct still labels wrong_assumption even
// though correct contributed to the sum.
var typeRules = []struct {
	match func(model.FeedbackTags) bool
	label model.AdjustmentType
}{
	{func(t model.FeedbackTags) bool { return t.WrongAssumption }, model.AdjustmentWrongAssumption},
	{func(t model.FeedbackTags) bool { return t.TooOptimistic }, model.AdjustmentTooOptimistic},
	{func(t model.FeedbackTags) bool { return t.TooConservative }, model.AdjustmentTooConservative},
	{func(t model.FeedbackTags) bool { return t.MissingContext }, model.AdjustmentMissingContext},
}

// Compute returns the clamped adjustment value and its categorical type
// for one set of feedback tags. All-false tags yield (0, general_feedback).
func Compute(tags model.FeedbackTags) (float64, model.AdjustmentType) {
	var value float64
	if tags.TooOptimistic {
		value += DeltaTooOptimistic
	}
	if tags.TooConservative {
		value += DeltaTooConservative
	}
	if tags.WrongAssumption {
		value += DeltaWrongAssumption
	}
	if tags.MissingContext {
		value += DeltaMissingContext
	}
	if tags.Correct {
		value += DeltaCorrect
	}

	label := model.AdjustmentGeneralFeedback
	for _, rule := range typeRules {
		if rule.match(tags) {
			label = rule.label
			break
		}
	}
	return Clamp(value), label
}

// Clamp bounds v to [MinValue, MaxValue]. Shared with the bias path so a
// user's accumulated bias can never exceed a single worst-case adjustment.
func Clamp(v float64) float64 {
	if v < MinValue {
		return MinValue
	}
	if v > MaxValue {
		return MaxValue
	}
	return v
}
