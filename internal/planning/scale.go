// Package planning classifies task requests by scale and resolves which
// design documents a flow must produce.
//
// Everything in this package is pure: the same input always yields the same
// output, and nothing is read from or written to the environment.
package planning

import "github.com/mrz1836/cadence/internal/constants"

// Classifier sorts file-count estimates into scale classes.
type Classifier struct {
	// SmallMax is the largest estimate still classified as small.
	SmallMax int
	// MediumMax is the largest estimate still classified as medium.
	MediumMax int
}

// DefaultClassifier returns the standard 1-2 / 3-5 / 6+ thresholds.
func DefaultClassifier() Classifier {
	return Classifier{SmallMax: constants.SmallMaxFiles, MediumMax: constants.MediumMaxFiles}
}

// Classify maps an estimate to a scale. It is total: an estimate of zero
// counts as small, and anything past MediumMax is large, so unusually high
// estimates fail toward more ceremony.
// Negative estimates are rejected earlier by domain.TaskRequest.Validate.
func (c Classifier) Classify(fileCountEstimate int) constants.Scale {
	switch {
	case fileCountEstimate <= c.SmallMax:
		return constants.ScaleSmall
	case fileCountEstimate <= c.MediumMax:
		return constants.ScaleMedium
	default:
		return constants.ScaleLarge
	}
}

// Classify uses the default thresholds.
func Classify(fileCountEstimate int) constants.Scale {
	return DefaultClassifier().Classify(fileCountEstimate)
}
