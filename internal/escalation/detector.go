// Package escalation watches running flows for conditions that must stop
// work and hand control back to a human: requirement changes, repeated
// failures, edit breadth and explicit user stops.
//
// Watchers only observe. They return escalation events and never change a
// flow or a task; the caller decides how to suspend.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/planning, internal/flow
//   - MUST NOT import: internal/execution, internal/orchestrator, internal/cli
package escalation

import (
	"regexp"
	"strings"

	"github.com/mrz1836/cadence/internal/constants"
)

// Change is a detected requirement change.
type Change struct {
	Category constants.ChangeCategory `json:"category"`
	Match    string                   `json:"match"`
}

type categoryPatterns struct {
	category constants.ChangeCategory
	patterns []*regexp.Regexp
}

// RequirementChangeDetector classifies new user input as a requirement change.
type RequirementChangeDetector struct {
	categories []categoryPatterns
}

// NewRequirementChangeDetector returns a detector with the built-in patterns.
// Categories are checked in order: technical change, constraint, feature.
func NewRequirementChangeDetector() *RequirementChangeDetector {
	return &RequirementChangeDetector{categories: []categoryPatterns{
		{
			category: constants.ChangeTechnicalRequirement,
			patterns: compile(
				`\b(switch|migrate|move|change)\s+(it\s+|this\s+)?(to|from|over to)\b`,
				`\binstead of\b`,
				`\buse\s+\S+\s+rather than\b`,
				`\b(replace|swap)\b.+\bwith\b`,
				`\b(different|another)\s+(database|framework|library|protocol|api|language)\b`,
			),
		},
		{
			category: constants.ChangeNewConstraint,
			patterns: compile(
				`\bmust\s+(not|never|always|only|be|support|work|run)\b`,
				`\b(has|have|needs?)\s+to\s+(be|work|run|support|stay|handle)\b`,
				`\bwithin\s+\d+\s*(ms|milliseconds|seconds|s|minutes|mb|gb|kb)\b`,
				`\b(no|without)\s+(new\s+|external\s+)?dependenc`,
				`\bcompl(y|iant|iance)\s+with\b`,
				`\b(at most|no more than|at least)\s+\d+`,
			),
		},
		{
			category: constants.ChangeNewFeature,
			patterns: compile(
				`\bnew feature\b`,
				`\b(also|additionally)\b.*\b(add|support|include|handle|show|allow)\b`,
				`\b(can|could)\s+(you|we|it)\s+also\b`,
				`\bwhat about (adding|supporting)\b`,
				`\b(add|support)\s+(a|an|the)?\s*(option|ability|way)\s+to\b`,
			),
		},
	}}
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// Detect reports the first category whose pattern matches text.
func (d *RequirementChangeDetector) Detect(text string) (Change, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Change{}, false
	}
	for _, c := range d.categories {
		for _, re := range c.patterns {
			if m := re.FindString(text); m != "" {
				return Change{Category: c.category, Match: m}, true
			}
		}
	}
	return Change{}, false
}
