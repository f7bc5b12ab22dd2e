package domain

import "github.com/mrz1836/cadence/internal/constants"

// DocumentRequirementSet maps each document kind to its requirement level.
// It is computed once per classification and frozen for the life of a flow.
type DocumentRequirementSet map[constants.DocumentKind]constants.RequirementLevel

// Level returns the requirement level for kind, not_needed when absent.
func (d DocumentRequirementSet) Level(kind constants.DocumentKind) constants.RequirementLevel {
	if level, ok := d[kind]; ok {
		return level
	}
	return constants.RequirementNotNeeded
}

// Requires reports whether a document of kind must be produced.
func (d DocumentRequirementSet) Requires(kind constants.DocumentKind) bool {
	return d.Level(kind) == constants.RequirementRequired
}

// Clone returns an independent copy of the set.
func (d DocumentRequirementSet) Clone() DocumentRequirementSet {
	if d == nil {
		return nil
	}
	out := make(DocumentRequirementSet, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Equal reports whether both sets hold the same levels for every kind.
func (d DocumentRequirementSet) Equal(other DocumentRequirementSet) bool {
	for _, kind := range constants.DocumentKinds() {
		if d.Level(kind) != other.Level(kind) {
			return false
		}
	}
	return true
}
