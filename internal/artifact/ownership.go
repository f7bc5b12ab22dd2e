// Package artifact maps document paths to the single collaborator allowed
// to write them, and builds canonical artifact file names.
package artifact

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

// Rule assigns a path pattern to its owning role.
type Rule struct {
	Pattern string
	Owner   domain.Role
	Kind    constants.DocumentKind
}

// Table is an ordered set of ownership rules. The first matching rule wins.
type Table struct {
	rules []Rule
}

// DefaultRules returns the ownership table for the persisted artifact layout.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: constants.PRDDir + "/*.md", Owner: domain.RolePRDCreator, Kind: constants.DocumentPRD},
		{Pattern: constants.UXRDDir + "/*.md", Owner: domain.RoleUXDesigner, Kind: constants.DocumentUXRD},
		{Pattern: constants.ADRDir + "/ADR-[0-9][0-9][0-9][0-9]-*.md", Owner: domain.RoleTechnicalDesigner, Kind: constants.DocumentADR},
		{Pattern: constants.DesignDir + "/*.md", Owner: domain.RoleTechnicalDesigner, Kind: constants.DocumentDesignDoc},
		{Pattern: constants.TaskFilesDir + "/*/task-[0-9][0-9].md", Owner: domain.RoleTaskDecomposer},
		{Pattern: constants.PlansDir + "/*.md", Owner: domain.RoleWorkPlanner, Kind: constants.DocumentWorkPlan},
	}
}

// NewTable validates rules and builds a table.
func NewTable(rules []Rule) (*Table, error) {
	for _, r := range rules {
		if !doublestar.ValidatePattern(r.Pattern) {
			return nil, fmt.Errorf("%w: bad ownership pattern %q", cadenceerrors.ErrInvalidArgument, r.Pattern)
		}
		if !r.Owner.IsValid() {
			return nil, fmt.Errorf("%w: %q owns %q", cadenceerrors.ErrUnknownRole, r.Owner, r.Pattern)
		}
	}
	return &Table{rules: append([]Rule(nil), rules...)}, nil
}

// DefaultTable returns the table built from DefaultRules.
func DefaultTable() *Table {
	t, err := NewTable(DefaultRules())
	if err != nil {
		panic(err) // static rules
	}
	return t
}

// Match returns the rule owning p.
func (t *Table) Match(p string) (Rule, bool) {
	clean := normalize(p)
	for _, r := range t.rules {
		ok, err := doublestar.Match(r.Pattern, clean)
		if err == nil && ok {
			return r, true
		}
	}
	return Rule{}, false
}

// Owner returns the role allowed to write p.
func (t *Table) Owner(p string) (domain.Role, bool) {
	r, ok := t.Match(p)
	return r.Owner, ok
}

// CheckWrite returns ErrOwnershipViolation when p is owned by a role other
// than role. Paths no rule matches are not restricted.
func (t *Table) CheckWrite(role domain.Role, p string) error {
	owner, ok := t.Owner(p)
	if !ok || owner == role {
		return nil
	}
	return fmt.Errorf("%w: %s may not write %s (owned by %s)",
		cadenceerrors.ErrOwnershipViolation, role, normalize(p), owner)
}

// normalize converts p to a clean, slash-separated relative path.
func normalize(p string) string {
	clean := path.Clean(filepath.ToSlash(p))
	return strings.TrimPrefix(clean, "./")
}
