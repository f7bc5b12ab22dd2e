package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
)

func TestTable_Owner(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		path  string
		owner domain.Role
		ok    bool
	}{
		{"docs/prd/login.md", domain.RolePRDCreator, true},
		{"./docs/prd/login.md", domain.RolePRDCreator, true},
		{"docs/uxrd/login-flow.md", domain.RoleUXDesigner, true},
		{"docs/adr/ADR-0007-session-store.md", domain.RoleTechnicalDesigner, true},
		{"docs/adr/ADR-7-session-store.md", "", false},
		{"docs/design/login.md", domain.RoleTechnicalDesigner, true},
		{"docs/plans/login.md", domain.RoleWorkPlanner, true},
		{"docs/plans/tasks/login/task-01.md", domain.RoleTaskDecomposer, true},
		{"docs/plans/tasks/login/task-1.md", "", false},
		{"internal/auth/session.go", "", false},
		{"docs/prd/nested/login.md", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			owner, ok := table.Owner(tc.path)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.owner, owner)
		})
	}
}

func TestTable_CheckWrite(t *testing.T) {
	table := DefaultTable()

	require.NoError(t, table.CheckWrite(domain.RolePRDCreator, "docs/prd/login.md"))
	require.NoError(t, table.CheckWrite(domain.RoleTaskExecutor, "internal/auth/session.go"))

	err := table.CheckWrite(domain.RoleTaskExecutor, "docs/design/login.md")
	require.ErrorIs(t, err, cadenceerrors.ErrOwnershipViolation)
	assert.Contains(t, err.Error(), "technical-designer")
}

func TestTable_EachPatternHasOneOwner(t *testing.T) {
	seen := map[string]domain.Role{}
	for _, r := range DefaultRules() {
		_, dup := seen[r.Pattern]
		assert.False(t, dup, "pattern %s listed twice", r.Pattern)
		seen[r.Pattern] = r.Owner
	}
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable([]Rule{{Pattern: "docs/[", Owner: domain.RolePRDCreator}})
	require.ErrorIs(t, err, cadenceerrors.ErrInvalidArgument)

	_, err = NewTable([]Rule{{Pattern: "docs/*.md", Owner: "nobody"}})
	require.ErrorIs(t, err, cadenceerrors.ErrUnknownRole)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "docs/adr/ADR-0012-session-store.md", ADRPath(12, "Session Store"))
	assert.Equal(t, "docs/plans/tasks/login-flow/task-03.md", TaskFilePath("Login Flow", 3))
	assert.Equal(t, "docs/prd/user-login.md", DocumentPath(constants.DocumentPRD, "User Login!"))
	assert.Equal(t, "docs/design/user-login.md", DocumentPath(constants.DocumentDesignDoc, "user login"))

	table := DefaultTable()
	for _, p := range []string{ADRPath(1, "x"), TaskFilePath("p", 1), DocumentPath(constants.DocumentWorkPlan, "p")} {
		_, ok := table.Owner(p)
		assert.True(t, ok, p)
	}
}
