package domain

// Role names a collaborator capability. The set is closed: only the roles
// declared here can be registered or invoked.
type Role string

// Role constants define every collaborator the flows can invoke.
const (
	RoleRequirementAnalyzer     Role = "requirement-analyzer"
	RoleMarketAnalyst           Role = "market-analyst"
	RolePRDCreator              Role = "prd-creator"
	RoleDocumentReviewer        Role = "document-reviewer"
	RoleUXDesigner              Role = "ux-designer"
	RoleTechnicalDesigner       Role = "technical-designer"
	RoleDesignSync              Role = "design-sync"
	RoleAcceptanceTestGenerator Role = "acceptance-test-generator"
	RoleWorkPlanner             Role = "work-planner"
	RoleTaskDecomposer          Role = "task-decomposer"
	RoleTaskExecutor            Role = "task-executor"
	RoleIntegrationTestReviewer Role = "integration-test-reviewer"
	RoleQualityFixer            Role = "quality-fixer"

	// Expert roles dispatched together by the expert-analysis fan-out.
	RoleSecurityExpert        Role = "security-expert"
	RolePerformanceExpert     Role = "performance-expert"
	RoleMaintainabilityExpert Role = "maintainability-expert"
	RoleDomainExpert          Role = "domain-expert"
	RoleTestExpert            Role = "test-expert"

	// Game specialist roles.
	RoleGameDesigner        Role = "game-designer"
	RoleArtDirector         Role = "art-director"
	RoleUISpecialist        Role = "ui-specialist"
	RoleAnalyticsSpecialist Role = "analytics-specialist"
	RolePolishSpecialist    Role = "polish-specialist"
)

// knownRoles backs IsValid and KnownRoles.
//
//nolint:gochecknoglobals // Read-only lookup table
var knownRoles = []Role{
	RoleRequirementAnalyzer,
	RoleMarketAnalyst,
	RolePRDCreator,
	RoleDocumentReviewer,
	RoleUXDesigner,
	RoleTechnicalDesigner,
	RoleDesignSync,
	RoleAcceptanceTestGenerator,
	RoleWorkPlanner,
	RoleTaskDecomposer,
	RoleTaskExecutor,
	RoleIntegrationTestReviewer,
	RoleQualityFixer,
	RoleSecurityExpert,
	RolePerformanceExpert,
	RoleMaintainabilityExpert,
	RoleDomainExpert,
	RoleTestExpert,
	RoleGameDesigner,
	RoleArtDirector,
	RoleUISpecialist,
	RoleAnalyticsSpecialist,
	RolePolishSpecialist,
}

// String returns the string representation of the Role.
// This implements fmt.Stringer for convenient logging and debugging.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the known collaborator roles.
func (r Role) IsValid() bool {
	for _, known := range knownRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsExpert reports whether the role takes part in expert-analysis fan-out.
func (r Role) IsExpert() bool {
	switch r {
	case RoleSecurityExpert, RolePerformanceExpert, RoleMaintainabilityExpert, RoleDomainExpert, RoleTestExpert:
		return true
	default:
		return false
	}
}

// KnownRoles returns a copy of the closed role set.
func KnownRoles() []Role {
	out := make([]Role, len(knownRoles))
	copy(out, knownRoles)
	return out
}

// ExpertRoles returns the roles eligible for expert-analysis fan-out.
func ExpertRoles() []Role {
	return []Role{RoleSecurityExpert, RolePerformanceExpert, RoleMaintainabilityExpert, RoleDomainExpert, RoleTestExpert}
}
