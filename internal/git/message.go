package git

import (
	"sort"
	"strings"

	"github.com/mrz1836/cadence/internal/domain"
)

// CommitType represents the type of change for conventional commits.
type CommitType string

// Commit type constants for conventional commits format.
const (
	CommitTypeFeat  CommitType = "feat"
	CommitTypeDocs  CommitType = "docs"
	CommitTypeTest  CommitType = "test"
	CommitTypeChore CommitType = "chore"
)

// Trailer keys appended to every cadence commit.
const (
	TrailerFlow     = "Cadence-Flow"
	TrailerTasks    = "Cadence-Tasks"
	TrailerStrategy = "Cadence-Strategy"
)

// InferCommitType infers the commit type from the committed paths.
func InferCommitType(paths []string) CommitType {
	hasTest := false
	hasDocs := false
	hasSource := false
	hasConfig := false

	for _, path := range paths {
		switch {
		case isTestFile(path):
			hasTest = true
		case isDocFile(path):
			hasDocs = true
		case isConfigFile(path):
			hasConfig = true
		default:
			hasSource = true
		}
	}

	// Priority: if only tests, it's a test commit
	if hasTest && !hasSource && !hasDocs {
		return CommitTypeTest
	}

	if hasDocs && !hasSource && !hasTest {
		return CommitTypeDocs
	}

	if hasConfig && !hasSource && !hasTest && !hasDocs {
		return CommitTypeChore
	}

	return CommitTypeFeat
}

func isTestFile(path string) bool {
	return strings.HasSuffix(path, "_test.go") ||
		strings.Contains(path, ".test.") ||
		strings.Contains(path, ".spec.")
}

func isDocFile(path string) bool {
	return strings.HasSuffix(path, ".md") ||
		strings.HasSuffix(path, ".txt") ||
		strings.HasPrefix(path, "docs/")
}

func isConfigFile(path string) bool {
	for _, ext := range []string{".yaml", ".yml", ".json", ".toml", ".ini"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// FormatMessage renders the full commit message for req: a conventional
// subject line, a body listing the files, and cadence trailers.
func FormatMessage(req domain.CommitRequest) string {
	var b strings.Builder
	b.WriteString(string(InferCommitType(req.Files)))
	b.WriteString(": ")
	b.WriteString(strings.TrimSpace(req.Message))
	b.WriteString("\n")

	if len(req.Files) > 0 {
		files := append([]string(nil), req.Files...)
		sort.Strings(files)
		b.WriteString("\n")
		for _, f := range files {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if req.FlowID != "" {
		b.WriteString(TrailerFlow + ": " + req.FlowID + "\n")
	}
	if len(req.TaskIDs) > 0 {
		b.WriteString(TrailerTasks + ": " + strings.Join(req.TaskIDs, ", ") + "\n")
	}
	if req.Strategy != "" {
		b.WriteString(TrailerStrategy + ": " + req.Strategy.String() + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
