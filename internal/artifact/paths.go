package artifact

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/mrz1836/cadence/internal/constants"
)

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slug converts a title into a lowercase, dash-separated file name stem.
func Slug(title string) string {
	s := slugInvalid.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// ADRPath returns docs/adr/ADR-NNNN-<slug>.md.
func ADRPath(number int, title string) string {
	return path.Join(constants.ADRDir, fmt.Sprintf("ADR-%04d-%s.md", number, Slug(title)))
}

// DocumentPath returns the canonical path for a single-file document kind.
// ADRs are numbered and use ADRPath instead.
func DocumentPath(kind constants.DocumentKind, title string) string {
	name := Slug(title) + ".md"
	switch kind {
	case constants.DocumentPRD:
		return path.Join(constants.PRDDir, name)
	case constants.DocumentUXRD:
		return path.Join(constants.UXRDDir, name)
	case constants.DocumentDesignDoc:
		return path.Join(constants.DesignDir, name)
	case constants.DocumentWorkPlan:
		return path.Join(constants.PlansDir, name)
	case constants.DocumentADR:
		return ADRPath(1, title)
	default:
		return path.Join(constants.DocsDir, name)
	}
}

// TaskFilePath returns docs/plans/tasks/<plan>/task-NN.md.
func TaskFilePath(plan string, n int) string {
	return path.Join(constants.TaskFilesDir, Slug(plan), fmt.Sprintf("task-%02d.md", n))
}
