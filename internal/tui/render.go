package tui

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/flow"
)

//nolint:gochecknoglobals // cached renderers, one per wrap width
var (
	renderersMu sync.Mutex
	renderers   = make(map[int]*glamour.TermRenderer)
)

// renderer returns a cached glamour renderer for width. A nil renderer
// means markdown is printed as is.
func renderer(width int) *glamour.TermRenderer {
	renderersMu.Lock()
	defer renderersMu.Unlock()
	if r, ok := renderers[width]; ok {
		return r
	}
	style := glamour.WithAutoStyle()
	if !HasColorSupport() {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		r = nil
	}
	renderers[width] = r
	return r
}

// RenderMarkdown renders md for the terminal, falling back to the raw text.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = DefaultBoxWidth
	}
	r := renderer(width)
	if r == nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// Humanize turns identifiers such as quality_not_converged or per-task into
// title case words.
func Humanize(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return cases.Title(language.English).String(s)
}

// EscalationMarkdown describes ev as markdown: what happened, why, and the
// proposed next step.
func EscalationMarkdown(ev domain.EscalationEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Escalation: %s\n\n", Humanize(ev.Kind.String()))
	if ev.Phase != "" || ev.TaskID != "" {
		var where []string
		if ev.Phase != "" {
			where = append(where, "phase `"+ev.Phase+"`")
		}
		if ev.TaskID != "" {
			where = append(where, "task `"+ev.TaskID+"`")
		}
		fmt.Fprintf(&b, "Raised in %s.\n\n", strings.Join(where, ", "))
	}
	fmt.Fprintf(&b, "**What:** %s\n\n", ev.What)
	fmt.Fprintf(&b, "**Why:** %s\n\n", ev.Why)
	fmt.Fprintf(&b, "**Next step:** %s\n", ev.NextStep)
	if len(ev.Payload) > 0 {
		keys := make([]string, 0, len(ev.Payload))
		for k := range ev.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, ev.Payload[k])
		}
	}
	return b.String()
}

// ReportMarkdown describes a completion report as markdown.
func ReportMarkdown(r *domain.CompletionReport) string {
	var b strings.Builder
	state := "complete"
	if !r.Halted {
		state = "stopped"
	}
	fmt.Fprintf(&b, "# Flow %s %s\n\n", r.FlowID, state)
	fmt.Fprintf(&b, "%s scale, %s variant", Humanize(r.Scale.String()), r.Variant)
	if r.CommitStrategy != "" {
		fmt.Fprintf(&b, ", %s commits", r.CommitStrategy)
	}
	b.WriteString(".\n\n")

	section(&b, "Documents produced", r.DocumentsProduced)
	section(&b, "Tasks completed", r.TasksCompleted)
	section(&b, "Commits", r.CommitsMade)
	section(&b, "Checks passed", r.ChecksPassed)
	section(&b, "Awaiting commit", r.PendingCommits)

	if len(r.Escalations) > 0 {
		b.WriteString("## Escalations\n\n")
		for _, ev := range r.Escalations {
			fmt.Fprintf(&b, "- **%s**: %s\n", ev.Kind, ev.What)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func section(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

// RenderEscalation renders ev for the terminal.
func RenderEscalation(ev domain.EscalationEvent) string {
	return RenderMarkdown(EscalationMarkdown(ev), adaptWidth(DefaultBoxWidth))
}

// RenderReport renders a completion report for the terminal.
func RenderReport(r *domain.CompletionReport) string {
	return RenderMarkdown(ReportMarkdown(r), adaptWidth(DefaultBoxWidth))
}

// RenderPendingApproval describes the stop point being asked about.
func RenderPendingApproval(p *flow.PendingApproval) string {
	kind := "Stop point"
	if p.IsBatch() {
		kind = "Batch approval"
	}
	line := NewOutputStyles().Warning.Render(fmt.Sprintf("%s: %s", kind, p.Phase))
	if p.ArtifactRef != "" {
		line += StyleDim.Render("  (" + p.ArtifactRef + ")")
	}
	return line
}
