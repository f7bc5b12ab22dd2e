package tui

// This file provides the interactive prompts built on Charm Huh: generic
// select, confirm and input helpers, plus the stop-point approver and the
// commit strategy chooser the orchestrator asks at decision points.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/flow"
)

// Terminal layout constants.
const (
	// TerminalEdgeMargin is the number of characters to leave between
	// menu content and the terminal edge.
	TerminalEdgeMargin = 4

	// MinMenuWidth is the minimum usable width for menu content.
	MinMenuWidth = 40
)

// ErrMenuCanceled is returned when the user cancels a prompt with q, Esc or Ctrl+C.
var ErrMenuCanceled = cadenceerrors.ErrMenuCanceled

// Option represents a selectable menu option.
type Option struct {
	Label       string
	Description string
	Value       string
}

// MenuConfig controls how prompts render.
type MenuConfig struct {
	Width        int
	Accessible   bool
	ShowKeyHints bool
}

// NewMenuConfig creates a MenuConfig with defaults. Accessible mode is
// enabled when the ACCESSIBLE environment variable is set.
func NewMenuConfig() *MenuConfig {
	_, accessible := os.LookupEnv("ACCESSIBLE")
	return &MenuConfig{
		Width:        DefaultBoxWidth,
		Accessible:   accessible,
		ShowKeyHints: true,
	}
}

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// TerminalWidth returns the width of stdout, or DefaultBoxWidth when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultBoxWidth
	}
	return width
}

// adaptWidth returns a menu width that fits the terminal, bounded by maxWidth.
func adaptWidth(maxWidth int) int {
	if maxWidth <= 0 {
		maxWidth = DefaultBoxWidth
	}
	available := TerminalWidth() - TerminalEdgeMargin
	if available < MinMenuWidth {
		return MinMenuWidth
	}
	return min(maxWidth, available)
}

// CadenceTheme returns a Huh theme using the semantic colors from styles.go.
func CadenceTheme() *huh.Theme {
	CheckNoColor()

	t := huh.ThemeBase()
	t.Focused.Base = t.Focused.Base.BorderForeground(ColorPrimary)
	t.Focused.Title = t.Focused.Title.Foreground(ColorPrimary)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(ColorPrimary)
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(ColorPrimary)
	t.Focused.TextInput.Cursor = t.Focused.TextInput.Cursor.Foreground(ColorPrimary)
	t.Focused.SelectedPrefix = t.Focused.SelectedPrefix.Foreground(ColorSuccess)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorError)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(ColorError)
	t.Focused.Description = t.Focused.Description.Foreground(ColorMuted)
	t.Blurred.Base = t.Blurred.Base.BorderForeground(ColorMuted)
	t.Blurred.Title = t.Blurred.Title.Foreground(ColorMuted)
	t.Help.Ellipsis = t.Help.Ellipsis.Foreground(ColorMuted)
	return t
}

// runForm runs one group of fields. Without a terminal it fails with
// ErrInteractiveRequired instead of hanging.
func runForm(ctx context.Context, cfg *MenuConfig, errorContext string, fields ...huh.Field) error {
	if !IsInteractive() {
		return fmt.Errorf("%s: %w", errorContext, cadenceerrors.ErrInteractiveRequired)
	}
	if cfg == nil {
		cfg = NewMenuConfig()
	}

	form := huh.NewForm(huh.NewGroup(fields...)).
		WithTheme(CadenceTheme()).
		WithWidth(adaptWidth(cfg.Width)).
		WithAccessible(cfg.Accessible).
		WithShowHelp(cfg.ShowKeyHints)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrMenuCanceled
		}
		return fmt.Errorf("%s: %w", errorContext, err)
	}
	return nil
}

// Select presents a single-selection menu and returns the selected value.
func Select(ctx context.Context, title string, options []Option, cfg *MenuConfig) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("select %q: %w", title, cadenceerrors.ErrEmptyValue)
	}

	huhOptions := make([]huh.Option[string], len(options))
	for i, opt := range options {
		label := opt.Label
		if opt.Description != "" {
			label = opt.Label + " - " + opt.Description
		}
		huhOptions[i] = huh.NewOption(label, opt.Value)
	}

	selected := options[0].Value
	field := huh.NewSelect[string]().
		Title(title).
		Options(huhOptions...).
		Value(&selected)
	if err := runForm(ctx, cfg, "select menu failed", field); err != nil {
		return "", err
	}
	return selected, nil
}

// Confirm presents a yes/no prompt.
func Confirm(ctx context.Context, message string, defaultYes bool, cfg *MenuConfig) (bool, error) {
	confirmed := defaultYes
	field := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)
	if err := runForm(ctx, cfg, "confirm prompt failed", field); err != nil {
		return false, err
	}
	return confirmed, nil
}

// Input presents a single-line text prompt.
func Input(ctx context.Context, prompt, defaultValue string, cfg *MenuConfig) (string, error) {
	value := defaultValue
	field := huh.NewInput().
		Title(prompt).
		Value(&value)
	if err := runForm(ctx, cfg, "input prompt failed", field); err != nil {
		return "", err
	}
	return value, nil
}

// StrategyOptions lists the commit strategies with a short description each.
func StrategyOptions() []Option {
	return []Option{
		{Label: constants.CommitPerTask.String(), Description: "commit each task once it passes quality checks", Value: constants.CommitPerTask.String()},
		{Label: constants.CommitPerPhase.String(), Description: "commit when every task of a phase passes", Value: constants.CommitPerPhase.String()},
		{Label: constants.CommitPerFeature.String(), Description: "one commit when the whole plan passes", Value: constants.CommitPerFeature.String()},
		{Label: constants.CommitManual.String(), Description: "never commit, wait for 'cadence commit'", Value: constants.CommitManual.String()},
	}
}

// StrategyPrompt asks for the commit strategy before execution starts.
// It satisfies orchestrator.StrategyChooser.
type StrategyPrompt struct {
	Config *MenuConfig
}

// ChooseStrategy implements orchestrator.StrategyChooser.
func (p StrategyPrompt) ChooseStrategy(ctx context.Context, f domain.FlowInstance) (constants.CommitStrategy, error) {
	title := fmt.Sprintf("How should the %d planned tasks be committed?", len(f.Plan))
	value, err := Select(ctx, title, StrategyOptions(), p.Config)
	if err != nil {
		return "", err
	}
	return constants.CommitStrategy(value), nil
}

// GateApprover resolves stop points by asking the user. The artifact under
// review is printed to Out before the prompt.
type GateApprover struct {
	Out    io.Writer
	Config *MenuConfig
}

// Approve implements flow.Approver.
func (a GateApprover) Approve(ctx context.Context, pending *flow.PendingApproval) error {
	if a.Out != nil {
		_, _ = fmt.Fprintln(a.Out, RenderPendingApproval(pending))
	}

	var (
		approve = true
		reason  string
	)
	title := fmt.Sprintf("Approve %s?", pending.Phase)
	if pending.IsBatch() {
		title = "Approve the task plan and start autonomous execution?"
	}
	fields := []huh.Field{
		huh.NewConfirm().Title(title).Affirmative("Approve").Negative("Reject").Value(&approve),
	}
	if err := runForm(ctx, a.Config, "approval prompt failed", fields...); err != nil {
		return err
	}
	if !approve {
		reasonField := huh.NewText().Title("What should change?").Value(&reason)
		if err := runForm(ctx, a.Config, "rejection prompt failed", reasonField); err != nil {
			return err
		}
		return pending.Resolve(domain.Reject(reason))
	}
	return pending.Resolve(domain.Approve())
}
