package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// selectorImpl implements Selector with a huh select form.
type selectorImpl struct {
	theme    *Theme
	headless *HeadlessManager
}

// NewSelector creates a Selector backed by the given theme and headless manager.
func NewSelector(theme *Theme, hm *HeadlessManager) Selector {
	return &selectorImpl{theme: theme, headless: hm}
}

// Select returns the value of the chosen item. Headless, there is nobody
// to choose and it returns ErrHeadlessNoDefault.
func (s *selectorImpl) Select(title string, items []SelectItem) (string, error) {
	if len(items) == 0 {
		return "", ErrNoOptions
	}
	if s.headless.IsHeadless() {
		return "", ErrHeadlessNoDefault
	}
	return s.selectInteractive(title, items)
}

func (s *selectorImpl) selectInteractive(title string, items []SelectItem) (string, error) {
	opts := make([]huh.Option[string], len(items))
	for i, it := range items {
		label := it.Label
		if it.Desc != "" {
			label += "  " + s.theme.Muted().Render(it.Desc)
		}
		opts[i] = huh.NewOption(label, it.Value)
	}

	var value string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(opts...).
			Value(&value),
	)).WithTheme(s.theme.huhTheme())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("select: %w", err)
	}
	return value, nil
}

// promptImpl implements Prompt with a huh confirm form.
type promptImpl struct {
	theme    *Theme
	headless *HeadlessManager
}

// NewPrompt creates a Prompt backed by the given theme and headless manager.
func NewPrompt(theme *Theme, hm *HeadlessManager) Prompt {
	return &promptImpl{theme: theme, headless: hm}
}

// Confirm asks a yes/no question. Headless, it returns defaultVal.
func (p *promptImpl) Confirm(title string, defaultVal bool) (bool, error) {
	if p.headless.IsHeadless() {
		return defaultVal, nil
	}
	return p.confirmInteractive(title, defaultVal)
}

func (p *promptImpl) confirmInteractive(title string, defaultVal bool) (bool, error) {
	value := defaultVal
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Yes").
			Negative("No").
			Value(&value),
	)).WithTheme(p.theme.huhTheme())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrCancelled
		}
		return false, fmt.Errorf("confirm: %w", err)
	}
	return value, nil
}

// huhTheme maps the palette onto a huh form theme.
func (t *Theme) huhTheme() *huh.Theme {
	h := huh.ThemeBase()
	if t.NoColor {
		return h
	}

	primary := t.adaptive(t.Colors.Primary, lightPalette.Primary)
	green := t.adaptive(t.Colors.Success, lightPalette.Success)
	red := t.adaptive(t.Colors.Error, lightPalette.Error)
	text := t.adaptive(t.Colors.Text, lightPalette.Text)
	muted := t.adaptive(t.Colors.Muted, lightPalette.Muted)

	h.Focused.Base = h.Focused.Base.BorderForeground(t.Border())
	h.Focused.Title = h.Focused.Title.Foreground(primary).Bold(true)
	h.Focused.Description = h.Focused.Description.Foreground(muted)
	h.Focused.ErrorIndicator = h.Focused.ErrorIndicator.Foreground(red)
	h.Focused.ErrorMessage = h.Focused.ErrorMessage.Foreground(red)
	h.Focused.SelectSelector = h.Focused.SelectSelector.Foreground(primary).SetString("▸ ")
	h.Focused.Option = h.Focused.Option.Foreground(text)
	h.Focused.SelectedOption = h.Focused.SelectedOption.Foreground(green)
	h.Focused.FocusedButton = h.Focused.FocusedButton.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(primary)
	h.Focused.BlurredButton = h.Focused.BlurredButton.Foreground(text)

	h.Blurred = h.Focused
	h.Blurred.Base = h.Focused.Base.BorderStyle(lipgloss.HiddenBorder())
	h.Group.Title = h.Focused.Title
	return h
}
