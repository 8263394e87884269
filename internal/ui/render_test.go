package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestCard(t *testing.T) {
	t.Parallel()

	out := testTheme().SuccessCard("Switched to shop", "score: 100", "rules: 4")
	for _, want := range []string{"✓ Switched to shop", "score: 100", "rules: 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("card missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(testTheme().ErrorCard("Refused"), "✗ Refused") {
		t.Error("error card missing symbol")
	}
}

func TestTable(t *testing.T) {
	t.Parallel()

	var styled []int
	out := testTheme().Table(
		[]string{"NAME", "SCORE"},
		[][]string{{"shop", "85"}, {"blog", "40"}},
		func(row int) lipgloss.Style {
			styled = append(styled, row)
			return lipgloss.NewStyle()
		},
	)
	for _, want := range []string{"NAME", "SCORE", "shop", "85", "blog", "40"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if len(styled) == 0 {
		t.Error("row style func never called")
	}
	if strings.Index(out, "shop") > strings.Index(out, "blog") {
		t.Error("rows rendered out of order")
	}
}

func TestKeyValues(t *testing.T) {
	t.Parallel()

	got := testTheme().KeyValues([2]string{"path", "/home/dev/shop"}, [2]string{"score", "85"})
	want := []string{"path:  /home/dev/shop", "score: 85"}
	if len(got) != len(want) {
		t.Fatalf("KeyValues = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()

	out, err := testTheme().RenderMarkdown("# Shop\n\nProject context for **shop**.\n", 0)
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if !strings.Contains(out, "Shop") || !strings.Contains(out, "Project context for") {
		t.Errorf("rendered markdown missing text:\n%s", out)
	}
}
