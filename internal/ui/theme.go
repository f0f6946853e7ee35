package ui

import (
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// Theme defines UI color tokens used across widgets and text tags.
type Theme struct {
	// Widget colors
	Surface     tcell.Color
	Border      tcell.Color
	FocusBorder tcell.Color
	SelectionBg tcell.Color
	SelectionFg tcell.Color
	TextPrimary tcell.Color
	TextMuted   tcell.Color

	// Table colors
	TableHeader   tcell.Color
	TableHeaderBg tcell.Color
	TableRow      tcell.Color
	TableRowMuted tcell.Color

	// Risk levels (widgets)
	RiskHigh   tcell.Color
	RiskMedium tcell.Color
	RiskLow    tcell.Color

	// Text tag colors (for tview dynamic color markup)
	TagTextPrimary string
	TagMuted       string
	TagAccent      string
	TagSuccess     string
	TagWarning     string
	TagError       string
	TagRiskHigh    string
	TagRiskMedium  string
	TagRiskLow     string
}

// themeNames is the cycle order for the theme key.
var themeNames = []string{"dark", "light", "neon", "high-contrast"}

func hex(s string) tcell.Color { return tcell.GetColor(s) }

func themeDark() Theme {
	return Theme{
		Surface:     hex("#12161e"),
		Border:      hex("#2b3240"),
		FocusBorder: hex("#4aa8ff"),
		SelectionBg: hex("#2b3240"),
		SelectionFg: hex("#cfd8e3"),
		TextPrimary: hex("#e6edf3"),
		TextMuted:   hex("#8a939f"),

		TableHeader:   hex("#eab308"),
		TableHeaderBg: hex("#1a2332"),
		TableRow:      hex("#e6edf3"),
		TableRowMuted: hex("#94a3b8"),

		RiskHigh:   hex("#ff5f5f"),
		RiskMedium: hex("#ffd75f"),
		RiskLow:    hex("#87ffaf"),

		TagTextPrimary: "#e6edf3",
		TagMuted:       "#8a939f",
		TagAccent:      "#2dd4bf",
		TagSuccess:     "#22c55e",
		TagWarning:     "#f59e0b",
		TagError:       "#ef4444",
		TagRiskHigh:    "#ff5f5f",
		TagRiskMedium:  "#ffd75f",
		TagRiskLow:     "#87ffaf",
	}
}

func themeLight() Theme {
	return Theme{
		Surface:     hex("#ffffff"),
		Border:      hex("#d0d7de"),
		FocusBorder: hex("#1f6feb"),
		SelectionBg: hex("#e2e8f0"),
		SelectionFg: hex("#111827"),
		TextPrimary: hex("#111827"),
		TextMuted:   hex("#6b7280"),

		TableHeader:   hex("#1f2937"),
		TableHeaderBg: hex("#e5e7eb"),
		TableRow:      hex("#111827"),
		TableRowMuted: hex("#6b7280"),

		RiskHigh:   hex("#dc2626"),
		RiskMedium: hex("#ca8a04"),
		RiskLow:    hex("#16a34a"),

		TagTextPrimary: "#111827",
		TagMuted:       "#6b7280",
		TagAccent:      "#2563eb",
		TagSuccess:     "#15803d",
		TagWarning:     "#b45309",
		TagError:       "#b91c1c",
		TagRiskHigh:    "#dc2626",
		TagRiskMedium:  "#ca8a04",
		TagRiskLow:     "#16a34a",
	}
}

func themeNeon() Theme {
	return Theme{
		Surface:     hex("#14111a"),
		Border:      hex("#45385a"),
		FocusBorder: hex("#ff79c6"), // pink focus ring
		SelectionBg: hex("#2a1f3d"),
		SelectionFg: hex("#f8f5ff"),
		TextPrimary: hex("#f8f5ff"),
		TextMuted:   hex("#b8a8c9"),

		TableHeader:   hex("#ff79c6"),
		TableHeaderBg: hex("#301d49"),
		TableRow:      hex("#f8f5ff"),
		TableRowMuted: hex("#b8a8c9"),

		RiskHigh:   hex("#ff3b30"),
		RiskMedium: hex("#ffd60a"),
		RiskLow:    hex("#34c759"),

		TagTextPrimary: "#f8f5ff",
		TagMuted:       "#b8a8c9",
		TagAccent:      "#ff6ac1",
		TagSuccess:     "#00d084",
		TagWarning:     "#ffd166",
		TagError:       "#ff5555",
		TagRiskHigh:    "#ff3b30",
		TagRiskMedium:  "#ffd60a",
		TagRiskLow:     "#34c759",
	}
}

func themeHighContrast() Theme {
	return Theme{
		Surface:     hex("#000000"),
		Border:      hex("#ffffff"),
		FocusBorder: hex("#ffff00"),
		SelectionBg: hex("#ffffff"),
		SelectionFg: hex("#000000"),
		TextPrimary: hex("#ffffff"),
		TextMuted:   hex("#cccccc"),

		TableHeader:   hex("#ffffff"),
		TableHeaderBg: hex("#000000"),
		TableRow:      hex("#ffffff"),
		TableRowMuted: hex("#cccccc"),

		RiskHigh:   hex("#ff0000"),
		RiskMedium: hex("#ffff00"),
		RiskLow:    hex("#00ff00"),

		TagTextPrimary: "#ffffff",
		TagMuted:       "#cccccc",
		TagAccent:      "#00ffff",
		TagSuccess:     "#00ff00",
		TagWarning:     "#ffff00",
		TagError:       "#ff0000",
		TagRiskHigh:    "#ff0000",
		TagRiskMedium:  "#ffff00",
		TagRiskLow:     "#00ff00",
	}
}

// themeByName falls back to dark for unknown names.
func themeByName(name string) (string, Theme) {
	switch name {
	case "light":
		return name, themeLight()
	case "neon":
		return name, themeNeon()
	case "high-contrast":
		return name, themeHighContrast()
	}
	return "dark", themeDark()
}

func nextThemeName(current string) string {
	for i, n := range themeNames {
		if n == current {
			return themeNames[(i+1)%len(themeNames)]
		}
	}
	return themeNames[0]
}

// riskColor returns the widget color for a risk level.
func (t Theme) riskColor(r model.RiskLevel) tcell.Color {
	switch r {
	case model.RiskHigh:
		return t.RiskHigh
	case model.RiskMedium:
		return t.RiskMedium
	case model.RiskLow:
		return t.RiskLow
	}
	return t.TableRow
}

// riskTag returns the markup color for a risk level.
func (t Theme) riskTag(r model.RiskLevel) string {
	switch r {
	case model.RiskHigh:
		return t.TagRiskHigh
	case model.RiskMedium:
		return t.TagRiskMedium
	case model.RiskLow:
		return t.TagRiskLow
	}
	return t.TagTextPrimary
}

func detectTrueColor() bool {
	ct := strings.ToLower(os.Getenv("COLORTERM"))
	if strings.Contains(ct, "truecolor") || strings.Contains(ct, "24bit") {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "truecolor") || strings.Contains(term, "24bit") || strings.Contains(term, "256color")
}
