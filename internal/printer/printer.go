// Package printer provides the styled console output used by the CLI:
// headers, key/value rows, and status lines.
package printer

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors shared across commands.
var (
	ColorPrimary = lipgloss.Color("#2196F3") // Blue
	ColorSuccess = lipgloss.Color("#8BC34A") // Lime Green
	ColorWarning = lipgloss.Color("#FFC107") // Yellow
	ColorError   = lipgloss.Color("#e53935") // Red
	ColorMuted   = lipgloss.Color("#7f8c9a")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(ColorMuted)

	subheaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	keyStyle       = lipgloss.NewStyle().Foreground(ColorMuted).Width(28)
	successStyle   = lipgloss.NewStyle().Foreground(ColorSuccess)
	warningStyle   = lipgloss.NewStyle().Foreground(ColorWarning)
	errorStyle     = lipgloss.NewStyle().Foreground(ColorError)
	listStyle      = lipgloss.NewStyle().PaddingLeft(2)
)

// Header prints a bordered section title.
func Header(title string) {
	fmt.Println(headerStyle.Render(strings.ToUpper(title)))
}

// Subheader prints a bold section label.
func Subheader(title string) {
	fmt.Println(subheaderStyle.Render(title))
}

// KV prints an aligned key/value row.
func KV(key string, value any) {
	fmt.Printf("%s %v\n", keyStyle.Render(key+":"), value)
}

// List prints indented bullet items.
func List(items ...string) {
	for _, item := range items {
		fmt.Println(listStyle.Render("- " + item))
	}
}

// Success prints a green checkmarked line.
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render("[ok] " + fmt.Sprintf(format, args...)))
}

// Warning prints a yellow warning line.
func Warning(format string, args ...any) {
	fmt.Println(warningStyle.Render("[warn] " + fmt.Sprintf(format, args...)))
}

// Error prints a red error line to stderr.
func Error(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("[error] "+fmt.Sprintf(format, args...)))
}
