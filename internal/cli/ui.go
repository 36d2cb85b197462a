package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dcltools/netscope/pkg/classify"
)

var (
	colorCyan   = lipgloss.Color("36")  // teal, primary accents
	colorGreen  = lipgloss.Color("35")  // success
	colorYellow = lipgloss.Color("220") // warnings
	colorRed    = lipgloss.Color("167") // errors
	colorBlue   = lipgloss.Color("75")  // commands and links
	colorWhite  = lipgloss.Color("255") // values
	colorGray   = lipgloss.Color("245") // secondary text
	colorDim    = lipgloss.Color("240") // muted text
)

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)

	roleStyles = map[classify.Role]lipgloss.Style{
		classify.RoleValidator: lipgloss.NewStyle().Foreground(colorRed),
		classify.RoleSentry:    lipgloss.NewStyle().Foreground(colorGreen),
		classify.RoleObserver:  lipgloss.NewStyle().Foreground(colorYellow),
		classify.RoleSeed:      lipgloss.NewStyle().Foreground(colorBlue),
	}
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

func printSuccess(format string, args ...any) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Println(styleIconError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printNextStep prints a suggested follow-up command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// renderRole colors a role name for terminal display.
func renderRole(role classify.Role) string {
	if s, ok := roleStyles[role]; ok {
		return s.Render(string(role))
	}
	return StyleDim.Render(string(role))
}

// printStats prints graph statistics on a single line.
func printStats(nodes, edges int, truncated bool) {
	parts := []string{
		fmt.Sprintf("%d nodes", nodes),
		fmt.Sprintf("%d edges", edges),
	}
	line := "  " + StyleDim.Render(strings.Join(parts, " · "))
	if truncated {
		line += " " + StyleWarning.Render("(truncated)")
	}
	fmt.Println(line)
}

// printOrgs prints the per-organization node counts, largest first.
func printOrgs(orgs map[string]int) {
	names := make([]string, 0, len(orgs))
	for name := range orgs {
		names = append(names, name)
	}
	// Stable output: by count descending, then name.
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			if orgs[names[j]] > orgs[names[i]] ||
				(orgs[names[j]] == orgs[names[i]] && names[j] < names[i]) {
				names[i], names[j] = names[j], names[i]
			}
		}
	}

	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(16)
	for _, name := range names {
		fmt.Println("  " + keyStyle.Render(name) + StyleValue.Render(fmt.Sprintf("%d", orgs[name])))
	}
}
