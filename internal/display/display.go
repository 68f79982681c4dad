// Package display provides terminal formatting for canopy output.
package display

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/canopymail/canopy/internal/provider"
	"github.com/canopymail/canopy/internal/suggest"
)

var (
	// Styles
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	Warn     = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	ReuseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	CreateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4a86e8"))
)

// ActionBadge returns a styled reuse/create label for a suggestion.
func ActionBadge(action suggest.Action) string {
	switch action {
	case suggest.ActionReuse:
		return ReuseStyle.Render(fmt.Sprintf("%-6s", "REUSE"))
	case suggest.ActionCreate:
		return CreateStyle.Render(fmt.Sprintf("%-6s", "CREATE"))
	default:
		return fmt.Sprintf("%-6s", strings.ToUpper(string(action)))
	}
}

// Confidence formats a match confidence, dimmed when it is a weak signal.
func Confidence(score float64) string {
	s := fmt.Sprintf("%3.0f%%", score*100)
	if score < 0.8 {
		return Warn.Render(s)
	}
	return Success.Render(s)
}

// AccountLabel returns a short label for an account.
// Derives the label from the domain (e.g., "user@example.com" -> "example").
func AccountLabel(account string) string {
	if idx := strings.Index(account, "@"); idx > 0 {
		domain := account[idx+1:]
		if dotIdx := strings.Index(domain, "."); dotIdx > 0 {
			return domain[:dotIdx]
		}
		return domain
	}
	return account
}

// Truncate shortens a string to maxLen, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(Success.Render("✓") + " " + msg)
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+msg)
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(title string) {
	fmt.Println(Muted.Render(title))
}

// Tree prints discovered items regrouped as a tree.
func Tree(nodes []*provider.TreeNode, indent string) {
	for i, node := range nodes {
		connector := "├─"
		childIndent := indent + "│  "
		if i == len(nodes)-1 {
			connector = "└─"
			childIndent = indent + "   "
		}
		label := node.Name
		if node.Item != nil && node.Item.MessagesTotal > 0 {
			label += Dim.Render(fmt.Sprintf("  (%d)", node.Item.MessagesTotal))
		}
		fmt.Printf("%s%s %s\n", indent, Muted.Render(connector), label)
		Tree(node.Children, childIndent)
	}
}

// Suggestions prints the per-key suggestion list.
func Suggestions(suggestions []suggest.Suggestion) {
	for _, s := range suggestions {
		line := fmt.Sprintf("  %s %s", ActionBadge(s.Action), strings.Join(s.Path, " / "))
		if s.Action == suggest.ActionReuse {
			line += Dim.Render(fmt.Sprintf("  ← %s ", Truncate(s.MatchedItem, 40))) + Confidence(s.Confidence)
		}
		fmt.Println(line)
	}
}

// Report prints a provisioning report with per-item outcomes.
func Report(created []provider.CreatedItem, skipped []provider.SkippedItem, failed []provider.FailedItem) {
	for _, c := range created {
		fmt.Printf("  %s %s\n", Success.Render("+"), strings.Join(c.Path, " / "))
	}
	for _, s := range skipped {
		fmt.Printf("  %s %s %s\n", Dim.Render("="), strings.Join(s.Path, " / "), Dim.Render("("+s.Reason+")"))
	}
	for _, f := range failed {
		fmt.Printf("  %s %s %s\n", ErrStyle.Render("!"), strings.Join(f.Path, " / "), ErrStyle.Render(f.Error))
	}
}
