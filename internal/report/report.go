// Package report renders session state for the terminal: the summary block,
// the top-pattern table, surfaced echoes, and the periodic learning-progress
// line.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/perchlabs/echotree/internal/echo"
	"github.com/perchlabs/echotree/internal/learner"
	"github.com/perchlabs/echotree/internal/session"
	"github.com/perchlabs/echotree/internal/tree"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	echoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	patternStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("white"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// Summary renders the session summary block.
func Summary(sum session.Summary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🌳 Echo Tree Summary"))
	b.WriteString("\n")
	writeField(&b, "Tree Size", fmt.Sprintf("%d nodes", sum.Tree.TotalNodes))
	writeField(&b, "Tree Depth", fmt.Sprintf("%d", sum.Tree.MaxDepth))
	writeField(&b, "Total Actions", fmt.Sprintf("%d", sum.Actions))
	writeField(&b, "Turns", fmt.Sprintf("%d", sum.Turns))
	writeField(&b, "Learned Patterns", fmt.Sprintf("%d", sum.Patterns))
	writeField(&b, "Echo Enabled", fmt.Sprintf("%t", sum.EchoEnabled))

	if len(sum.TopPatterns) > 0 {
		b.WriteString("\n")
		b.WriteString(Patterns(sum.TopPatterns))
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "   %s %s\n",
		labelStyle.Render(fmt.Sprintf("%-17s", label+":")),
		valueStyle.Render(value))
}

// Patterns renders the top-pattern table, most frequent first.
func Patterns(stats []learner.PatternStat) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("📊 Top Patterns"))
	b.WriteString("\n")
	if len(stats) == 0 {
		b.WriteString(dimStyle.Render("   (none learned yet)"))
		b.WriteString("\n")
		return b.String()
	}
	for _, p := range stats {
		fmt.Fprintf(&b, "   %s %s\n",
			patternStyle.Render(p.Pattern),
			dimStyle.Render(fmt.Sprintf("(n=%d, success=%.1f%%)", p.Frequency, p.SuccessRate*100)))
	}
	return b.String()
}

// MemorySummary renders the state of a snapshot loaded outside a live
// session, so it carries no action or turn counters.
func MemorySummary(path string, ts tree.Summary, patterns int, top []learner.PatternStat) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🌳 Echo Tree Memory"))
	b.WriteString("\n")
	writeField(&b, "Snapshot", path)
	writeField(&b, "Tree Size", fmt.Sprintf("%d nodes", ts.TotalNodes))
	writeField(&b, "Tree Depth", fmt.Sprintf("%d", ts.MaxDepth))
	writeField(&b, "Observations", fmt.Sprintf("%d", ts.TotalFrequency))
	writeField(&b, "Learned Patterns", fmt.Sprintf("%d", patterns))

	if len(top) > 0 {
		b.WriteString("\n")
		b.WriteString(Patterns(top))
	}
	return b.String()
}

// Echo renders a surfaced suggestion in the agent's voice.
func Echo(s *echo.Suggestion) string {
	return echoStyle.Render("🔮 " + s.String())
}

// Progress renders the periodic learning-progress line.
func Progress(patterns, nodes int) string {
	return dimStyle.Render(fmt.Sprintf("📈 Learning Progress: %d patterns, %d tree nodes", patterns, nodes))
}

// TurnAnalysis renders a notable pattern-confidence line for a completed
// turn.
func TurnAnalysis(a *session.TurnAnalysis) string {
	if a.High {
		return valueStyle.Render(fmt.Sprintf("✨ High success pattern: %s (confidence: %.1f%%)", a.Pattern, a.Confidence*100))
	}
	return echoStyle.Render(fmt.Sprintf("⚡ Low success pattern: %s (confidence: %.1f%%)", a.Pattern, a.Confidence*100))
}
