package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (a *App) View() string {
	if a.quitting {
		return ""
	}

	boxWidth := min(70, a.width-4)
	leftPad := max(2, (a.width-boxWidth)/2)
	indent := strings.Repeat(" ", leftPad)

	headerHeight := 3
	footerHeight := 4
	available := max(5, a.height-headerHeight-footerHeight)

	var header strings.Builder
	header.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, styleTitle.Render(a.title)))
	header.WriteString("\n")
	header.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, styleSubtitle.Render("thread "+a.threadID)))
	header.WriteString("\n\n")

	lines := a.transcript(boxWidth-4, indent)

	maxScroll := max(0, len(lines)-available)
	a.scrollOffset = min(a.scrollOffset, maxScroll)
	end := len(lines) - a.scrollOffset
	start := max(0, end-available)
	visible := lines[start:end]

	var body strings.Builder
	for _, l := range visible {
		body.WriteString(l)
		body.WriteString("\n")
	}
	for i := len(visible); i < available; i++ {
		body.WriteString("\n")
	}

	var footer strings.Builder
	if !a.waiting {
		inputBox := styleBox.Width(boxWidth).Render(a.input.View())
		footer.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, inputBox))
		footer.WriteString("\n")
	}
	status := "[enter] Send  [pgup/pgdn] Scroll  [esc] Quit"
	if a.waiting {
		status = "[esc] Quit"
	}
	footer.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, styleStatusBar.Render(status)))

	return header.String() + body.String() + footer.String()
}

func (a *App) transcript(width int, indent string) []string {
	var lines []string
	for _, msg := range a.history {
		wrapped := strings.Split(wrapText(msg.content, width), "\n")
		for i, line := range wrapped {
			switch msg.role {
			case "user":
				prefix := "> "
				if i > 0 {
					prefix = "  "
				}
				lines = append(lines, indent+styleUser.Render(prefix+line))
			case "error":
				lines = append(lines, indent+styleError.Render("! "+line))
			default:
				lines = append(lines, indent+styleAssistant.Render("  "+line))
			}
		}
		lines = append(lines, "")
	}
	if a.waiting {
		lines = append(lines, indent+a.spinner.View()+styleSubtitle.Render(" Thinking..."))
	}
	return lines
}

// wrapText breaks text on word boundaries so no line exceeds maxWidth,
// keeping existing line breaks.
func wrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 60
	}

	var out []string
	for _, para := range strings.Split(text, "\n") {
		if len(para) <= maxWidth {
			out = append(out, para)
			continue
		}
		var b strings.Builder
		lineLen := 0
		for i, word := range strings.Fields(para) {
			if i > 0 {
				if lineLen+1+len(word) > maxWidth {
					b.WriteString("\n")
					lineLen = 0
				} else {
					b.WriteString(" ")
					lineLen++
				}
			}
			b.WriteString(word)
			lineLen += len(word)
		}
		out = append(out, b.String())
	}
	return strings.Join(out, "\n")
}
