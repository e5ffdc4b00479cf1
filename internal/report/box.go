// Package report renders run summaries and scheduler sizing for the terminal.
package report

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// MessageType defines the type of message box to render.
type MessageType int

const (
	InfoMessage MessageType = iota
	SuccessMessage
	WarningMessage
	ErrorMessage
)

const (
	infoPrefix    = "ℹ"
	successPrefix = "✓"
	warningPrefix = "⚠"
	errorPrefix   = "✗"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Box is a builder for bordered message boxes.
type Box struct {
	messageType MessageType
	title       string
	content     []string
	width       int
}

// NewBox creates a new message box sized to the terminal.
func NewBox(messageType MessageType, title string) *Box {
	return &Box{
		messageType: messageType,
		title:       title,
		width:       TerminalWidth() - 8,
	}
}

// WithWidth overrides the maximum box width.
func (b *Box) WithWidth(width int) *Box {
	b.width = width
	return b
}

// AddLine adds a line of text to the box.
func (b *Box) AddLine(text string) *Box {
	b.content = append(b.content, text)
	return b
}

// AddBullet adds a bulleted line to the box.
func (b *Box) AddBullet(text string) *Box {
	b.content = append(b.content, fmt.Sprintf("• %s", text))
	return b
}

// AddKeyValue adds an aligned "key: value" line.
func (b *Box) AddKeyValue(key, value string) *Box {
	b.content = append(b.content, fmt.Sprintf("%-18s %s", key+":", value))
	return b
}

func (b *Box) style() (lipgloss.Style, string) {
	switch b.messageType {
	case SuccessMessage:
		return successStyle, successPrefix
	case WarningMessage:
		return warningStyle, warningPrefix
	case ErrorMessage:
		return errorStyle, errorPrefix
	default:
		return infoStyle, infoPrefix
	}
}

// Render returns the box as a string.
func (b *Box) Render() string {
	style, prefix := b.style()

	contentWidth := b.width - 6
	if contentWidth < 20 {
		contentWidth = 20
	}

	var lines []string
	for _, line := range append([]string{prefix + " " + b.title}, b.content...) {
		if utf8.RuneCountInString(line) <= contentWidth {
			lines = append(lines, line)
			continue
		}
		lines = append(lines, wrapText(line, contentWidth)...)
	}

	border := style.
		Border(lipgloss.RoundedBorder()).
		BorderForeground(style.GetForeground()).
		Padding(0, 1)
	lines[0] = style.Bold(true).Render(lines[0])
	return border.Render(strings.Join(lines, "\n"))
}

func render(t MessageType, title string, lines []string) string {
	box := NewBox(t, title)
	for _, line := range lines {
		box.AddLine(line)
	}
	return box.Render()
}

func Info(title string, lines ...string) string {
	return render(InfoMessage, title, lines)
}

func Success(title string, lines ...string) string {
	return render(SuccessMessage, title, lines)
}

func Warning(title string, lines ...string) string {
	return render(WarningMessage, title, lines)
}

func Error(title string, lines ...string) string {
	return render(ErrorMessage, title, lines)
}

// TerminalWidth returns the stdout width, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// wrapText wraps text to fit within maxWidth runes.
func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := words[0]
	width := utf8.RuneCountInString(current)
	for _, word := range words[1:] {
		w := utf8.RuneCountInString(word)
		if width+w+1 <= maxWidth {
			current += " " + word
			width += w + 1
			continue
		}
		lines = append(lines, current)
		current, width = word, w
	}
	return append(lines, current)
}
