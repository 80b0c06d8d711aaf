// Package tui is the suiteboard terminal dashboard.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/caevv/suiteboard/internal/domain"
)

var (
	colorAccent = lipgloss.Color("#0EA5E9")
	colorPass   = lipgloss.Color("#22C55E")
	colorFail   = lipgloss.Color("#F43F5E")
	colorWarn   = lipgloss.Color("#EAB308")
	colorActive = lipgloss.Color("#38BDF8")
	colorDim    = lipgloss.Color("#94A3B8")
	colorFrame  = lipgloss.Color("#334155")
	colorCursor = lipgloss.Color("#A78BFA")

	roundedBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorFrame)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			BorderStyle(lipgloss.ThickBorder()).
			BorderBottom(true).
			BorderForeground(colorFrame).
			Padding(0, 1).
			MarginBottom(1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Background(lipgloss.Color("#0F172A")).
			Padding(0, 1).
			MarginTop(1)

	listStyle  = roundedBox.Padding(1, 2).MarginBottom(1)
	statsStyle = roundedBox.Padding(0, 2).MarginBottom(1)
	panelStyle = roundedBox.Padding(0, 2)

	itemStyle         = lipgloss.NewStyle().Padding(0, 1)
	itemSelectedStyle = itemStyle.Foreground(colorCursor).Bold(true)

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	subtitleStyle = lipgloss.NewStyle().Foreground(colorDim).Italic(true).Padding(0, 1)
	keyStyle      = lipgloss.NewStyle().Foreground(colorDim)
	valueStyle    = lipgloss.NewStyle().Bold(true)
	durationStyle = lipgloss.NewStyle().Foreground(colorActive)
	logStyle      = lipgloss.NewStyle().Foreground(colorDim).PaddingLeft(4)
	messageStyle  = lipgloss.NewStyle().Foreground(colorPass)
	errorStyle    = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
)

const (
	iconArrow  = "▸"
	iconBullet = "•"
)

// statusLook is how a status is drawn.
type statusLook struct {
	icon  string
	style lipgloss.Style
}

var (
	idleLook = statusLook{"·", lipgloss.NewStyle().Foreground(colorDim)}

	statusLooks = map[domain.ExecutionStatus]statusLook{
		domain.StatusPending:   {"◌", lipgloss.NewStyle().Foreground(colorActive)},
		domain.StatusRunning:   {"⟳", lipgloss.NewStyle().Foreground(colorActive).Bold(true)},
		domain.StatusSuccess:   {"✓", lipgloss.NewStyle().Foreground(colorPass).Bold(true)},
		domain.StatusFailure:   {"✗", lipgloss.NewStyle().Foreground(colorFail).Bold(true)},
		domain.StatusError:     {"!", lipgloss.NewStyle().Foreground(colorFail).Bold(true)},
		domain.StatusCancelled: {"⊘", lipgloss.NewStyle().Foreground(colorWarn)},
	}
)
