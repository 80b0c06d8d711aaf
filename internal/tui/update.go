package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles incoming messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refreshData()
		return m, tickCmd()

	case error:
		m.errorMessage = msg.Error()
		return m, nil
	}

	return m, nil
}

// handleKeyPress processes keyboard input.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message, m.errorMessage = "", ""

	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		if m.viewMode == ViewModeDetail {
			m.viewMode = ViewModeList
			m.detailHistory = nil
		}

	case "enter":
		if m.viewMode == ViewModeList && len(m.suites) > 0 {
			m.viewMode = ViewModeDetail
			m.loadDetail()
		}

	case "up", "k":
		if m.viewMode == ViewModeList && m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.viewMode == ViewModeList && m.selected < len(m.suites)-1 {
			m.selected++
		}

	case "g":
		if m.viewMode == ViewModeList {
			m.selected = 0
		}

	case "G":
		if m.viewMode == ViewModeList && len(m.suites) > 0 {
			m.selected = len(m.suites) - 1
		}

	case "t":
		m.triggerSelected()
		m.refreshData()

	case "a":
		m.triggerAll()
		m.refreshData()

	case "c":
		m.cancelSelected()
		m.refreshData()

	case "r":
		m.refreshData()
	}

	return m, nil
}
