package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/caevv/suiteboard/internal/domain"
)

const logTail = 4

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	if m.viewMode == ViewModeDetail {
		return m.renderDetailView()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader("⚡ Suiteboard"),
		m.renderStats(),
		m.renderSuiteList(),
		m.renderRunning(),
		m.renderRecent(),
		m.renderHelpBar("q: quit  │  ↑/↓: navigate  │  enter: details  │  t: trigger  │  a: trigger all  │  c: cancel  │  r: refresh"),
	)
}

func (m Model) renderHeader(title string) string {
	subtitle := subtitleStyle.Render(fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05")))
	header := lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render(title), "  ", subtitle)
	return headerStyle.Render(header)
}

// renderStats renders the dashboard counters.
func (m Model) renderStats() string {
	s := m.stats
	stats := []string{
		fmt.Sprintf("%s %d", keyStyle.Render("Suites:"), len(m.suites)),
		fmt.Sprintf("%s %d", keyStyle.Render("Executions:"), s.Total),
		fmt.Sprintf("%s %d (%.1f%%)", keyStyle.Render("Success:"), s.Success, s.SuccessRate),
		fmt.Sprintf("%s %d", keyStyle.Render("Failed:"), s.Failure),
		fmt.Sprintf("%s %d", keyStyle.Render("In progress:"), s.InProgress),
	}
	return statsStyle.Render(strings.Join(stats, "  │  "))
}

func (m Model) renderSuiteList() string {
	if len(m.suites) == 0 {
		return listStyle.Render(subtitleStyle.Render("No test suites registered"))
	}

	rows := []string{
		titleStyle.Render("Test Suites"),
		"",
		keyStyle.Render(fmt.Sprintf("   %-24s  %-12s  %-14s  %-11s  %s", "Name", "Product", "Type", "Status", "Last Run")),
		keyStyle.Render(strings.Repeat("─", 80)),
	}
	for i, st := range m.suites {
		rows = append(rows, m.renderSuiteRow(st, i == m.selected))
	}
	return listStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) renderSuiteRow(st SuiteState, selected bool) string {
	cursor := " "
	if selected {
		cursor = iconArrow
	}

	status := "idle"
	if st.Job != nil {
		status = string(st.Job.Status)
	} else if st.LastRun != nil {
		status = string(st.LastRun.Status)
	}

	lastRun := "-"
	if st.LastRun != nil {
		lastRun = formatTimeAgo(st.LastRun.StartTime)
	}

	row := fmt.Sprintf("%s  %-24s  %-12s  %-14s  %s  %s",
		cursor,
		padRight(truncate(st.Suite.Name, 24), 24),
		truncate(st.Suite.PrimaryProduct(), 12),
		truncate(st.Suite.TestSuiteType, 14),
		renderStatus(domain.ExecutionStatus(status), 11),
		durationStyle.Render(lastRun),
	)

	if selected {
		return itemSelectedStyle.Render(row)
	}
	return itemStyle.Render(row)
}

// renderRunning renders in-flight jobs with their latest log lines.
func (m Model) renderRunning() string {
	rows := []string{titleStyle.Render(fmt.Sprintf("Running Jobs (%d)", len(m.running))), ""}
	if len(m.running) == 0 {
		rows = append(rows, subtitleStyle.Render("No jobs running"))
		return panelStyle.Render(strings.Join(rows, "\n"))
	}

	for _, job := range m.running {
		elapsed := time.Since(job.StartTime)
		if job.EndTime != nil {
			elapsed = job.EndTime.Sub(job.StartTime)
		}
		rows = append(rows, fmt.Sprintf("%s %-24s %s  %s",
			iconBullet,
			truncate(job.SuiteName, 24),
			renderStatus(job.Status, 11),
			durationStyle.Render(formatDuration(elapsed)),
		))
		if n := len(job.Logs); n > 0 {
			rows = append(rows, logStyle.Render(job.Logs[n-1]))
		}
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

// renderRecent renders the newest executions.
func (m Model) renderRecent() string {
	rows := []string{titleStyle.Render(fmt.Sprintf("Recent Executions (%d)", len(m.recent))), ""}
	if len(m.recent) == 0 {
		rows = append(rows, subtitleStyle.Render("No executions yet"))
		return panelStyle.Render(strings.Join(rows, "\n"))
	}

	rows = append(rows,
		keyStyle.Render(fmt.Sprintf("   %-10s  %-24s  %-11s  %-12s  %s", "Time", "Suite", "Status", "Triggered By", "Duration")),
		keyStyle.Render("   "+strings.Repeat("─", 75)),
	)
	for _, e := range m.recent {
		rows = append(rows, renderExecutionRow(e))
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func renderExecutionRow(e domain.Execution) string {
	duration := "running..."
	if e.EndTime != nil {
		duration = formatDuration(e.Duration())
	}
	return fmt.Sprintf("%s  %-10s  %-24s  %s  %-12s  %s",
		iconBullet,
		e.StartTime.Local().Format("15:04:05"),
		padRight(truncate(e.SuiteName, 24), 24),
		renderStatus(e.Status, 11),
		truncate(e.TriggeredBy, 12),
		durationStyle.Render(duration),
	)
}

func (m Model) renderHelpBar(help string) string {
	switch {
	case m.errorMessage != "":
		return statusBarStyle.Render(errorStyle.Render("Error: " + m.errorMessage))
	case m.message != "":
		return statusBarStyle.Render(messageStyle.Render(m.message))
	}
	return statusBarStyle.Render(help)
}

// renderDetailView renders the selected suite's configuration, its running
// job log and recent executions.
func (m Model) renderDetailView() string {
	st, ok := m.current()
	if !ok {
		return "Invalid suite selection"
	}
	s := st.Suite

	info := []string{
		titleStyle.Render("Configuration"),
		"",
		kv("Agent:", s.Agent),
		kv("Target:", truncate(s.TargetURL, 60)),
		kv("Type:", s.TestSuiteType),
		kv("Products:", strings.Join(s.Products, ", ")),
		kv("Environments:", strings.Join(s.Environments, ", ")),
		kv("Timeout:", fmt.Sprintf("%dm", s.TimeoutMinutes)),
	}
	if len(s.CloudProviders) > 0 {
		info = append(info, kv("Clouds:", strings.Join(s.CloudProviders, ", ")))
	}
	if len(s.PodNames) > 0 {
		info = append(info, kv("Pods:", strings.Join(s.PodNames, ", ")))
	}
	if len(s.NotificationConditions) > 0 {
		info = append(info, kv("Notify on:", strings.Join(s.NotificationConditions, ", ")))
	}

	sections := []string{
		m.renderHeader("⚡ Suiteboard - " + s.Name),
		listStyle.Render(strings.Join(info, "\n")),
	}

	if st.Job != nil {
		job := st.Job
		logs := []string{
			titleStyle.Render("Current Job ") + renderStatus(job.Status, 0),
			"",
		}
		start := max(0, len(job.Logs)-logTail)
		for _, line := range job.Logs[start:] {
			logs = append(logs, logStyle.Render(line))
		}
		sections = append(sections, panelStyle.Render(strings.Join(logs, "\n")))
	}

	history := []string{titleStyle.Render(fmt.Sprintf("Execution History (%d)", len(m.detailHistory))), ""}
	if len(m.detailHistory) == 0 {
		history = append(history, subtitleStyle.Render("No executions yet"))
	}
	for _, e := range m.detailHistory {
		history = append(history, renderExecutionRow(e))
	}
	sections = append(sections,
		panelStyle.Render(strings.Join(history, "\n")),
		m.renderHelpBar("esc: back  │  t: trigger  │  c: cancel  │  q: quit  │  r: refresh"),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func kv(key, value string) string {
	return fmt.Sprintf("%s %s", keyStyle.Render(key), valueStyle.Render(value))
}

// renderStatus renders a status with its icon, padded to width.
func renderStatus(status domain.ExecutionStatus, width int) string {
	look, ok := statusLooks[status]
	if !ok {
		look = idleLook
	}
	return look.style.Render(padRight(look.icon+" "+string(status), width))
}

// Helper functions

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// formatTimeAgo formats a past time relative to now.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

// truncate truncates a string to a maximum length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// padRight pads a string with spaces to reach the desired length.
func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}
