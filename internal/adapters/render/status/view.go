package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/GoWebProd/obsidian-jira-master/internal/application"
	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const slotBarWidth = 12

type RenderOptions struct {
	Now time.Time
	// StaleAfter flags side caches older than this; zero disables the check.
	StaleAfter time.Duration
}

func renderView(b board, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Jira Accounts"),
		s.header.Render(boardSummary(b)),
	}

	if len(b.statuses) == 0 {
		lines = append(lines, s.empty.Render("No accounts configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, status := range b.statuses {
		lines = append(lines, s.section.Render(renderAccount(status, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func boardSummary(b board) string {
	summary := fmt.Sprintf("accounts: %d", len(b.statuses))
	if b.running > 0 || b.pending > 0 {
		summary += fmt.Sprintf("  running: %d  pending: %d", b.running, b.pending)
	}
	if b.stale > 0 {
		summary += fmt.Sprintf("  stale metadata: %d", b.stale)
	}
	return summary
}

// metadataStale needs a reference time and a threshold; without either nothing is stale.
func metadataStale(status application.AccountStatus, opts RenderOptions) bool {
	refreshed := status.Cache.RefreshedAt
	if refreshed.IsZero() || opts.Now.IsZero() || opts.StaleAfter <= 0 {
		return false
	}
	return opts.Now.Sub(refreshed) > opts.StaleAfter
}

func renderAccount(status application.AccountStatus, opts RenderOptions, s styles) string {
	account := status.Account

	titleStyle := s.account
	if color := strings.TrimSpace(account.Color); color != "" {
		titleStyle = titleStyle.Foreground(lipgloss.Color(color))
	}
	title := lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleStyle.Render(string(account.Alias)),
		" ",
		s.host.Render("("+account.Host+")"),
	)

	details := s.detail.Render(fmt.Sprintf(
		"priority: %d  auth: %s  api: %s",
		account.Priority,
		authLabel(account.Auth.Kind),
		account.BasePath(),
	))

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		details,
		queueLine(status, s),
		cacheLine(status, opts, s),
	)
}

func authLabel(kind domain.AuthKind) string {
	if kind == "" {
		return string(domain.AuthKindNone)
	}
	return string(kind)
}

func queueLine(status application.AccountStatus, s styles) string {
	label := s.key.Render("queue:")
	stats := status.Queue
	if !stats.Enabled {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.meta.Render("rate limit off"))
	}

	busy := interpolateColor(float64(stats.Running), 0, float64(stats.Slots))
	meta := lipgloss.NewStyle().Foreground(busy).Render(fmt.Sprintf("%d/%d running", stats.Running, stats.Slots))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		label,
		" ",
		renderSlotBar(stats.Running, stats.Slots, slotBarWidth, s),
		" ",
		meta,
		" ",
		s.meta.Render(fmt.Sprintf("pending %d, delay %s", stats.Pending, stats.Delay)),
	)
}

func cacheLine(status application.AccountStatus, opts RenderOptions, s styles) string {
	snapshot := status.Cache
	label := s.key.Render("metadata:")
	if snapshot.RefreshedAt.IsZero() {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.empty.Render("not loaded"))
	}

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		label,
		" ",
		s.detail.Render(fmt.Sprintf(
			"%d statuses, %d custom fields",
			len(snapshot.StatusColors),
			len(snapshot.CustomFieldsIDToName),
		)),
		" ",
		s.meta.Render("("+refreshedLabel(snapshot.RefreshedAt, opts.Now)+")"),
	)

	if metadataStale(status, opts) {
		line += " " + s.warning.Render("[stale]")
	}
	return line
}

func refreshedLabel(refreshedAt, now time.Time) string {
	if now.IsZero() {
		return "refreshed " + refreshedAt.Format(time.RFC3339)
	}
	return "refreshed " + humanize.RelTime(refreshedAt, now, "ago", "from now")
}

func renderSlotBar(running, slots, width int, s styles) string {
	if width <= 0 || slots <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * float64(running) / float64(slots)))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

// interpolateColor maps value onto the 240..255 greyscale ramp.
func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	return lipgloss.Color(fmt.Sprintf("%d", int(240+15*normalized)))
}
