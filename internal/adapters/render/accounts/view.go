package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/accmux/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// Row is one account with the live context the registry knows about it.
type Row struct {
	Account  domain.Account
	Sessions int
	Usage    *domain.WindowUsage
}

type RenderOptions struct {
	Now time.Time
}

func renderView(rows []Row, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Agent Accounts"),
		s.header.Render(fmt.Sprintf("accounts: %d", len(rows))),
	}

	if len(rows) == 0 {
		lines = append(lines, s.empty.Render("No accounts registered. Add one with 'accmux account add'."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, row := range rows {
		lines = append(lines, s.section.Render(renderAccount(row, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(row Row, opts RenderOptions, s styles) string {
	account := row.Account

	title := fmt.Sprintf("%s <%s>", account.Name, account.Email)
	if account.IsDefault {
		title += " " + s.defaultTag.Render("[default]")
	}

	parts := []string{
		s.account.Render(title),
		s.detail.Render(fmt.Sprintf("status: %s", statusLabel(account, opts.Now, s))),
		s.detail.Render(fmt.Sprintf("sessions: %d", row.Sessions)),
	}

	if line := capacityLine(row, s); line != "" {
		parts = append(parts, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func statusLabel(account domain.Account, now time.Time, s styles) string {
	switch account.Status {
	case domain.StatusThrottled:
		label := string(account.Status)
		if !account.LastThrottledAt.IsZero() && !now.IsZero() {
			label += fmt.Sprintf(" (%s ago)", now.Sub(account.LastThrottledAt).Round(time.Minute))
		}
		return s.throttled.Render(label)
	case domain.StatusDisabled, domain.StatusExpired:
		return s.disabled.Render(string(account.Status))
	default:
		return string(account.Status)
	}
}

func capacityLine(row Row, s styles) string {
	account := row.Account
	if account.Unlimited() || row.Usage == nil {
		return ""
	}

	used := row.Usage.InputTokens
	percent := float64(used) / float64(account.TokenLimitPerWindow) * 100

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		renderProgressBar(percent, 24, s),
		" ",
		s.barText.Render(fmt.Sprintf("%s / %s input tokens", compact(used), compact(account.TokenLimitPerWindow))),
	)
}

func renderProgressBar(percent float64, width int, s styles) string {
	percent = clampPercent(percent)
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}

	return s.barBracket.Render("[") +
		s.barFill.Render(strings.Repeat("█", filled)) +
		s.barEmpty.Render(strings.Repeat("░", width-filled)) +
		s.barBracket.Render("]")
}

func clampPercent(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}

	return percent
}

func compact(v int64) string {
	return domain.WindowUsage{InputTokens: v}.BlendedTotalCompact()
}
