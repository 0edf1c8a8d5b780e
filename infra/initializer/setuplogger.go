package initializer

import (
	"log/slog"
	"os"
	"strings"

	"github.com/buildrail/escrow/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// ledger-themed level palette: green for the happy path, amber for
// warnings, red for errors, slate for debug chatter.
var levelColors = map[log.Level]lipgloss.AdaptiveColor{
	log.DebugLevel: {Light: "#64748B", Dark: "#94A3B8"},
	log.InfoLevel:  {Light: "#15803D", Dark: "#4ADE80"},
	log.WarnLevel:  {Light: "#B45309", Dark: "#FBBF24"},
	log.ErrorLevel: {Light: "#B91C1C", Dark: "#F87171"},
}

func setupLogger(cfg *config.Log) *slog.Logger {
	styles := log.DefaultStyles()
	for level, color := range levelColors {
		styles.Levels[level] = lipgloss.NewStyle().
			SetString(strings.ToUpper(level.String())).
			Bold(true).
			MaxWidth(5).
			Foreground(color)
	}

	accent := levelColors[log.InfoLevel]
	styles.Prefix = lipgloss.NewStyle().Bold(true).Foreground(accent)
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(levelColors[log.ErrorLevel])
	styles.Values["error"] = lipgloss.NewStyle().Bold(true)
	styles.Keys["account_id"] = lipgloss.NewStyle().Foreground(accent)
	styles.Keys["project_id"] = lipgloss.NewStyle().Foreground(accent)
	styles.Keys["payout_id"] = lipgloss.NewStyle().Foreground(accent)

	formatter := log.TextFormatter
	if cfg.Format == "json" {
		formatter = log.JSONFormatter
	}

	logger := log.NewWithOptions(os.Stdout, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	logger.SetStyles(styles)

	slogger := slog.New(logger)
	slog.SetDefault(slogger)

	return slogger
}
