package report

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/bdougie/trafficwatch/internal/models"
)

// NoIssuesPhrase marks a response in which the model found nothing to report.
const NoIssuesPhrase = "No traffic violations"

const columns = 4

// Parser turns the model's markdown table into violations.
type Parser struct {
	instant int
	logger  *slog.Logger
}

// NewParser creates a parser that widens single timestamps by instant seconds.
func NewParser(instant int, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{instant: instant, logger: logger}
}

// Parse extracts violations from text in table order. Rows that do not have
// exactly four cells or carry an unreadable timestamp are skipped.
func (p *Parser) Parse(text string) []models.Violation {
	if strings.TrimSpace(text) == "" || strings.Contains(text, NoIssuesPhrase) {
		return nil
	}

	var violations []models.Violation
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if strings.Contains(line, "---") {
			continue
		}

		cells := splitRow(line)
		if len(cells) != columns || isRuleRow(cells) {
			continue
		}
		name, subject, timestamp, description := cells[0], cells[1], cells[2], cells[3]
		if strings.EqualFold(timestamp, "timestamp") {
			continue
		}

		start, end, err := ParseTimeRange(timestamp, p.instant)
		if err != nil {
			var fe *FormatError
			if errors.As(err, &fe) {
				p.logger.Warn("skipping row with unparsable timestamp", "timestamp", fe.Input, "reason", fe.Reason)
			} else {
				p.logger.Warn("skipping row", "error", err)
			}
			continue
		}

		violations = append(violations, models.Violation{
			Name:        name,
			Subject:     subject,
			StartTime:   start,
			EndTime:     end,
			Description: description,
		})
	}
	return violations
}

// splitRow splits a pipe-delimited line into its non-empty trimmed cells.
func splitRow(line string) []string {
	var cells []string
	for _, cell := range strings.Split(line, "|") {
		if cell = strings.TrimSpace(cell); cell != "" {
			cells = append(cells, cell)
		}
	}
	return cells
}

// isRuleRow reports a table rule such as "| :-- | --: |", whose cells hold
// only dashes and alignment colons.
func isRuleRow(cells []string) bool {
	for _, cell := range cells {
		if strings.Trim(cell, "-:") != "" || !strings.Contains(cell, "-") {
			return false
		}
	}
	return true
}
