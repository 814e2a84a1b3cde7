package cli

import (
	"fmt"
	"strings"

	"github.com/dhanwatch/dhanwatch/internal/model"
)

// shortID trims a detection id for display; the full hash is unwieldy.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// FormatDetections renders a detection list as a table.
func FormatDetections(detections []model.DetectedTransaction) string {
	if len(detections) == 0 {
		return SubtleStyle.Render("No detections.")
	}

	var b strings.Builder
	header := fmt.Sprintf("%-14s %-8s %-12s %-10s %-24s %-14s %s",
		"ID", "TYPE", "AMOUNT", "SOURCE", "MERCHANT", "REFERENCE", "TIME")
	b.WriteString(TableHeaderStyle.Render(header))
	b.WriteString("\n")

	for i := range detections {
		d := &detections[i]

		amountStyle := ExpenseStyle
		sign := "-"
		if d.Type == model.TypeIncome {
			amountStyle = IncomeStyle
			sign = "+"
		}

		merchant := d.Merchant
		if merchant == "" {
			merchant = "(unknown)"
		}
		if len(merchant) > 24 {
			merchant = merchant[:21] + "..."
		}

		line := fmt.Sprintf("%-14s %-8s %-12s %-10s %-24s %-14s %s",
			shortID(d.ID),
			d.Type,
			amountStyle.Render(sign+d.Amount.StringFixed(2)),
			d.Source,
			merchant,
			d.ReferenceID,
			d.Timestamp.Format("2006-01-02 15:04"))
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSettings renders the settings record for the settings command.
func FormatSettings(s *model.DetectionSettings) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Detection settings"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Notification permission: %s\n", onOff(s.NotificationPermissionGranted, "granted", "not granted")))
	b.WriteString(fmt.Sprintf("  SMS permission:          %s\n", onOff(s.SmsPermissionGranted, "granted", "not granted")))
	b.WriteString(fmt.Sprintf("  Notification listener:   %s\n", onOff(s.NotificationListenerEnabled, "enabled", "disabled")))
	b.WriteString(fmt.Sprintf("  SMS reader:              %s\n", onOff(s.SmsReaderEnabled, "enabled", "disabled")))
	b.WriteString(fmt.Sprintf("  Auto-show prompt:        %s\n", onOff(s.AutoShowPrompt, "on", "off")))
	return b.String()
}

func onOff(v bool, yes, no string) string {
	if v {
		return SuccessStyle.Render(yes)
	}
	return WarningStyle.Render(no)
}

// Successf prints a success message.
func Successf(format string, args ...any) string {
	return SuccessStyle.Render("✓ " + fmt.Sprintf(format, args...))
}

// Errorf prints an error message.
func Errorf(format string, args ...any) string {
	return ErrorStyle.Render("✗ " + fmt.Sprintf(format, args...))
}
