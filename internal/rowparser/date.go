package rowparser

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts are the locale date formats seen across supported exports.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"2006.01.02",
	"20060102",
	"2006年01月02日",
	"2006年1月2日",
}

// serialEpoch is day zero of the spreadsheet serial-date system.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// parseDate normalizes a locale date string or a spreadsheet serial-date
// number to YYYY-MM-DD.
func parseDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	// Spreadsheet serial dates arrive as bare numbers. Anything plausible as
	// a modern date sits well above 10000 (1927-05-18).
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 10000 && serial < 80000 {
		days := int(serial)
		return serialEpoch.AddDate(0, 0, days).Format("2006-01-02"), true
	}

	return "", false
}
