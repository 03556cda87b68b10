package alert

import (
	"strings"
	"time"
)

// EmptyReport is the canonical rendering of a run that found nothing.
const EmptyReport = "No titles found."

// FormatReport renders the notification text for a batch. The layout is
// load-bearing: downstream consumers grep these exact lines, so every
// title and every disclosed date appears verbatim.
func FormatReport(b Batch, now time.Time) string {
	if b.Empty() {
		return EmptyReport
	}

	lines := []string{"TDF Title Alert", strings.Repeat("=", 50), ""}

	if b.FilterDate != "" {
		lines = append(lines, "Filter Date: "+b.FilterDate, "", "Available Titles:")
		for _, it := range b.Items {
			lines = append(lines, "  • "+it.Title)
			if it.URL != "" {
				lines = append(lines, "    URL: "+it.URL)
			}
		}
	} else {
		lines = append(lines, "Titles with Available Dates:")
		for _, it := range b.Items {
			lines = append(lines, "\n• "+it.Title)
			if it.URL != "" {
				lines = append(lines, "  URL: "+it.URL)
			}
			lines = append(lines, "  Available Dates:")
			for _, d := range it.Dates {
				lines = append(lines, "    - "+d)
			}
		}
	}

	lines = append(lines, "", "Alert generated: "+now.Format("2006-01-02 15:04:05"))
	return strings.Join(lines, "\n")
}
