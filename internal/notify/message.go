package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/maxpain-dashboard/internal/collect"
)

// FormatSuccessMessage creates a success notification body.
func FormatSuccessMessage(result *collect.BatchResult, duration time.Duration) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Underlyings: %d\n", result.Total))
	for _, r := range result.Results {
		if r.Success {
			sb.WriteString(fmt.Sprintf("%s: max pain %g (%s, %d strikes)\n",
				r.Task, r.MaxPainStrike, r.Expiry, r.Rows))
		}
	}
	sb.WriteString(fmt.Sprintf("Duration: %s", duration.Round(time.Second)))

	return sb.String()
}

// FormatFailureMessage creates a failure notification body.
func FormatFailureMessage(result *collect.BatchResult, duration time.Duration, err error) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Underlyings: %d\n", result.Total))
	sb.WriteString(fmt.Sprintf("Saved: %d\n", result.Success))
	sb.WriteString(fmt.Sprintf("No Expiry: %d\n", result.NoExpiry))
	sb.WriteString(fmt.Sprintf("No Chain: %d\n", result.NoChain))
	sb.WriteString(fmt.Sprintf("Failed: %d\n", result.Failed))
	sb.WriteString(fmt.Sprintf("Duration: %s", duration.Round(time.Second)))

	if err != nil {
		sb.WriteString(fmt.Sprintf("\n\nError: %v", err))
	}

	// Include first 3 error messages if available
	if len(result.Errors) > 0 {
		sb.WriteString("\n\nErrors:\n")
		limit := min(3, len(result.Errors))
		for i := 0; i < limit; i++ {
			sb.WriteString(fmt.Sprintf("- %s\n", result.Errors[i]))
		}
		if len(result.Errors) > 3 {
			sb.WriteString(fmt.Sprintf("... and %d more errors", len(result.Errors)-3))
		}
	}

	return sb.String()
}
