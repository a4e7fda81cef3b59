package report

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/speedrpc/internal/common"
)

const dateLayout = "2006-01-02"

// Report period identifiers accepted in a request.
const (
	TypeDateRange = "date_range"
	TypeDay       = "day"
	TypeWeek      = "week"
	TypeLastWeek  = "last_week"
	TypeMonth     = "month"
	TypeLastMonth = "last_month"
)

// isoWeekBounds returns the Monday and Sunday of the ISO week containing t.
func isoWeekBounds(t time.Time) (time.Time, time.Time) {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	monday := t.AddDate(0, 0, 1-weekday)
	return monday, monday.AddDate(0, 0, 6)
}

// periodFor resolves a report type to a [start, end] date pair relative to
// now. TypeDateRange uses the dates supplied by the caller.
func periodFor(reportType, startDate, endDate string, now time.Time) (string, string, error) {
	switch reportType {
	case TypeDateRange:
		if startDate == "" || endDate == "" {
			return "", "", fmt.Errorf("%w: date_range requires start_date and end_date", common.ErrUnknownReportType)
		}
		for _, d := range []string{startDate, endDate} {
			if _, err := time.Parse(dateLayout, d); err != nil {
				return "", "", fmt.Errorf("%w: bad date %q", common.ErrUnknownReportType, d)
			}
		}
		return startDate, endDate, nil

	case TypeDay:
		d := now.Format(dateLayout)
		return d, d, nil

	case TypeWeek:
		start, end := isoWeekBounds(now)
		return start.Format(dateLayout), end.Format(dateLayout), nil

	case TypeLastWeek:
		start, end := isoWeekBounds(now.AddDate(0, 0, -7))
		return start.Format(dateLayout), end.Format(dateLayout), nil

	case TypeMonth:
		// Trailing 30-day window ending today.
		return now.AddDate(0, 0, -29).Format(dateLayout), now.Format(dateLayout), nil

	case TypeLastMonth:
		firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		lastOfPrev := firstOfThis.AddDate(0, 0, -1)
		firstOfPrev := time.Date(lastOfPrev.Year(), lastOfPrev.Month(), 1, 0, 0, 0, 0, now.Location())
		return firstOfPrev.Format(dateLayout), lastOfPrev.Format(dateLayout), nil

	default:
		return "", "", fmt.Errorf("%w: %q", common.ErrUnknownReportType, reportType)
	}
}
