package notes

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultReportDays is the trailing window applied when the caller does
// not request one.
const DefaultReportDays = 14

const dayLayout = "2006-01-02"

type dailyRow struct {
	Day   string
	Total int64
}

// DailyCounts returns one entry per calendar day for the trailing window
// of the given length, ending today (UTC). Days without notes are
// reported with a zero count, so the result always has exactly `days`
// entries in ascending date order.
func (s *Service) DailyCounts(ctx context.Context, days int) ([]DailyCount, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days must be a positive integer", ErrValidation)
	}

	today := s.clock().UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))

	var rows []dailyRow
	err := s.db.WithContext(ctx).
		Model(&Note{}).
		Select("strftime('%Y-%m-%d', created_at) AS day, COUNT(*) AS total").
		Where("created_at >= ?", start).
		Group("day").
		Scan(&rows).Error
	if err != nil {
		s.logError(opDailyCounts, "query_failed", err, zap.Int("days", days))
		return nil, newServiceError(opDailyCounts, "query_failed", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Day] = row.Total
	}

	// The grouped result is sparse; reindex it against the full window.
	report := make([]DailyCount, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(dayLayout)
		report = append(report, DailyCount{Date: date, Count: counts[date]})
	}

	return report, nil
}
