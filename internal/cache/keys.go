package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func ReportStatusKey(reportID uuid.UUID) string {
	return fmt.Sprintf("report:status:%s", reportID)
}

func RateLimitKey(clientKey string) string {
	return fmt.Sprintf("ratelimit:%s", clientKey)
}
