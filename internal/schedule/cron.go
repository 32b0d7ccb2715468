package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NextCronTime resolves the next occurrence of a standard five-field cron
// expression (descriptors like @daily allowed), evaluated in the provided
// timezone so daylight-saving shifts are honored.
func NextCronTime(expr string, location *time.Location, from time.Time) (time.Time, error) {
	expr = strings.Join(strings.Fields(strings.TrimSpace(expr)), " ")
	if expr == "" {
		return time.Time{}, errors.New("cron expression is empty")
	}
	if location == nil {
		location = time.UTC
	}
	spec, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression: %w", err)
	}
	return spec.Next(from.In(location)), nil
}
