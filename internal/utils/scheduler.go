package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

// ConvertToJobDef turns a schedule string into a gocron job definition.
// Accepted forms: a Go duration ("30s", "1h30m"), a daily clock time ("04:05")
// or a standard five field cron expression.
func ConvertToJobDef(interval string) (gocron.JobDefinition, error) {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		return nil, fmt.Errorf("empty interval")
	}

	if h, m, ok := parseClockTime(interval); ok {
		return gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(h, m, 0))), nil
	}

	if dur, err := time.ParseDuration(interval); err == nil {
		if dur <= 0 {
			return nil, fmt.Errorf("interval must be positive: %s", interval)
		}
		return gocron.DurationJob(dur), nil
	}

	if _, err := cron.ParseStandard(interval); err == nil {
		return gocron.CronJob(interval, false), nil
	}

	return nil, fmt.Errorf("invalid interval format: %s", interval)
}

func parseClockTime(s string) (uint, uint, bool) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return uint(h), uint(m), true
}
