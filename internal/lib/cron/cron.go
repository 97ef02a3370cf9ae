package cron

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type ScheduleSpec struct {
	expression string
	schedule   cron.Schedule
}

// ParseCronSchedule parses a standard 5 field cron expression or a descriptor like @daily
func ParseCronSchedule(expression string) (*ScheduleSpec, error) {
	schedule, err := parser.Parse(expression)
	if err != nil {
		return nil, err
	}
	return &ScheduleSpec{expression: expression, schedule: schedule}, nil
}

// ParseCronScheduleInLocation evaluates the expression in the given IANA timezone,
// an empty timezone keeps the location of the times passed to Next and Prev
func ParseCronScheduleInLocation(expression, timezone string) (*ScheduleSpec, error) {
	if timezone == "" || strings.HasPrefix(expression, "CRON_TZ=") || strings.HasPrefix(expression, "TZ=") {
		return ParseCronSchedule(expression)
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	spec, err := ParseCronSchedule(fmt.Sprintf("CRON_TZ=%s %s", timezone, expression))
	if err != nil {
		return nil, err
	}
	spec.expression = expression
	return spec, nil
}

func (s *ScheduleSpec) String() string {
	return s.expression
}

// Next returns the first schedule time strictly after fromTime
func (s *ScheduleSpec) Next(fromTime time.Time) time.Time {
	return s.schedule.Next(fromTime)
}
