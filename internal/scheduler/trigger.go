package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger computes the next fire time after a reference instant.
type Trigger interface {
	Next(after time.Time) time.Time
}

// ParseTrigger accepts either "@every <duration>" or a standard five-field
// cron expression.
func ParseTrigger(spec string) (Trigger, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty trigger spec")
	}
	if rest, ok := strings.CutPrefix(spec, "@every "); ok {
		every, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("parse interval trigger %q: %w", spec, err)
		}
		if every <= 0 {
			return nil, fmt.Errorf("interval trigger %q must be positive", spec)
		}
		return intervalTrigger{every: every}, nil
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron trigger %q: %w", spec, err)
	}
	return cronTrigger{schedule: schedule}, nil
}

type intervalTrigger struct {
	every time.Duration
}

func (t intervalTrigger) Next(after time.Time) time.Time {
	return after.Add(t.every)
}

type cronTrigger struct {
	schedule cron.Schedule
}

func (t cronTrigger) Next(after time.Time) time.Time {
	return t.schedule.Next(after)
}
