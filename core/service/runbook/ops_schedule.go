package runbook

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"ops_server/core/domain"
)

// ErrInvalidSchedule is returned when a template rule cannot be decoded.
var ErrInvalidSchedule = errors.New("invalid schedule rule")

type scheduleKind int

const (
	kindNever scheduleKind = iota
	kindDaily
	kindWeekday
	kindWeekend
	kindWeeklyDays
)

// Schedule is the decoded frequency gate of a template.
// The zero value never fires.
type Schedule struct {
	kind scheduleKind
	days [7]bool // indexed by time.Weekday
}

func Daily() Schedule   { return Schedule{kind: kindDaily} }
func Weekday() Schedule { return Schedule{kind: kindWeekday} }
func Weekend() Schedule { return Schedule{kind: kindWeekend} }
func Never() Schedule   { return Schedule{} }

// WeeklyDays fires on the given days only. No days means never.
func WeeklyDays(days ...time.Weekday) Schedule {
	s := Schedule{kind: kindWeeklyDays}
	for _, d := range days {
		s.days[d] = true
	}
	return s
}

// Includes reports whether the schedule fires on the given day of week.
func (s Schedule) Includes(day time.Weekday) bool {
	switch s.kind {
	case kindDaily:
		return true
	case kindWeekday:
		return day >= time.Monday && day <= time.Friday
	case kindWeekend:
		return day == time.Saturday || day == time.Sunday
	case kindWeeklyDays:
		return s.days[day]
	default:
		return false
	}
}

// Days lists the weekdays a WeeklyDays schedule fires on.
func (s Schedule) Days() []time.Weekday {
	var days []time.Weekday
	for d, on := range s.days {
		if on {
			days = append(days, time.Weekday(d))
		}
	}
	return days
}

func (s Schedule) String() string {
	switch s.kind {
	case kindDaily:
		return "daily"
	case kindWeekday:
		return "weekday"
	case kindWeekend:
		return "weekend"
	case kindWeeklyDays:
		names := make([]string, 0, 7)
		for _, d := range s.Days() {
			names = append(names, d.String()[:3])
		}
		return "weekly(" + strings.Join(names, ",") + ")"
	default:
		return "never"
	}
}

type weeklyRule struct {
	WeeklyDays *json.RawMessage `json:"weekly_days"`
}

// DecodeSchedule turns a template's frequency and rule payload into a Schedule.
//
// weekly without weekly_days fires on Monday; weekly_custom without weekly_days
// never fires. An unrecognised frequency never fires and is not an error.
// weekly_days must be an array of integers in 0..6 (0 = Sunday).
func DecodeSchedule(freq domain.Frequency, rule json.RawMessage) (Schedule, error) {
	switch freq {
	case domain.FrequencyDaily:
		return Daily(), nil
	case domain.FrequencyWeekday:
		return Weekday(), nil
	case domain.FrequencyWeekend:
		return Weekend(), nil
	case domain.FrequencyWeekly:
		days, present, err := decodeWeeklyDays(rule)
		if err != nil {
			return Never(), err
		}
		if !present {
			return WeeklyDays(time.Monday), nil
		}
		return WeeklyDays(days...), nil
	case domain.FrequencyWeeklyCustom:
		days, _, err := decodeWeeklyDays(rule)
		if err != nil {
			return Never(), err
		}
		return WeeklyDays(days...), nil
	default:
		return Never(), nil
	}
}

func decodeWeeklyDays(rule json.RawMessage) ([]time.Weekday, bool, error) {
	trimmed := bytes.TrimSpace(rule)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}
	if trimmed[0] != '{' {
		return nil, false, fmt.Errorf("%w: rule must be an object", ErrInvalidSchedule)
	}

	var r weeklyRule
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if r.WeeklyDays == nil || bytes.Equal(bytes.TrimSpace(*r.WeeklyDays), []byte("null")) {
		return nil, false, nil
	}

	var raw []int
	if err := json.Unmarshal(*r.WeeklyDays, &raw); err != nil {
		return nil, false, fmt.Errorf("%w: weekly_days must be an array of integers: %v", ErrInvalidSchedule, err)
	}
	days := make([]time.Weekday, 0, len(raw))
	for _, d := range raw {
		if d < 0 || d > 6 {
			return nil, false, fmt.Errorf("%w: weekly_days value %d outside 0..6", ErrInvalidSchedule, d)
		}
		days = append(days, time.Weekday(d))
	}
	return days, true, nil
}
