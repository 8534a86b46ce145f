// Package runbook expands recurring task templates into a dated task window.
package runbook

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ops_server/core/domain"
)

// ErrInvalidTimeSlot is returned for time slots that are not HH:MM.
var ErrInvalidTimeSlot = errors.New("invalid time slot")

// ParseHour extracts the hour of an "HH:MM" (or "HH:MM:SS") time slot.
func ParseHour(timeSlot string) (int, error) {
	slot := strings.TrimSpace(timeSlot)
	hh, _, ok := strings.Cut(slot, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeSlot, timeSlot)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeSlot, timeSlot)
	}
	return hour, nil
}

// BlockForHour buckets an hour of day.
func BlockForHour(hour int) domain.TimeBlock {
	switch {
	case hour < 12:
		return domain.TimeBlockMorningRoutine
	case hour < 15:
		return domain.TimeBlockWakeUp
	case hour < 17:
		return domain.TimeBlockWarmUp
	case hour < 20:
		return domain.TimeBlockProduction
	case hour < 22:
		return domain.TimeBlockWar
	default:
		return domain.TimeBlockClosing
	}
}

// DeriveTimeBlock maps a template time slot to its time block.
func DeriveTimeBlock(timeSlot string) (domain.TimeBlock, error) {
	hour, err := ParseHour(timeSlot)
	if err != nil {
		return "", err
	}
	return BlockForHour(hour), nil
}

// normalizeSlot trims a database TIME value ("09:30:00") to HH:MM.
func normalizeSlot(timeSlot string) string {
	slot := strings.TrimSpace(timeSlot)
	if len(slot) > 5 && slot[5] == ':' {
		return slot[:5]
	}
	return slot
}
