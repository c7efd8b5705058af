package models

import (
	"fmt"
	"strings"
	"time"
)

// Weekdays lists the placement grid day names, Monday first.
var Weekdays = []string{
	"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY",
}

// Scheduling policy defaults, overridable through config.SchedulingConfig.
const (
	DefaultSlotMinutes    = 90
	DefaultSlotGapMinutes = 15
	DefaultOnlineMinutes  = 70
	DefaultSessionChunk   = 2
	DefaultBlockHours     = 1.5
	DefaultGridStart      = "08:00"
	DefaultSlotsPerDay    = 7

	clockLayout = "15:04"

	// DateLayout is the ISO form used for specific-date lists and semester dates.
	DateLayout = "2006-01-02"
)

// TimeSlot is one fixed placement window on the daily grid.
type TimeSlot struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaysForStudyMode restricts the weekday grid per study mode: daytime and
// English-language programs run Monday-Friday, session-based programs run
// Friday-Sunday.
func DaysForStudyMode(mode StudyMode) []string {
	switch mode {
	case StudyModeNiestacjonarne, StudyModePodyplomowe:
		return []string{"FRIDAY", "SATURDAY", "SUNDAY"}
	default:
		return Weekdays[:5]
	}
}

// ValidWeekday reports whether the value is a known grid day name.
func ValidWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// BuildTimeSlots produces the daily grid: count slots of slotMinutes each,
// separated by gapMinutes, starting at gridStart.
func BuildTimeSlots(gridStart string, count, slotMinutes, gapMinutes int) ([]TimeSlot, error) {
	slots := make([]TimeSlot, 0, count)
	start := gridStart
	for i := 0; i < count; i++ {
		end, err := AddMinutes(start, slotMinutes)
		if err != nil {
			return nil, err
		}
		slots = append(slots, TimeSlot{
			Index: i + 1,
			Label: fmt.Sprintf("%d. %s - %s", i+1, start, end),
			Start: start,
			End:   end,
		})
		if i < count-1 {
			start, err = AddMinutes(end, gapMinutes)
			if err != nil {
				return nil, err
			}
		}
	}
	return slots, nil
}

// AddMinutes adds minutes to a HH:MM wall-clock value, rolling over midnight.
func AddMinutes(clock string, minutes int) (string, error) {
	t, err := time.Parse(clockLayout, clock)
	if err != nil {
		return "", fmt.Errorf("parse clock %q: %w", clock, err)
	}
	return t.Add(time.Duration(minutes) * time.Minute).Format(clockLayout), nil
}

// ValidClock reports whether the value is a parseable HH:MM time.
func ValidClock(clock string) bool {
	_, err := time.Parse(clockLayout, clock)
	return err == nil
}

// ValidISODate reports whether the value is a parseable ISO calendar date.
func ValidISODate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// DateMatchesWeekday reports whether the ISO date falls on the named grid
// day. Unparseable dates never match.
func DateMatchesWeekday(date, dayOfWeek string) bool {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return false
	}
	return strings.ToUpper(t.Weekday().String()) == dayOfWeek
}

// SessionBlock groups consecutive semester dates into one on-site session.
type SessionBlock struct {
	Index int            `json:"index"`
	Dates []SemesterDate `json:"dates"`
}

// ChunkSessionDates splits chronologically sorted semester dates into blocks
// of chunkSize consecutive dates. Ordering is preserved.
func ChunkSessionDates(dates []SemesterDate, chunkSize int) []SessionBlock {
	if chunkSize <= 0 {
		chunkSize = DefaultSessionChunk
	}
	blocks := make([]SessionBlock, 0, (len(dates)+chunkSize-1)/chunkSize)
	for start := 0; start < len(dates); start += chunkSize {
		end := start + chunkSize
		if end > len(dates) {
			end = len(dates)
		}
		blocks = append(blocks, SessionBlock{
			Index: len(blocks) + 1,
			Dates: dates[start:end],
		})
	}
	return blocks
}
