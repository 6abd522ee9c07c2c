package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var brt = time.FixedZone("BRT", -3*60*60)

// DateLayout is the textual form used for validity window dates.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidTimeOfDay indicates an hour or minute outside the 24h clock.
	ErrInvalidTimeOfDay = errors.New("recurrence: invalid time of day")
	// ErrEmptyWeekdaySet indicates a weekly rule without any weekday.
	ErrEmptyWeekdaySet = errors.New("recurrence: weekday set must not be empty")
	// ErrUnknownDayCode indicates a weekday code missing from the code table.
	ErrUnknownDayCode = errors.New("recurrence: unknown weekday code")
)

// TimeOfDay is a wall clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// NewTimeOfDay validates and builds a TimeOfDay.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %02d:%02d", ErrInvalidTimeOfDay, hour, minute)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// TimeOfDayFromMinutes converts minutes since midnight.
func TimeOfDayFromMinutes(minutes int) (TimeOfDay, error) {
	if minutes < 0 || minutes >= 24*60 {
		return TimeOfDay{}, fmt.Errorf("%w: %d minutes", ErrInvalidTimeOfDay, minutes)
	}
	return TimeOfDay{Hour: minutes / 60, Minute: minutes % 60}, nil
}

// ParseTimeOfDay parses "HH:MM". A trailing ":SS" component is accepted and dropped.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	return NewTimeOfDay(hour, minute)
}

// TimeOfDayOf truncates an instant to its hour and minute, ignoring seconds.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// After reports whether t is later in the day than other.
func (t TimeOfDay) After(other TimeOfDay) bool {
	return t.Minutes() > other.Minutes()
}

// String renders the 24h "HH:MM" form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// WeekdaySet is a bitmask of weekdays indexed by time.Weekday.
type WeekdaySet uint8

const allWeekdays WeekdaySet = 1<<7 - 1

// NewWeekdaySet builds a set from the supplied weekdays.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var set WeekdaySet
	for _, day := range days {
		set = set.Add(day)
	}
	return set
}

// WeekdaySetFromMask restores a set from its stored integer form.
func WeekdaySetFromMask(mask int) (WeekdaySet, error) {
	if mask < 0 || mask > int(allWeekdays) {
		return 0, fmt.Errorf("recurrence: invalid weekday mask %d", mask)
	}
	return WeekdaySet(mask), nil
}

// Add returns a copy of the set including day.
func (s WeekdaySet) Add(day time.Weekday) WeekdaySet {
	if day < time.Sunday || day > time.Saturday {
		return s
	}
	return s | 1<<uint(day)
}

// Contains reports whether day belongs to the set.
func (s WeekdaySet) Contains(day time.Weekday) bool {
	if day < time.Sunday || day > time.Saturday {
		return false
	}
	return s&(1<<uint(day)) != 0
}

// IsEmpty reports whether the set holds no weekday.
func (s WeekdaySet) IsEmpty() bool {
	return s&allWeekdays == 0
}

// Mask returns the integer form stored by persistence backends.
func (s WeekdaySet) Mask() int {
	return int(s & allWeekdays)
}

// Days lists the members Monday first.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for _, day := range mondayFirst {
		if s.Contains(day) {
			days = append(days, day)
		}
	}
	return days
}

var mondayFirst = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// DayCodes maps weekdays to the short codes exchanged with devices, Monday first.
type DayCodes [7]string

// DefaultDayCodes are the Portuguese abbreviations used by the deployed firmware.
var DefaultDayCodes = DayCodes{"SEG", "TER", "QUA", "QUI", "SEX", "SAB", "DOM"}

// NewDayCodes validates a Monday-first list of seven distinct codes.
func NewDayCodes(codes []string) (DayCodes, error) {
	var table DayCodes
	if len(codes) != len(table) {
		return table, fmt.Errorf("recurrence: expected 7 weekday codes, got %d", len(codes))
	}
	seen := make(map[string]struct{}, len(codes))
	for i, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			return DayCodes{}, fmt.Errorf("recurrence: weekday code %d is empty", i+1)
		}
		if _, dup := seen[code]; dup {
			return DayCodes{}, fmt.Errorf("recurrence: duplicate weekday code %q", code)
		}
		seen[code] = struct{}{}
		table[i] = code
	}
	return table, nil
}

// Code returns the code for day.
func (c DayCodes) Code(day time.Weekday) string {
	return c[mondayIndex(day)]
}

// Weekday resolves a code, ignoring case.
func (c DayCodes) Weekday(code string) (time.Weekday, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for i, candidate := range c {
		if candidate == code {
			return mondayFirst[i], true
		}
	}
	return time.Sunday, false
}

// Codes renders the members of a set, Monday first.
func (c DayCodes) Codes(set WeekdaySet) []string {
	days := set.Days()
	codes := make([]string, 0, len(days))
	for _, day := range days {
		codes = append(codes, c.Code(day))
	}
	return codes
}

// ParseSet resolves a list of codes into a non-empty set.
func (c DayCodes) ParseSet(codes []string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, code := range codes {
		day, ok := c.Weekday(code)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownDayCode, code)
		}
		set = set.Add(day)
	}
	if set.IsEmpty() {
		return 0, ErrEmptyWeekdaySet
	}
	return set, nil
}

func mondayIndex(day time.Weekday) int {
	return (int(day) + 6) % 7
}

// Engine evaluates weekly rules against instants in a fixed location.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine for the provided location.
// If loc is nil, a fixed UTC-3 zone (Brasília time) is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = brt
	}
	return &Engine{location: loc}
}

// Location returns the zone instants are resolved in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return brt
	}
	return e.location
}

// Local converts an instant to the engine's location.
func (e *Engine) Local(t time.Time) time.Time {
	return t.In(e.Location())
}

// Date returns midnight of t's calendar day in the engine's location.
func (e *Engine) Date(t time.Time) time.Time {
	y, m, d := e.Local(t).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.Location())
}

// ParseDate parses a DateLayout string as a calendar day in the engine's location.
func (e *Engine) ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), e.Location())
}

// WithinWindow reports whether date's calendar day lies in [start, end], inclusive.
// Only the year, month and day of each argument are compared.
func WithinWindow(date, start, end time.Time) bool {
	key := DateKey(date)
	return DateKey(start) <= key && key <= DateKey(end)
}

// DateKey formats the calendar day of t using DateLayout.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// MatchMinute returns the index of the first time equal to at, or -1.
func MatchMinute(times []TimeOfDay, at TimeOfDay) int {
	for i, candidate := range times {
		if candidate == at {
			return i
		}
	}
	return -1
}

// NextAfter returns the index of the earliest time strictly after at, or -1.
// Ties keep the first occurrence so ordered input yields a stable result.
func NextAfter(times []TimeOfDay, at TimeOfDay) int {
	next := -1
	for i, candidate := range times {
		if !candidate.After(at) {
			continue
		}
		if next == -1 || candidate.Before(times[next]) {
			next = i
		}
	}
	return next
}
