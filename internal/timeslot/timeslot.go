// Package timeslot quantizes instants onto a fixed local-time grid and
// encodes them as sortable YYYYMMDDHHmm keys.
package timeslot

import (
	"fmt"
	"time"
	_ "time/tzdata" // Asia/Tokyo must resolve on minimal images

	"github.com/charlesng35/yaruyo/pkg/errors"
)

const (
	// DefaultGrid is the reminder slot width.
	DefaultGrid = 30 * time.Minute
	// DefaultBuffer widens the sweep window around now.
	DefaultBuffer = 5 * time.Minute
	// DefaultTimezone is the zone slots are expressed in.
	DefaultTimezone = "Asia/Tokyo"

	keyLayout = "200601021504"
	keyLength = len(keyLayout)
)

// Slot is an instant rounded down to the grid, with its key.
type Slot struct {
	Key string
	At  time.Time
}

// Window is an inclusive range of slot keys.
type Window struct {
	From string
	To   string
}

// Contains reports whether key falls inside the window.
func (w Window) Contains(key string) bool {
	return key >= w.From && key <= w.To
}

// Quantize floors t, converted to loc, to the nearest grid boundary. The grid
// is measured from local midnight so boundaries land on wall-clock times.
func Quantize(t time.Time, grid time.Duration, loc *time.Location) Slot {
	if grid <= 0 {
		grid = DefaultGrid
	}
	if loc == nil {
		loc = time.UTC
	}

	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	offset := local.Sub(midnight)
	floored := midnight.Add(offset - offset%grid)

	return Slot{Key: floored.Format(keyLayout), At: floored}
}

// Key returns the minute precision key of t in loc without grid rounding.
func Key(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(keyLayout)
}

// Parse turns a slot key back into an instant in loc.
func Parse(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if !IsKey(key) {
		return time.Time{}, errors.InvalidArgument(fmt.Sprintf("invalid slot key %q", key))
	}
	return time.ParseInLocation(keyLayout, key, loc)
}

// IsKey reports whether key is a 12 digit slot key.
func IsKey(key string) bool {
	if len(key) != keyLength {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return false
		}
	}
	return true
}

// WindowAround returns the slots a sweep running at now must scan to catch
// plans starting within buffer of now. From is the exact minute of
// now-buffer so earlier slots that were already due are not rescanned; To is
// the slot containing now+buffer.
func WindowAround(now time.Time, buffer, grid time.Duration, loc *time.Location) Window {
	if buffer < 0 {
		buffer = 0
	}
	return Window{
		From: Key(now.Add(-buffer), loc),
		To:   Quantize(now.Add(buffer), grid, loc).Key,
	}
}

// FormatDateTime renders a key as YYYY/MM/DD HH:mm. Malformed keys are
// returned unchanged.
func FormatDateTime(key string) string {
	if !IsKey(key) {
		return key
	}
	return key[0:4] + "/" + key[4:6] + "/" + key[6:8] + " " + key[8:10] + ":" + key[10:12]
}

// FormatTime renders a key as HH:mm. Malformed keys are returned unchanged.
func FormatTime(key string) string {
	if !IsKey(key) {
		return key
	}
	return key[8:10] + ":" + key[10:12]
}
