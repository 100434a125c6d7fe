package bsonx

import (
	"fmt"
	"math"
	"time"

	"github.com/mixer/clock"

	"github.com/umberlabs/bsonx/errs"
)

// timeSource is the clock used by NowDateTime and NewObjectID. It is
// swappable so that tests can pin time; production code never needs to
// touch it.
var timeSource clock.Clock = clock.C

// SetTimeSource replaces the clock used for datetime and ObjectID
// generation, returning the previous source. Pass clock.C to restore
// the wall clock.
func SetTimeSource(c clock.Clock) clock.Clock {
	prev := timeSource
	timeSource = c

	return prev
}

// DateTime is a signed count of milliseconds since the Unix epoch.
// The full int64 domain is valid.
type DateTime int64

const (
	// MinDateTime is the earliest representable DateTime.
	MinDateTime = DateTime(math.MinInt64)
	// MaxDateTime is the latest representable DateTime.
	MaxDateTime = DateTime(math.MaxInt64)
)

// rfc3339Millis formats with exactly millisecond fractional precision.
const rfc3339Millis = "2006-01-02T15:04:05.000Z07:00"

// NewDateTime creates a DateTime from milliseconds since the Unix epoch.
func NewDateTime(millis int64) DateTime {
	return DateTime(millis)
}

// DateTimeFromTime converts a time.Time, truncating sub-millisecond
// precision toward zero and clamping instants outside the int64
// millisecond range to MinDateTime or MaxDateTime.
func DateTimeFromTime(t time.Time) DateTime {
	if t.After(MaxDateTime.Time()) {
		return MaxDateTime
	}
	if t.Before(MinDateTime.Time()) {
		return MinDateTime
	}

	return DateTime(millisTruncated(t))
}

// NowDateTime returns the current instant from the configured clock
// source with millisecond precision.
func NowDateTime() DateTime {
	return DateTimeFromTime(timeSource.Now())
}

// millisTruncated converts to milliseconds with excess precision
// truncated toward zero. UnixMilli floors, which differs for pre-epoch
// instants with sub-millisecond components.
func millisTruncated(t time.Time) int64 {
	ms := t.UnixMilli()
	if ms < 0 && t.Nanosecond()%int(time.Millisecond) != 0 {
		ms++
	}

	return ms
}

// Millis returns the raw millisecond count.
func (d DateTime) Millis() int64 {
	return int64(d)
}

// Time converts to a time.Time in UTC.
func (d DateTime) Time() time.Time {
	return time.UnixMilli(int64(d)).UTC()
}

// FormatRFC3339 renders the instant as an RFC 3339 string with
// millisecond precision, e.g. "2012-12-24T12:15:30.501Z".
func (d DateTime) FormatRFC3339() string {
	return d.Time().Format(rfc3339Millis)
}

// ParseDateTimeRFC3339 parses an RFC 3339 string. Fractional seconds of
// any precision are accepted; digits beyond the millisecond are
// truncated toward zero.
func ParseDateTimeRFC3339(s string) (DateTime, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, errs.Wrapf(errs.KindExtJSONShape, err, "parsing RFC 3339 datetime %q", s)
	}

	return DateTime(millisTruncated(t)), nil
}

// CheckedDurationSince returns the duration elapsed from earlier to d.
// It reports false when earlier is after d or the difference does not
// fit in a time.Duration.
func (d DateTime) CheckedDurationSince(earlier DateTime) (time.Duration, bool) {
	if earlier > d {
		return 0, false
	}
	diff := uint64(int64(d)) - uint64(int64(earlier)) // wraps correctly for the full domain
	if diff > uint64(math.MaxInt64/int64(time.Millisecond)) {
		return 0, false
	}

	return time.Duration(diff) * time.Millisecond, true //nolint:gosec
}

// SaturatingDurationSince is CheckedDurationSince saturating to zero
// when earlier is after d and to the maximum duration on overflow.
func (d DateTime) SaturatingDurationSince(earlier DateTime) time.Duration {
	if earlier > d {
		return 0
	}
	dur, ok := d.CheckedDurationSince(earlier)
	if !ok {
		return math.MaxInt64
	}

	return dur
}

// String renders the instant as "DateTime(" followed by its
// FormatRFC3339 form and ")".
func (d DateTime) String() string {
	return fmt.Sprintf("DateTime(%s)", d.FormatRFC3339())
}
