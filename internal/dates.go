package internal

import (
	"regexp"
	"strconv"
	"time"
)

// Filename date pattern families, tried in priority order. A family is only
// trusted when it matches exactly once in the string; several matches make
// the date ambiguous and the next family gets a chance.
type datePattern struct {
	rx       *regexp.Regexp
	shortY   bool // 2-digit year, normalized by prefixing "20"
	dayFirst bool // fields appear day-month-year
}

var datePatterns = []datePattern{
	// compact date-time, e.g. IMG_20160915_123456
	{rx: regexp.MustCompile(`(\d{4})[_-]?(\d{2})[_-]?(\d{2})[_-]?(\d{2})[_-]?(\d{2})[_-]?(\d{2})`)},
	// separated y-m-d bounded by path-like separators
	{rx: regexp.MustCompile(`[-_./](\d{4})[-_.]?(\d{2})[-_.]?(\d{2})[-_./]`)},
	// 2-digit year variant, not very accurate
	{rx: regexp.MustCompile(`[-_./](\d{2})[-_.]?(\d{2})[-_.]?(\d{2})[-_./]`), shortY: true},
	// day-month-year order
	{rx: regexp.MustCompile(`[-_./](\d{2})[-_.](\d{2})[-_.](\d{4})[-_./]`), dayFirst: true},
}

// DateFromString recognizes an embedded calendar date inside an arbitrary
// string, typically a filename stem. A caller-supplied pattern takes the
// place of the built-in families; its submatches are read as year, month,
// day and optionally hour, minute, second.
func DateFromString(s string, userRegex *regexp.Regexp) (time.Time, bool) {
	if userRegex != nil {
		matches := userRegex.FindAllStringSubmatch(s, -1)
		if len(matches) != 1 {
			return time.Time{}, false
		}
		return dateFromFields(matches[0][1:])
	}

	for _, p := range datePatterns {
		matches := p.rx.FindAllStringSubmatch(s, -1)
		if len(matches) != 1 {
			// No match, or the time string is not unique
			continue
		}

		fields := matches[0][1:]
		if p.shortY {
			fields[0] = "20" + fields[0]
		}
		if p.dayFirst {
			fields[0], fields[2] = fields[2], fields[0]
		}

		if t, ok := dateFromFields(fields); ok {
			return t, true
		}
		return time.Time{}, false
	}

	return time.Time{}, false
}

// dateFromFields builds a timestamp from year, month, day and optional
// hour, minute, second strings, rejecting impossible calendar values.
func dateFromFields(fields []string) (time.Time, bool) {
	if len(fields) < 3 {
		return time.Time{}, false
	}

	nums := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}

	var hour, min, sec int
	if len(nums) >= 6 {
		hour, min, sec = nums[3], nums[4], nums[5]
	}

	t := time.Date(nums[0], time.Month(nums[1]), nums[2], hour, min, sec, 0, time.Local)
	// time.Date normalizes out-of-range values, so an unchanged round trip
	// is what tells a real date from 2016-99-99.
	if t.Year() != nums[0] || int(t.Month()) != nums[1] || t.Day() != nums[2] ||
		t.Hour() != hour || t.Minute() != min || t.Second() != sec {
		return time.Time{}, false
	}
	return t, true
}

// StripDates removes every recognized embedded date pattern from s.
// Used by the {name} template field to recover a clean base name.
func StripDates(s string) string {
	for _, p := range datePatterns {
		s = p.rx.ReplaceAllString(s, "")
	}
	return s
}

// DateResolver selects one authoritative capture timestamp for a record.
type DateResolver struct {
	DayBegins int            // hour (0-23) at which a "day" starts for grouping
	UserRegex *regexp.Regexp // optional filename date pattern override
	Logger    *Logger
}

// Resolve applies the priority policy: date_original wins, then a date
// embedded in the filename, then date_created, then date_modified.
// Returns nil when no source yields a date.
func (r *DateResolver) Resolve(rec *MetadataRecord) *time.Time {
	nameSource := rec.BaseName
	if rec.OriginalName != nil {
		nameSource = *rec.OriginalName
	}
	nameDate, hasNameDate := DateFromString(nameSource, r.UserRegex)

	if rec.DateOriginal != nil {
		if hasNameDate && !nameDate.Equal(*rec.DateOriginal) {
			r.warn("%s: filename time mark differs from DateTimeOriginal %s",
				rec.BaseName, rec.DateOriginal.Format("2006-01-02 15:04:05"))
		}
		return rec.DateOriginal
	}

	if hasNameDate {
		if rec.DateCreated != nil && nameDate.After(*rec.DateCreated) {
			r.warn("%s: filename time mark is more recent than creation date %s",
				rec.BaseName, rec.DateCreated.Format("2006-01-02 15:04:05"))
		}
		return &nameDate
	}

	if rec.DateCreated != nil {
		return rec.DateCreated
	}
	if rec.DateModified != nil {
		return rec.DateModified
	}
	return nil
}

// AdjustForDayBegins groups early-morning timestamps with the previous day.
// The subtraction of hour+1 hours always lands on the previous calendar day;
// directory names generated over the years depend on exactly this.
func (r *DateResolver) AdjustForDayBegins(t time.Time) time.Time {
	if t.Hour() < r.DayBegins {
		r.info("moving photo to the previous day for classification (day_begins=%d)", r.DayBegins)
		t = t.Add(-time.Duration(t.Hour()+1) * time.Hour)
	}
	return t
}

func (r *DateResolver) warn(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Warn(format, args...)
	}
}

func (r *DateResolver) info(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Info(format, args...)
	}
}
