package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/agenda/internal/catalog"
	"github.com/onnwee/agenda/internal/textnorm"
)

// DateRange is an inclusive range of calendar dates at midnight UTC.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether the calendar date of t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := catalog.DateOf(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

var (
	monthPattern = strings.Join(monthNames, "|")

	// "15 de marzo", "15 de marzo de 2027", "1ro de mayo"
	dayMonthRe = regexp.MustCompile(`\b(\d{1,2})(?:ro|ero)? de (` + monthPattern + `)(?: (?:de|del) (\d{4}))?\b`)

	// "15/03", "15/03/2027", "15/3/27"
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)

	// "marzo", "en marzo de 2027"
	monthRe = regexp.MustCompile(`\b(` + monthPattern + `)(?: (?:de|del) (\d{4}))?\b`)
)

type span struct{ start, end int }

// parseDate resolves the first date expression in the normalized text.
// Returns the range and the matched span, or nil if nothing matched.
func parseDate(text string, today time.Time) (*DateRange, *span) {
	if r, s := explicitDate(text, today); r != nil {
		return r, s
	}

	if i := textnorm.IndexPhrase(text, "pasado manana"); i >= 0 {
		d := addDays(today, 2)
		return &DateRange{Start: d, End: d}, &span{i, i + len("pasado manana")}
	}
	for _, p := range []string{"hoy", "esta noche"} {
		if i := textnorm.IndexPhrase(text, p); i >= 0 {
			return &DateRange{Start: today, End: today}, &span{i, i + len(p)}
		}
	}
	if i := tomorrowIndex(text); i >= 0 {
		d := addDays(today, 1)
		return &DateRange{Start: d, End: d}, &span{i, i + len("manana")}
	}

	for _, p := range []string{"este fin de semana", "el fin de semana", "fin de semana", "finde", "weekend"} {
		if i := textnorm.IndexPhrase(text, p); i >= 0 {
			r := weekend(today)
			return &r, &span{i, i + len(p)}
		}
	}
	for _, p := range []string{"proxima semana", "semana que viene", "siguiente semana"} {
		if i := textnorm.IndexPhrase(text, p); i >= 0 {
			r := nextWeek(today)
			return &r, &span{i, i + len(p)}
		}
	}
	if i := textnorm.IndexPhrase(text, "esta semana"); i >= 0 {
		return &DateRange{Start: today, End: addDays(today, 7)}, &span{i, i + len("esta semana")}
	}

	for _, h := range holidays {
		for _, k := range h.keywords {
			if i := textnorm.IndexPhrase(text, k); i >= 0 {
				r := h.window(today)
				return &r, &span{i, i + len(k)}
			}
		}
	}

	if i := textnorm.IndexPhrase(text, "este mes"); i >= 0 {
		return &DateRange{Start: today, End: endOfMonth(today)}, &span{i, i + len("este mes")}
	}

	if m := monthRe.FindStringSubmatchIndex(text); m != nil {
		month := monthIndex(text[m[2]:m[3]])
		year := 0
		if m[4] >= 0 {
			year, _ = strconv.Atoi(text[m[4]:m[5]])
		}
		r := monthRange(month, year, today)
		return &r, &span{m[0], m[1]}
	}

	return nil, nil
}

// tomorrowIndex returns the offset of a "manana" meaning tomorrow, or -1.
// "la manana" ("por la mañana") is the time of day and is skipped.
func tomorrowIndex(text string) int {
	for off := 0; off < len(text); {
		i := textnorm.IndexPhrase(text[off:], "manana")
		if i < 0 {
			return -1
		}
		i += off
		if !strings.HasSuffix(text[:i], "la ") || (i > 3 && text[i-4] != ' ') {
			return i
		}
		off = i + len("manana")
	}
	return -1
}

// explicitDate matches a day+month(+year) expression. Dates without a year roll
// forward to the next occurrence; invalid calendar dates are ignored.
func explicitDate(text string, today time.Time) (*DateRange, *span) {
	if m := dayMonthRe.FindStringSubmatchIndex(text); m != nil {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		month := monthIndex(text[m[4]:m[5]])
		year := 0
		if m[6] >= 0 {
			year, _ = strconv.Atoi(text[m[6]:m[7]])
		}
		if d, ok := resolveDay(day, month, year, today); ok {
			return &DateRange{Start: d, End: d}, &span{m[0], m[1]}
		}
	}
	if m := numericDateRe.FindStringSubmatchIndex(text); m != nil {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		month, _ := strconv.Atoi(text[m[4]:m[5]])
		year := 0
		if m[6] >= 0 {
			year, _ = strconv.Atoi(text[m[6]:m[7]])
			if year < 100 {
				year += 2000
			}
		}
		if d, ok := resolveDay(day, time.Month(month), year, today); ok {
			return &DateRange{Start: d, End: d}, &span{m[0], m[1]}
		}
	}
	return nil, nil
}

func resolveDay(day int, month time.Month, year int, today time.Time) (time.Time, bool) {
	if month < time.January || month > time.December {
		return time.Time{}, false
	}
	explicitYear := year != 0
	if !explicitYear {
		year = today.Year()
	}
	d, ok := calendarDate(year, month, day)
	if !ok && explicitYear {
		return time.Time{}, false
	}
	if !explicitYear && (!ok || d.Before(today)) {
		d, ok = calendarDate(year+1, month, day)
	}
	return d, ok
}

func calendarDate(year int, month time.Month, day int) (time.Time, bool) {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return d, d.Day() == day && d.Month() == month
}

// weekend returns the upcoming Friday..Sunday. On Friday and Saturday the range
// starts today; on Sunday it is the following weekend.
func weekend(today time.Time) DateRange {
	switch wd := today.Weekday(); wd {
	case time.Friday:
		return DateRange{Start: today, End: addDays(today, 2)}
	case time.Saturday:
		return DateRange{Start: today, End: addDays(today, 1)}
	case time.Sunday:
		start := addDays(today, 5)
		return DateRange{Start: start, End: addDays(start, 2)}
	default:
		start := addDays(today, int(time.Friday-wd))
		return DateRange{Start: start, End: addDays(start, 2)}
	}
}

// nextWeek returns the next Monday..Sunday strictly after today.
func nextWeek(today time.Time) DateRange {
	offset := (8 - int(today.Weekday())) % 7
	if offset == 0 {
		offset = 7
	}
	start := addDays(today, offset)
	return DateRange{Start: start, End: addDays(start, 6)}
}

// window anchors the holiday to its nearest occurrence not yet over, clipped to today.
func (h holiday) window(today time.Time) DateRange {
	start := time.Date(today.Year(), time.Month(h.month), h.day, 0, 0, 0, 0, time.UTC)
	end := addDays(start, h.days-1)
	if end.Before(today) {
		start = start.AddDate(1, 0, 0)
		end = addDays(start, h.days-1)
	}
	if start.Before(today) {
		start = today
	}
	return DateRange{Start: start, End: end}
}

// monthRange maps a month to its nearest future year, or to the stated year.
// The current month starts today.
func monthRange(month time.Month, year int, today time.Time) DateRange {
	if year == 0 {
		year = today.Year()
		if month < today.Month() {
			year++
		}
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := endOfMonth(start)
	if year == today.Year() && month == today.Month() {
		start = today
	}
	return DateRange{Start: start, End: end}
}

func endOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

func addDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

func monthIndex(name string) time.Month {
	for i, m := range monthNames {
		if m == name {
			return time.Month(i + 1)
		}
	}
	return 0
}
