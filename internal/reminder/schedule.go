package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/julianstephens/dayjot/internal/constants"
	jerrors "github.com/julianstephens/dayjot/internal/errors"
)

var weekdayNames = map[string]int{
	"sun": 0, "sunday": 0,
	"mon": 1, "monday": 1,
	"tue": 2, "tues": 2, "tuesday": 2,
	"wed": 3, "wednesday": 3,
	"thu": 4, "thur": 4, "thurs": 4, "thursday": 4,
	"fri": 5, "friday": 5,
	"sat": 6, "saturday": 6,
}

// Schedule is a parsed recurrence bound to a timezone.
type Schedule struct {
	Expr     string
	Location *time.Location
	sched    cron.Schedule
}

// ParseSchedule accepts the friendly forms
//
//	daily HH:MM
//	weekdays HH:MM
//	weekly mon,wed HH:MM
//	monthly D HH:MM
//
// or any standard five-field cron expression or descriptor such as @daily.
// An empty timezone means UTC.
func ParseSchedule(expr, timezone string) (*Schedule, error) {
	expr = strings.TrimSpace(expr)
	invalid := func(err error) error {
		return &jerrors.InvalidScheduleError{Schedule: expr, Timezone: timezone, Err: err}
	}

	if timezone == "" {
		timezone = constants.DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, invalid(fmt.Errorf("unknown timezone %q", timezone))
	}

	cronExpr, err := toCron(expr)
	if err != nil {
		return nil, invalid(err)
	}
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, invalid(err)
	}

	s := &Schedule{Expr: expr, Location: loc, sched: sched}
	// cron gives up after five years without a match, e.g. "0 0 30 2 *"
	if s.NextAfter(time.Now()).IsZero() {
		return nil, invalid(fmt.Errorf("schedule never fires"))
	}
	return s, nil
}

// toCron rewrites the friendly grammar to cron. Anything else is passed
// through for cron to validate.
func toCron(expr string) (string, error) {
	if expr == "" {
		return "", fmt.Errorf("schedule is empty")
	}
	upper := strings.ToUpper(expr)
	if strings.HasPrefix(upper, "CRON_TZ=") || strings.HasPrefix(upper, "TZ=") {
		return "", fmt.Errorf("set the timezone separately, not inside the schedule")
	}

	fields := strings.Fields(strings.ToLower(expr))
	switch fields[0] {
	case "daily":
		if len(fields) != 2 {
			return "", fmt.Errorf("expected 'daily HH:MM'")
		}
		h, m, err := parseClock(fields[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * *", m, h), nil

	case "weekdays":
		if len(fields) != 2 {
			return "", fmt.Errorf("expected 'weekdays HH:MM'")
		}
		h, m, err := parseClock(fields[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * 1-5", m, h), nil

	case "weekly":
		if len(fields) != 3 {
			return "", fmt.Errorf("expected 'weekly mon,wed HH:MM'")
		}
		days, err := parseWeekdays(fields[1])
		if err != nil {
			return "", err
		}
		h, m, err := parseClock(fields[2])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * %s", m, h, days), nil

	case "monthly":
		if len(fields) != 3 {
			return "", fmt.Errorf("expected 'monthly D HH:MM'")
		}
		day, err := strconv.Atoi(fields[1])
		if err != nil || day < 1 || day > 31 {
			return "", fmt.Errorf("invalid day of month %q", fields[1])
		}
		h, m, err := parseClock(fields[2])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d %d * *", m, h, day), nil
	}
	return expr, nil
}

func parseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse(constants.TimeFormat, s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

func parseWeekdays(s string) (string, error) {
	seen := make(map[int]bool)
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		d, ok := weekdayNames[part]
		if !ok {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 || n > 6 {
				return "", fmt.Errorf("invalid weekday %q", part)
			}
			d = n
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, strconv.Itoa(d))
		}
	}
	return strings.Join(out, ","), nil
}

// NextAfter returns the first occurrence strictly after t, in UTC. An
// occurrence whose wall time is skipped by a daylight saving change fires at
// the first instant after the skipped hour.
func (s *Schedule) NextAfter(t time.Time) time.Time {
	next := s.sched.Next(t.In(s.Location))
	if next.IsZero() {
		return next
	}
	if gap, ok := s.gapOccurrence(t, next); ok {
		return gap.UTC()
	}
	return next.UTC()
}

// gapOccurrence finds the earliest clock-forward transition in (t, next)
// whose skipped wall-clock window holds an occurrence of the schedule.
func (s *Schedule) gapOccurrence(t, next time.Time) (time.Time, bool) {
	lt := t.In(s.Location)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, s.Location)
	for !day.After(next) {
		end := day.AddDate(0, 0, 1)
		_, before := day.Zone()
		_, after := end.Zone()
		if after > before {
			tr := zoneTransition(day, end)
			if tr.After(t) && tr.Before(next) {
				// the skipped wall times still exist at the old offset
				wall := time.FixedZone("", before)
				gapEnd := tr.Add(time.Duration(after-before) * time.Second)
				if c := s.sched.Next(tr.In(wall).Add(-time.Second)); !c.IsZero() && c.Before(gapEnd) {
					return tr, true
				}
			}
		}
		day = end
	}
	return time.Time{}, false
}

// zoneTransition returns the instant in (lo, hi] where the UTC offset
// changes to hi's offset.
func zoneTransition(lo, hi time.Time) time.Time {
	_, want := hi.Zone()
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2)
		if _, off := mid.Zone(); off == want {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi.Truncate(time.Second)
}

// NextAtOrAfter returns the earliest occurrence >= t, in UTC.
func (s *Schedule) NextAtOrAfter(t time.Time) time.Time {
	// occurrences fall on whole seconds
	ceil := t.Truncate(time.Second)
	if ceil.Before(t) {
		ceil = ceil.Add(time.Second)
	}
	return s.NextAfter(ceil.Add(-time.Second))
}

// LatestAtOrBefore walks forward from a known occurrence and returns the
// last occurrence that is not after now. It returns from unchanged when no
// later occurrence has passed.
func (s *Schedule) LatestAtOrBefore(from, now time.Time) time.Time {
	latest := from
	for {
		next := s.NextAfter(latest)
		if next.IsZero() || next.After(now) {
			return latest.UTC()
		}
		latest = next
	}
}
