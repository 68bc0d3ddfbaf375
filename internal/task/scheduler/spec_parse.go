package scheduler

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseInterval parses a config interval into a whole number of seconds.
//
// Supported forms:
//   - Seconds: "3600"
//   - Go duration: "55m", "2h30m", "90s"
//   - HH:MM: "00:50" (50 minutes), "24:00" (one day)
//
// Anything non-positive or not a whole number of seconds is ErrInvalidSchedule.
func ParseInterval(raw string) (time.Duration, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, fmt.Errorf("%w: interval required", ErrInvalidSchedule)
	}

	var d time.Duration
	switch {
	case isDigits(v):
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n > math.MaxInt64/int64(time.Second) {
			return 0, fmt.Errorf("%w: interval %q out of range", ErrInvalidSchedule, raw)
		}
		d = time.Duration(n) * time.Second
	case reHHMM.MatchString(v):
		hd, err := parseHHMMDuration(v)
		if err != nil {
			return 0, err
		}
		d = hd
	default:
		pd, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%w: interval %q (use seconds like '3600', HH:MM like '02:30', or duration like '55m')", ErrInvalidSchedule, raw)
		}
		d = pd
	}

	if _, err := wholeSeconds(d); err != nil {
		return 0, err
	}
	return d, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("%w: invalid HH:MM %q", ErrInvalidSchedule, v)
	}
	// safe parse: hours up to 999, minutes 0..59
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("%w: invalid minutes in %q", ErrInvalidSchedule, v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("%w: interval must be > 0", ErrInvalidSchedule)
	}
	return d, nil
}
