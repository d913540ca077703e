package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var expireShorthandRe = regexp.MustCompile(`^(\d+)([dwh])$`)

// ParseExpirationDuration turns a token-expiry argument into an absolute
// time. "never" or an empty string means no expiration. Accepted forms:
// any Go duration ("30m", "2h30m"), day/week shorthand ("30d", "2w"), or a
// date as "mm/dd/yyyy" with an optional " HH:MM".
func ParseExpirationDuration(expiresIn string) (*time.Time, error) {
	if expiresIn == "" || expiresIn == "never" {
		return nil, nil
	}

	if dur, err := time.ParseDuration(expiresIn); err == nil {
		t := time.Now().Add(dur)
		return &t, nil
	}

	for _, format := range []string{"01/02/2006 15:04", "01/02/2006"} {
		if t, err := time.Parse(format, expiresIn); err == nil {
			if t.Before(time.Now()) {
				return nil, fmt.Errorf("expiration date must be in the future: %s", expiresIn)
			}
			return &t, nil
		}
	}

	matches := expireShorthandRe.FindStringSubmatch(expiresIn)
	if len(matches) != 3 {
		return nil, fmt.Errorf("invalid expiration format: %s (use 'never', '30d', '24h', '12/25/2026', or a Go duration like '30m')", expiresIn)
	}
	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid number in expiration: %s", expiresIn)
	}

	var dur time.Duration
	switch matches[2] {
	case "d":
		dur = time.Duration(num) * 24 * time.Hour
	case "w":
		dur = time.Duration(num) * 7 * 24 * time.Hour
	case "h":
		dur = time.Duration(num) * time.Hour
	}

	t := time.Now().Add(dur)
	return &t, nil
}
