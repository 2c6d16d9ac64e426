package sitemap

import (
	"fmt"
	"strings"
)

// ChangeFreq is the crawler hint for how often a URL changes.
type ChangeFreq string

const (
	Always  ChangeFreq = "always"
	Hourly  ChangeFreq = "hourly"
	Daily   ChangeFreq = "daily"
	Weekly  ChangeFreq = "weekly"
	Monthly ChangeFreq = "monthly"
	Yearly  ChangeFreq = "yearly"
	Never   ChangeFreq = "never"
)

func (c ChangeFreq) Valid() bool {
	switch c {
	case Always, Hourly, Daily, Weekly, Monthly, Yearly, Never:
		return true
	}
	return false
}

func (c ChangeFreq) String() string {
	return string(c)
}

// ParseChangeFreq accepts any casing of the protocol values.
func ParseChangeFreq(s string) (ChangeFreq, error) {
	c := ChangeFreq(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown change frequency %q", ErrInvalidArgument, s)
	}
	return c, nil
}
