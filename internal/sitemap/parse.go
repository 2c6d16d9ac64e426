package sitemap

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Parse decodes either a urlset or a sitemapindex. Exactly one of the
// returned sets is non-nil on success.
func Parse(r io.Reader) (*URLSet, *IndexSet, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sitemap: %w", err)
	}

	root, err := rootElement(body)
	if err != nil {
		return nil, nil, err
	}

	switch root {
	case "urlset":
		var set URLSet
		if err := xml.Unmarshal(body, &set); err != nil {
			return nil, nil, fmt.Errorf("failed to decode urlset: %w", err)
		}
		return &set, nil, nil
	case "sitemapindex":
		var idx IndexSet
		if err := xml.Unmarshal(body, &idx); err != nil {
			return nil, nil, fmt.Errorf("failed to decode sitemapindex: %w", err)
		}
		return nil, &idx, nil
	default:
		return nil, nil, fmt.Errorf("%w: unexpected root element <%s>", ErrInvalidArgument, root)
	}
}

// ToEntry converts a decoded URL back into an Entry, applying protocol
// defaults for missing optional fields.
func (u URL) ToEntry() (Entry, error) {
	e := Entry{
		Loc:        strings.TrimSpace(u.Loc),
		ChangeFreq: DefaultChangeFreq,
		Priority:   DefaultPriority,
	}
	if !isAbsolute(e.Loc) {
		return Entry{}, fmt.Errorf("%w: location %q is not an absolute URL", ErrInvalidArgument, e.Loc)
	}
	if u.LastMod != "" {
		t, err := parseLastMod(u.LastMod)
		if err != nil {
			return Entry{}, err
		}
		e.LastModified = t
	}
	if u.ChangeFreq != "" {
		c, err := ParseChangeFreq(u.ChangeFreq)
		if err != nil {
			return Entry{}, err
		}
		e.ChangeFreq = c
	}
	if u.Priority != "" {
		p, err := strconv.ParseFloat(strings.TrimSpace(u.Priority), 64)
		if err != nil || math.IsNaN(p) || p < 0 || p > 1 {
			return Entry{}, fmt.Errorf("%w: priority %q", ErrInvalidArgument, u.Priority)
		}
		e.Priority = math.Abs(p)
	}
	return e, nil
}

func rootElement(body []byte) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(body)))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("failed to find root element: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// lastmod may be a W3C datetime of any precision.
func parseLastMod(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04Z07:00", dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: lastmod %q", ErrInvalidArgument, s)
}
