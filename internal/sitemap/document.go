// Package sitemap builds and reads sitemaps.org 0.9 documents.
package sitemap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

	DefaultChangeFreq = Weekly
	DefaultPriority   = 0.5

	// MaxURLs is the protocol limit of url elements per document.
	MaxURLs = 50000

	dateLayout = "2006-01-02"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Entry is a single indexable URL of a Document.
type Entry struct {
	Loc          string
	LastModified time.Time
	ChangeFreq   ChangeFreq
	Priority     float64
}

// Document collects entries under one base URL. It is not safe for
// concurrent AddEntry calls; Render may run concurrently with other Renders.
type Document struct {
	baseURL string
	now     func() time.Time
	entries []Entry
}

type Option func(*Document)

// WithClock sets the time source used for entries added without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(d *Document) {
		if now != nil {
			d.now = now
		}
	}
}

func New(baseURL string, opts ...Option) (*Document, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is empty", ErrInvalidArgument)
	}
	if !isAbsolute(baseURL) {
		return nil, fmt.Errorf("%w: base URL %q is not absolute", ErrInvalidArgument, baseURL)
	}

	d := &Document{
		baseURL: baseURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

type entryOptions struct {
	lastModified *time.Time
	changeFreq   ChangeFreq
	priority     float64
}

type EntryOption func(*entryOptions)

func WithLastModified(t time.Time) EntryOption {
	return func(o *entryOptions) {
		o.lastModified = &t
	}
}

func WithChangeFreq(c ChangeFreq) EntryOption {
	return func(o *entryOptions) {
		o.changeFreq = c
	}
}

func WithPriority(p float64) EntryOption {
	return func(o *entryOptions) {
		o.priority = p
	}
}

// AddEntry appends baseURL+path. On error the document is left unchanged.
func (d *Document) AddEntry(path string, opts ...EntryOption) error {
	o := entryOptions{
		changeFreq: DefaultChangeFreq,
		priority:   DefaultPriority,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if math.IsNaN(o.priority) || o.priority < 0 || o.priority > 1 {
		return fmt.Errorf("%w: priority %v outside [0.0, 1.0]", ErrInvalidArgument, o.priority)
	}
	if o.priority == 0 {
		// Negative zero renders as "-0.0".
		o.priority = 0
	}
	if !o.changeFreq.Valid() {
		return fmt.Errorf("%w: unknown change frequency %q", ErrInvalidArgument, string(o.changeFreq))
	}

	loc := d.baseURL + path
	if !isAbsolute(loc) {
		return fmt.Errorf("%w: location %q is not an absolute URL", ErrInvalidArgument, loc)
	}

	lastModified := d.now()
	if o.lastModified != nil {
		lastModified = *o.lastModified
	}

	d.entries = append(d.entries, Entry{
		Loc:          loc,
		LastModified: lastModified,
		ChangeFreq:   o.changeFreq,
		Priority:     o.priority,
	})
	return nil
}

func (d *Document) BaseURL() string {
	return d.baseURL
}

func (d *Document) Len() int {
	return len(d.entries)
}

// Entries returns a copy of the entries in insertion order.
func (d *Document) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Render serializes the document. Output is byte-identical across calls
// as long as no entry is added in between.
func (d *Document) Render() ([]byte, error) {
	set := URLSet{
		Xmlns: Namespace,
		URLs:  make([]URL, 0, len(d.entries)),
	}
	for _, e := range d.entries {
		set.URLs = append(set.URLs, URL{
			Loc:        e.Loc,
			LastMod:    e.LastModified.Format(dateLayout),
			ChangeFreq: e.ChangeFreq.String(),
			Priority:   FormatPriority(e.Priority),
		})
	}
	return marshal(set)
}

func (d *Document) String() string {
	b, err := d.Render()
	if err != nil {
		return ""
	}
	return string(b)
}

// WriteTo writes the rendered document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	b, err := d.Render()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// FormatPriority renders p with its shortest decimal form, keeping at
// least one fractional digit (1 -> "1.0", 0.25 -> "0.25").
func FormatPriority(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func isAbsolute(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
