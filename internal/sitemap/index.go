package sitemap

import (
	"fmt"
	"time"
)

// Index lists child sitemaps once a site outgrows a single document.
type Index struct {
	refs []indexRef
}

type indexRef struct {
	loc          string
	lastModified time.Time
}

func NewIndex() *Index {
	return &Index{}
}

func (i *Index) Add(loc string, lastModified time.Time) error {
	if !isAbsolute(loc) {
		return fmt.Errorf("%w: sitemap location %q is not an absolute URL", ErrInvalidArgument, loc)
	}
	i.refs = append(i.refs, indexRef{loc: loc, lastModified: lastModified})
	return nil
}

func (i *Index) Len() int {
	return len(i.refs)
}

func (i *Index) Render() ([]byte, error) {
	set := IndexSet{
		Xmlns:    Namespace,
		Sitemaps: make([]IndexRef, 0, len(i.refs)),
	}
	for _, r := range i.refs {
		ref := IndexRef{Loc: r.loc}
		if !r.lastModified.IsZero() {
			ref.LastMod = r.lastModified.Format(dateLayout)
		}
		set.Sitemaps = append(set.Sitemaps, ref)
	}
	return marshal(set)
}

// Split partitions entries into consecutive chunks of at most size.
func Split(entries []Entry, size int) [][]Entry {
	if size <= 0 || size > MaxURLs {
		size = MaxURLs
	}
	var chunks [][]Entry
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		chunks = append(chunks, entries[start:end])
	}
	return chunks
}

// LatestModification returns the newest LastModified among entries.
func LatestModification(entries []Entry) time.Time {
	var latest time.Time
	for _, e := range entries {
		if e.LastModified.After(latest) {
			latest = e.LastModified
		}
	}
	return latest
}
