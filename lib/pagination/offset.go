// Package pagination implements the offset paging protocol used by the
// Pingdom list endpoints. The API reports neither a total record count
// nor a "has more" flag, so the only reliable termination signal is an
// under-full page: as long as a page comes back with at least pageSize
// records there may be more, and when the total happens to be an exact
// multiple of the page size one extra request returning zero records is
// issued before termination is detected. That extra request is accepted
// behavior, not a defect.
package pagination

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var ErrMalformedResponse = errors.New("page body is not valid JSON")

// OffsetPaginator tracks the offset cursor for a single stream's sync
// loop. An instance is exclusively owned by the loop driving one stream
// (or one parent-record partition for child streams) and is not safe for
// concurrent use.
type OffsetPaginator struct {
	current    int
	pageSize   int
	recordPath string
	lastCount  int
	finished   bool
}

// NewOffsetPaginator returns a paginator starting at startValue
// (typically 0, meaning "first page"). pageSize must be positive.
// recordPath is the gjson path of the record list inside a page body,
// e.g. "checks" or "actions.alerts".
func NewOffsetPaginator(startValue, pageSize int, recordPath string) *OffsetPaginator {
	return &OffsetPaginator{
		current:    startValue,
		pageSize:   pageSize,
		recordPath: recordPath,
	}
}

// HasMore reports whether another page should be requested after the
// given page body. It counts the records matched by the record path and
// returns true iff the page was full (count >= pageSize). Only arrays
// count as records; a missing path or a non-array match means "no more
// data" and is normal termination, not an error. Only a body that
// cannot be parsed as JSON fails.
func (p *OffsetPaginator) HasMore(body []byte) (bool, error) {
	if !gjson.ValidBytes(body) {
		return false, fmt.Errorf("%w: %.80q", ErrMalformedResponse, body)
	}
	matches := gjson.GetBytes(body, p.recordPath)

	count := 0
	if matches.IsArray() {
		count = len(matches.Array())
	}
	p.lastCount = count

	return count >= p.pageSize, nil
}

// Advance consumes a fetched page: when the page was full the cursor
// moves forward by pageSize, otherwise the paginator is finished and no
// further requests should be issued.
func (p *OffsetPaginator) Advance(body []byte) error {
	more, err := p.HasMore(body)
	if err != nil {
		return err
	}
	if !more {
		p.finished = true
		return nil
	}
	p.current += p.pageSize
	return nil
}

// Current returns the offset to request the next page at.
func (p *OffsetPaginator) Current() int {
	return p.current
}

// PageSize returns the requested records per page.
func (p *OffsetPaginator) PageSize() int {
	return p.pageSize
}

// LastCount returns the record count observed by the most recent HasMore
// call.
func (p *OffsetPaginator) LastCount() int {
	return p.lastCount
}

func (p *OffsetPaginator) Finished() bool {
	return p.finished
}
