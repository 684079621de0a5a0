package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD value in UTC.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", value, shared.ErrValidation)
	}
	return t, nil
}

// DateRange reads optional from/to query parameters.
func DateRange(r *http.Request) (from, to *time.Time, err error) {
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := ParseDate(v)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := ParseDate(v)
		if err != nil {
			return nil, nil, err
		}
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, fmt.Errorf("date range: to before from: %w", shared.ErrValidation)
	}
	return from, to, nil
}
