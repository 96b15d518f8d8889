// Package handlers implements the JSON HTTP API over the spendbook services.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/spendbook/internal/domain"
)

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	return nil
}

// window reads the start and end query parameters as epoch milliseconds.
// Missing start means the epoch, missing end means now.
func window(r *http.Request, now time.Time) (start, end int64, err error) {
	q := r.URL.Query()
	end = now.UnixMilli()
	if s := q.Get("start"); s != "" {
		if start, err = strconv.ParseInt(s, 10, 64); err != nil {
			return 0, 0, fmt.Errorf("%w: start must be epoch milliseconds", domain.ErrValidation)
		}
	}
	if s := q.Get("end"); s != "" {
		if end, err = strconv.ParseInt(s, 10, 64); err != nil {
			return 0, 0, fmt.Errorf("%w: end must be epoch milliseconds", domain.ErrValidation)
		}
	}
	if end < start {
		return 0, 0, fmt.Errorf("%w: end is before start", domain.ErrValidation)
	}
	return start, end, nil
}

// idList splits a comma-separated query value.
func idList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// optionalBool parses a tri-state query flag.
func optionalBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a boolean", domain.ErrValidation, s)
	}
	return &b, nil
}
