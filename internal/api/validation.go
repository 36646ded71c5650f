package api

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ValidationError represents a rejected query parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// parseLimit reads the optional limit parameter. Zero means "use the default";
// the activity logger applies the default and the upper cap.
func parseLimit(q url.Values) (int, error) {
	raw := q.Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, ValidationError{Field: "limit", Message: "must be a positive integer"}
	}
	return limit, nil
}

// parseAfter reads the required RFC 3339 after parameter.
func parseAfter(q url.Values) (time.Time, error) {
	raw := q.Get("after")
	if raw == "" {
		return time.Time{}, ValidationError{Field: "after", Message: "is required"}
	}
	after, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, ValidationError{Field: "after", Message: "must be an RFC 3339 timestamp"}
	}
	return after, nil
}
