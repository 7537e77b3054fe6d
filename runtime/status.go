package runtime

import (
	"fmt"
	"strings"
)

// Status is the classification of one record attempt.
type Status string

const (
	StatusNone    Status = "None"
	StatusSuccess Status = "Success"
	StatusFail    Status = "Fail"
	StatusBan     Status = "Ban"
	StatusRetry   Status = "Retry"
	StatusError   Status = "Error"
	StatusCustom  Status = "Custom"
)

var allStatuses = []Status{StatusNone, StatusSuccess, StatusFail, StatusBan, StatusRetry, StatusError, StatusCustom}

// ParseStatus accepts any casing of a status name.
func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether the status ends a block walk.
func (s Status) Terminal() bool {
	return s != StatusNone && s != ""
}

// Label is the upper-case form used in result feeds.
func (s Status) Label() string {
	return strings.ToUpper(string(s))
}
