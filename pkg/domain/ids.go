package domain

import (
	"strconv"
	"strings"

	dErrors "cityfix/pkg/domain-errors"
)

// UserID identifies a user across services. Stores assign it; other services
// only ever receive it through tokens or event payloads.
type UserID int64

// ReportID identifies a report owned by the report service.
type ReportID int64

func (id UserID) String() string   { return strconv.FormatInt(int64(id), 10) }
func (id ReportID) String() string { return strconv.FormatInt(int64(id), 10) }

// IsZero reports whether the ID was never assigned.
func (id UserID) IsZero() bool { return id == 0 }

// IsZero reports whether the ID was never assigned.
func (id ReportID) IsZero() bool { return id == 0 }

// ParseUserID parses a positive decimal user ID from untrusted input.
func ParseUserID(s string) (UserID, error) {
	n, err := parsePositive(s)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid user id")
	}
	return UserID(n), nil
}

// ParseReportID parses a positive decimal report ID from untrusted input.
func ParseReportID(s string) (ReportID, error) {
	n, err := parsePositive(s)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid report id")
	}
	return ReportID(n), nil
}

func parsePositive(s string) (int64, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
