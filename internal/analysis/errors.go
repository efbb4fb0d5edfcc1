package analysis

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoTemporalStructure means neither a Time column nor hour-range
	// columns were found. Time aggregation is skipped; correlation still runs.
	ErrNoTemporalStructure = errors.New("no temporal structure")
	// ErrTargetColumnMissing means the requested target is not a numeric column.
	ErrTargetColumnMissing = errors.New("target column missing")
	// ErrAllMissingColumn flags a metric column with no values; it is zero filled.
	ErrAllMissingColumn = errors.New("all values missing")
	// ErrMalformedHourLabel flags an hour-range column whose label does not parse to 0-23.
	ErrMalformedHourLabel = errors.New("malformed hour label")
	// ErrUndefinedRatio means a window ratio has no usable denominator.
	ErrUndefinedRatio = errors.New("undefined ratio")
	// ErrNoData means a series has no bucket with data.
	ErrNoData = errors.New("no data")
	// ErrInsufficientRows means fewer than two complete rows remain for correlation.
	ErrInsufficientRows = errors.New("insufficient complete rows")
	// ErrColumnNotFound means a named column does not exist or has the wrong kind.
	ErrColumnNotFound = errors.New("column not found")
)

// TargetColumnMissingError carries the numeric columns that were available.
type TargetColumnMissingError struct {
	Target    string
	Available []string
}

func (e *TargetColumnMissingError) Error() string {
	return fmt.Sprintf("데이터에 '%s' 컬럼이 없습니다 (target column %q not among numeric columns: %s)",
		e.Target, e.Target, strings.Join(e.Available, ", "))
}

func (e *TargetColumnMissingError) Is(target error) bool { return target == ErrTargetColumnMissing }

// MalformedHourLabelError names a dropped hour-range column.
type MalformedHourLabelError struct {
	Column string
	Reason string
}

func (e *MalformedHourLabelError) Error() string {
	return fmt.Sprintf("malformed hour label %q: %s", e.Column, e.Reason)
}

func (e *MalformedHourLabelError) Is(target error) bool { return target == ErrMalformedHourLabel }

// UndefinedRatioError explains why numerator/denominator could not be computed.
type UndefinedRatioError struct {
	Numerator   string
	Denominator string
	Reason      string
}

func (e *UndefinedRatioError) Error() string {
	return fmt.Sprintf("ratio %s/%s undefined: %s", e.Numerator, e.Denominator, e.Reason)
}

func (e *UndefinedRatioError) Is(target error) bool { return target == ErrUndefinedRatio }

// Unavailable replaces a sub-result that could not be computed.
type Unavailable struct {
	Err    error  `json:"-"`
	Reason string `json:"reason"`
}

func unavailable(err error) *Unavailable {
	if err == nil {
		return nil
	}
	return &Unavailable{Err: err, Reason: err.Error()}
}

func (u *Unavailable) Error() string { return u.Reason }

func (u *Unavailable) Unwrap() error { return u.Err }
