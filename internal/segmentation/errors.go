package segmentation

import (
	"errors"
	"fmt"
)

// ErrEmptySegment is matched by every EmptySegmentError.
var ErrEmptySegment = errors.New("segment has no records")

// SchemaError reports a malformed input table. A load that returns one
// produces no store.
type SchemaError struct {
	Row    int // 1-based data row, 0 for header problems
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("schema: column %q: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("schema: row %d column %q: %s", e.Row, e.Column, e.Reason)
}

// EmptySegmentError is returned when a segment-level computation matches
// zero records. Callers skip the segment.
type EmptySegmentError struct {
	Segment string
}

func (e *EmptySegmentError) Error() string {
	return fmt.Sprintf("segment %q has no records", e.Segment)
}

// Is lets errors.Is(err, ErrEmptySegment) match.
func (e *EmptySegmentError) Is(target error) bool {
	return target == ErrEmptySegment
}

// QueryError reports an unusable filter condition.
type QueryError struct {
	Field    string
	Operator Operator
	Reason   string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("condition %s %s: %s", e.Field, e.Operator, e.Reason)
}
