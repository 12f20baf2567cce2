package dedupe

import (
	stderrors "errors"
	"fmt"

	"github.com/go-errors/errors"
)

// ErrInvalidSelection is returned when a selection names a candidate that is
// not a member of its group, or a group that is not in the working set. It
// means the caller's view and the store disagree and must not be ignored.
var ErrInvalidSelection = stderrors.New("invalid selection")

// invalidSelection wraps ErrInvalidSelection with a stack trace.
func invalidSelection(id GroupID, key CandidateKey) error {
	return errors.WrapPrefix(ErrInvalidSelection,
		fmt.Sprintf("group %s has no candidate %q", id, key.Value), 1)
}

func unknownGroup(id GroupID) error {
	return errors.WrapPrefix(ErrInvalidSelection, fmt.Sprintf("unknown group %s", id), 1)
}

// FetchTypeError reports that the list of translatable types could not be
// retrieved. A scan cannot continue without it.
type FetchTypeError struct {
	Err error
}

func (e *FetchTypeError) Error() string {
	return fmt.Sprintf("listing translatable types: %v", e.Err)
}

func (e *FetchTypeError) Unwrap() error { return e.Err }

// FetchObjectsError reports that one type's objects could not be retrieved.
// The scan records it and treats the type as empty.
type FetchObjectsError struct {
	Type string
	Err  error
}

func (e *FetchObjectsError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Type, e.Err)
}

func (e *FetchObjectsError) Unwrap() error { return e.Err }

// Write-back operations recorded in WriteBackError.Op.
const (
	OpFetch    = "fetch"
	OpWrite    = "write"
	OpCanceled = "canceled"
)

// WriteBackError reports a failed fresh-fetch or persist for one object.
type WriteBackError struct {
	ObjectID string
	Op       string
	Err      error
}

func (e *WriteBackError) Error() string {
	return fmt.Sprintf("%s object %s: %v", e.Op, e.ObjectID, e.Err)
}

func (e *WriteBackError) Unwrap() error { return e.Err }
