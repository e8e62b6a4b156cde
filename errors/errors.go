package reportstack_errors

import (
	"errors"
	"fmt"
)

var (
	// ErrMailConfigMissing is returned when the IMAP host, username or
	// password is not configured. An ingestion cycle hitting this is
	// skipped, not retried.
	ErrMailConfigMissing = errors.New("mail credentials not configured")

	// ErrNotFound is returned by the content store when a storage path
	// does not resolve to stored bytes.
	ErrNotFound = errors.New("content not found")

	// ErrReportIDConflict is returned when a parsed report_id already
	// exists for different content. The affected row is failed with a
	// descriptive parse_error instead of merging or overwriting.
	ErrReportIDConflict = errors.New("report_id already exists")
)

// CorruptArchiveError indicates an attachment could not be decompressed
// or its payload is not well-formed XML.
type CorruptArchiveError struct {
	Reason string
	Cause  error
}

func (e *CorruptArchiveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("corrupt archive: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("corrupt archive: %s", e.Reason)
}

func (e *CorruptArchiveError) Unwrap() error {
	return e.Cause
}

func NewCorruptArchive(reason string, cause error) error {
	return &CorruptArchiveError{Reason: reason, Cause: cause}
}

// MalformedReportError indicates XML that decompressed fine but does not
// carry a usable DMARC aggregate report.
type MalformedReportError struct {
	Reason string
}

func (e *MalformedReportError) Error() string {
	return fmt.Sprintf("malformed report: %s", e.Reason)
}

func NewMalformedReport(format string, args ...interface{}) error {
	return &MalformedReportError{Reason: fmt.Sprintf(format, args...)}
}

// IsPermanent reports whether err is a per-attachment failure that
// retrying would only reproduce (corrupt archive, malformed report,
// report_id conflict).
func IsPermanent(err error) bool {
	var corrupt *CorruptArchiveError
	var malformed *MalformedReportError
	return errors.As(err, &corrupt) || errors.As(err, &malformed) || errors.Is(err, ErrReportIDConflict)
}
