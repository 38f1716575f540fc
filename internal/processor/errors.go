package processor

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for reporting.
type ErrorKind string

const (
	KindNoFilesFound      ErrorKind = "NoFilesFound"
	KindUnsupportedFormat ErrorKind = "UnsupportedFormat"
	KindBackupFailure     ErrorKind = "BackupFailure"
	KindIOFailure         ErrorKind = "IOFailure"
	KindExternalTool      ErrorKind = "ExternalToolFailure"
)

var (
	ErrNoFilesFound      = errors.New("no image files found")
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrBackupFailure     = errors.New("backup failed")
	ErrIOFailure         = errors.New("i/o failure")
	ErrExternalTool      = errors.New("external tool failed")
)

var kindSentinels = []struct {
	kind ErrorKind
	err  error
}{
	{KindNoFilesFound, ErrNoFilesFound},
	{KindUnsupportedFormat, ErrUnsupportedFormat},
	{KindBackupFailure, ErrBackupFailure},
	{KindExternalTool, ErrExternalTool},
	{KindIOFailure, ErrIOFailure},
}

// ReductionError records why one file could not be reduced.
type ReductionError struct {
	Path string
	Kind ErrorKind
	Err  error
}

func (e *ReductionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *ReductionError) Unwrap() error {
	return e.Err
}

// Message is the underlying cause without the path and kind prefix.
func (e *ReductionError) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// KindOf classifies err. Anything unrecognised is an IOFailure.
func KindOf(err error) ErrorKind {
	var re *ReductionError
	if errors.As(err, &re) && re.Kind != "" {
		return re.Kind
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	return KindIOFailure
}

func newReductionError(path string, err error) *ReductionError {
	var re *ReductionError
	if errors.As(err, &re) {
		return re
	}
	return &ReductionError{Path: path, Kind: KindOf(err), Err: err}
}

func ioFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIOFailure, op, err)
}
