package hcaptcha

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageExtract Stage = "extract"
	StageLocate  Stage = "locate"
	StageDetect  Stage = "detect"
	StageArchive Stage = "archive"
)

// Kind classifies a failure. Kinds double as sentinel errors, so callers can
// write errors.Is(err, hcaptcha.KindNetwork).
type Kind string

const (
	KindNetwork        Kind = "network"
	KindParse          Kind = "parse"
	KindNotFound       Kind = "not_found"
	KindMissingField   Kind = "missing_field"
	KindMalformedToken Kind = "malformed_token"
	KindDecode         Kind = "decode"
	KindUTF8           Kind = "utf8"
	KindFilesystem     Kind = "filesystem"
)

func (k Kind) Error() string { return string(k) }

// ErrVersionNotFound is returned when the bootstrap script no longer carries
// the version pattern.
var ErrVersionNotFound = errors.New("version pattern not found in bootstrap script")

// StageError is the single error type produced by the pipeline.
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the error's Kind, so errors.Is(err, KindParse) works without
// every call site wrapping the sentinel.
func (e *StageError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Transient reports whether retrying on the next cycle is likely to help.
// Parse and missing-field failures usually mean the remote format changed.
func (e *StageError) Transient() bool {
	switch e.Kind {
	case KindNetwork, KindFilesystem:
		return true
	}
	return false
}

func stageErr(stage Stage, kind Kind, format string, args ...any) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Classify extracts stage and kind from err, defaulting to "unknown" for
// errors produced outside the pipeline.
func Classify(err error) (Stage, Kind) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, se.Kind
	}
	return "unknown", "unknown"
}
