package entity

import "fmt"

// DecodeError marks an unreadable or corrupt source image. It aborts the
// whole run: a missing source cannot be skipped silently.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SynthesisError marks a failed narration synthesis. It is recoverable: the
// affected frame falls back to the default display duration with no audio.
type SynthesisError struct {
	Text string
	Err  error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize narration: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// RetryableError wraps a transient job failure and carries the attempt count
// recorded on the job row, so the consumer can size its requeue backoff
// without depending on broker headers.
type RetryableError struct {
	Attempt int
	Err     error
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// EncodeError marks a failed video encode step. Fatal to the run.
type EncodeError struct {
	Stage string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode (%s): %v", e.Stage, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// MuxError marks a failed audio/video mux. Fatal to the run.
type MuxError struct {
	Err error
}

func (e *MuxError) Error() string {
	return fmt.Sprintf("mux: %v", e.Err)
}

func (e *MuxError) Unwrap() error { return e.Err }

// StorageError marks a failed object storage operation. Fatal to the run.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ParseError marks an unexpected payload shape from a queue message or a
// provider response. Callers fail fast instead of propagating loose data.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Field, e.Reason)
}
