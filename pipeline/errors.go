package pipeline

import (
	"errors"
	"fmt"
)

// ErrQueueClosed is returned by Push after Close, and by Take once a
// closed queue is drained.
var ErrQueueClosed = errors.New("packet queue closed")

// ErrAlreadyRunning is returned when Run is called more than once.
var ErrAlreadyRunning = errors.New("pipeline consumer already started")

// ErrCompleted is returned by Dispatch and Run when a completed backtest
// result was published and the engine is configured to close after
// completion. It is a normal outcome, not a failure.
var ErrCompleted = errors.New("backtest completed")

// ErrorKind classifies pipeline errors.
type ErrorKind int

const (
	// ErrorKindProducer is a transport failure in the producer loop.
	ErrorKindProducer ErrorKind = iota
	// ErrorKindDecode is a malformed payload for a known packet kind.
	ErrorKindDecode
	// ErrorKindHandler is a failure while dispatching a packet: a merge
	// that failed or a handler that returned an error or panicked.
	ErrorKindHandler
	// ErrorKindCanceled is a cancellation. It is a normal shutdown.
	ErrorKindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindProducer:
		return "producer"
	case ErrorKindDecode:
		return "decode"
	case ErrorKindHandler:
		return "handler"
	case ErrorKindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// PipelineError is a classified pipeline failure.
type PipelineError struct {
	Kind ErrorKind
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func isKind(err error, kind ErrorKind) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// IsCanceledError returns true if err is a cancellation outcome.
func IsCanceledError(err error) bool { return isKind(err, ErrorKindCanceled) }

// IsDecodeError returns true if err is a decode failure.
func IsDecodeError(err error) bool { return isKind(err, ErrorKindDecode) }

// IsHandlerError returns true if err is a dispatch failure.
func IsHandlerError(err error) bool { return isKind(err, ErrorKindHandler) }

// IsProducerError returns true if err is a transport failure.
func IsProducerError(err error) bool { return isKind(err, ErrorKindProducer) }
