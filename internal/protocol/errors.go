package protocol

import "errors"

var (
	ErrEmptyFrame   = errors.New("empty frame")
	ErrUnknownTag   = errors.New("unknown frame tag")
	ErrFrameSize    = errors.New("unexpected frame size")
	ErrBadTimeTag   = errors.New("time request marker mismatch")
	ErrBatchSize    = errors.New("batch is not full")
	ErrInvalidAddr  = errors.New("invalid node address")
	ErrFramingValue = errors.New("invalid framing (allowed: tagged, legacy)")
)
