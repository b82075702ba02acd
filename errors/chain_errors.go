package errors

import (
	"github.com/mezonai/hashchain/jsonx"
)

// ErrorCode classifies chain failures
type ErrorCode string

const (
	// Store errors
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeStoreRead  ErrorCode = "store_read_error"
	ErrCodeStoreWrite ErrorCode = "store_write_error"

	// Chain errors
	ErrCodeAppend       ErrorCode = "append_error"
	ErrCodeInvalidBlock ErrorCode = "invalid_block"

	// Validation report codes. These never surface as returned errors.
	ErrCodeHashMismatch   ErrorCode = "hash_mismatch"
	ErrCodeBrokenLink     ErrorCode = "broken_link"
	ErrCodeHeightMismatch ErrorCode = "height_mismatch"
	ErrCodeMissingBlock   ErrorCode = "missing_block"
	ErrCodeCorruptBlock   ErrorCode = "corrupt_block"
)

// Error message constants
const (
	ErrMsgNotFound     = "Block could not be found"
	ErrMsgStoreRead    = "Failed to read block from store"
	ErrMsgStoreWrite   = "Failed to write block to store"
	ErrMsgAppend       = "Failed to append block"
	ErrMsgInvalidBlock = "Block data is invalid"
	ErrMsgCorruptBlock = "Stored block cannot be decoded"
)

// ChainError is the error type returned by the store, chain and validator layers
type ChainError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Height  *uint64   `json:"height,omitempty"`
	Cause   string    `json:"cause,omitempty"`

	err error
}

// Error implements the error interface
func (e *ChainError) Error() string {
	out := ChainError{
		Code:    e.Code,
		Message: e.Message,
		Height:  e.Height,
	}
	if e.err != nil {
		out.Cause = e.err.Error()
	}
	b, _ := jsonx.Marshal(out)
	return string(b)
}

// Unwrap returns the underlying cause, if any
func (e *ChainError) Unwrap() error {
	return e.err
}

// Is matches any ChainError carrying the same code, so callers can write
// errors.Is(err, ErrNotFound) regardless of height or cause.
func (e *ChainError) Is(target error) bool {
	t, ok := target.(*ChainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is
var (
	ErrNotFound     = &ChainError{Code: ErrCodeNotFound, Message: ErrMsgNotFound}
	ErrStoreRead    = &ChainError{Code: ErrCodeStoreRead, Message: ErrMsgStoreRead}
	ErrStoreWrite   = &ChainError{Code: ErrCodeStoreWrite, Message: ErrMsgStoreWrite}
	ErrAppend       = &ChainError{Code: ErrCodeAppend, Message: ErrMsgAppend}
	ErrInvalidBlock = &ChainError{Code: ErrCodeInvalidBlock, Message: ErrMsgInvalidBlock}
	ErrCorruptBlock = &ChainError{Code: ErrCodeCorruptBlock, Message: ErrMsgCorruptBlock}
)

func newError(code ErrorCode, message string, height uint64, cause error) error {
	h := height
	return &ChainError{
		Code:    code,
		Message: message,
		Height:  &h,
		err:     cause,
	}
}

// NewNotFound reports that no block was ever written at height
func NewNotFound(height uint64) error {
	return newError(ErrCodeNotFound, ErrMsgNotFound, height, nil)
}

// NewStoreRead wraps a backend read failure
func NewStoreRead(height uint64, cause error) error {
	return newError(ErrCodeStoreRead, ErrMsgStoreRead, height, cause)
}

// NewStoreWrite wraps a backend write failure
func NewStoreWrite(height uint64, cause error) error {
	return newError(ErrCodeStoreWrite, ErrMsgStoreWrite, height, cause)
}

// NewStoreScan wraps a failure while scanning the whole store
func NewStoreScan(cause error) error {
	return &ChainError{Code: ErrCodeStoreRead, Message: ErrMsgStoreRead, err: cause}
}

// NewStoreBatch wraps a failed multi-block write
func NewStoreBatch(cause error) error {
	return &ChainError{Code: ErrCodeStoreWrite, Message: ErrMsgStoreWrite, err: cause}
}

// NewAppend wraps any failure of the append sequence
func NewAppend(height uint64, cause error) error {
	return newError(ErrCodeAppend, ErrMsgAppend, height, cause)
}

// NewInvalidBlock reports a block that cannot be accepted, e.g. on import
func NewInvalidBlock(height uint64, cause error) error {
	return newError(ErrCodeInvalidBlock, ErrMsgInvalidBlock, height, cause)
}

// NewInvalidData rejects a payload before it is given a height
func NewInvalidData(cause error) error {
	return &ChainError{Code: ErrCodeInvalidBlock, Message: ErrMsgInvalidBlock, err: cause}
}

// NewCorruptBlock reports a stored record that is not a decodable block
func NewCorruptBlock(height uint64, cause error) error {
	return newError(ErrCodeCorruptBlock, ErrMsgCorruptBlock, height, cause)
}

// CodeOf returns the code of the first ChainError in err's chain, or "" if none
func CodeOf(err error) ErrorCode {
	for err != nil {
		if ce, ok := err.(*ChainError); ok {
			return ce.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
