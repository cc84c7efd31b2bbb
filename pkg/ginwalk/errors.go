package ginwalk

import (
	"fmt"

	"dinodb/pkg/ginpage"
)

// Kind identifies the stable category of a check failure.
type Kind int

const (
	// KindUnsupportedTarget means the relation is not something this
	// checker can walk at all (e.g. it has no pages, or its root isn't
	// where the entry tree is expected).
	KindUnsupportedTarget Kind = iota
	// KindIOError means a page could not be read from the buffer manager.
	KindIOError
	// KindStructuralCorruption means a page or the tree it's part of
	// violates one of the structural invariants.
	KindStructuralCorruption
	// KindDecodingMismatch means a tuple or payload couldn't be decoded
	// in a way consistent with its page's own header.
	KindDecodingMismatch
	// KindCancelled means the caller's Cancellation fired mid-traversal.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedTarget:
		return "unsupported-target"
	case KindIOError:
		return "io-error"
	case KindStructuralCorruption:
		return "structural-corruption"
	case KindDecodingMismatch:
		return "decoding-mismatch"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CheckError is the single error type returned by CheckIndex. Every
// failure path wraps its cause in one of these rather than returning a
// bare error, so callers can recover Kind with errors.As.
type CheckError struct {
	Kind    Kind
	Index   string
	Block   ginpage.BlockNumber
	HasLoc  bool
	Message string
	Cause   error
}

func (e *CheckError) Error() string {
	loc := ""
	if e.HasLoc {
		loc = fmt.Sprintf(" at block %d", e.Block)
	}
	if e.Cause != nil {
		return fmt.Sprintf("gin check [%s] on %q%s: %s: %v", e.Kind, e.Index, loc, e.Message, e.Cause)
	}
	return fmt.Sprintf("gin check [%s] on %q%s: %s", e.Kind, e.Index, loc, e.Message)
}

func (e *CheckError) Unwrap() error { return e.Cause }

func newErr(kind Kind, index string, msg string) *CheckError {
	return &CheckError{Kind: kind, Index: index, Message: msg}
}

func newErrAt(kind Kind, index string, block ginpage.BlockNumber, msg string) *CheckError {
	return &CheckError{Kind: kind, Index: index, Block: block, HasLoc: true, Message: msg}
}

func wrapErr(kind Kind, index string, msg string, cause error) *CheckError {
	return &CheckError{Kind: kind, Index: index, Message: msg, Cause: cause}
}

func wrapErrAt(kind Kind, index string, block ginpage.BlockNumber, msg string, cause error) *CheckError {
	return &CheckError{Kind: kind, Index: index, Block: block, HasLoc: true, Message: msg, Cause: cause}
}
