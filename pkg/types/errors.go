package types

import "fmt"

// Validation failure reasons shared between the resolver and the report.
const (
	ReasonZeroAmount          = "zero amount"
	ReasonZeroOrderAmount     = "zero making/taking amount"
	ReasonInsufficientBalance = "insufficient balance"
	ReasonApprovalFailed      = "approval failed"
	ReasonUnsupportedProtocol = "unsupported protocol"
	ReasonDeadlineExceeded    = "deadline exceeded"
	ReasonMalformed           = "malformed descriptor"
)

// MalformedDescriptorError is a structural parse failure. The operation is
// skipped; the batch continues.
type MalformedDescriptorError struct {
	Kind   string // "swap" or "order"
	Index  int    // position within its descriptor list
	Field  string
	Detail string
}

func (e *MalformedDescriptorError) Error() string {
	return fmt.Sprintf("malformed %s descriptor #%d: field %q: %s", e.Kind, e.Index, e.Field, e.Detail)
}

// ValidationError is a pre-submission business-rule rejection. It is recovered
// locally as a terminal failed outcome for the operation.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ReadError is a failed Chain Gateway read (quote, balance, allowance).
// The engine treats it the same as a validation failure: without the read the
// operation cannot safely proceed.
type ReadError struct {
	Call string // gateway method that failed
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("chain read %s failed: %v", e.Call, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// SubmitError is a transaction that could not be sent or was reverted
// on-chain. Reverted distinguishes "the chain executed and rejected it" from
// "it never reached the chain".
type SubmitError struct {
	Reason   string
	Reverted bool
	TxHash   string // set when the transaction was mined before reverting
	Err      error
}

func (e *SubmitError) Error() string {
	if e.Reverted {
		return fmt.Sprintf("transaction reverted: %s", e.Reason)
	}

	return fmt.Sprintf("submission failed: %s", e.Reason)
}

func (e *SubmitError) Unwrap() error { return e.Err }
