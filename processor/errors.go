package processor

import (
	"errors"
	"fmt"
)

// ErrTransferNotFound is returned by LookupTransfer when the processor has no
// transfer recorded under the given group key.
var ErrTransferNotFound = errors.New("transfer_not_found")

// ProcessorError is a definitive rejection from the payment processor:
// bad destination, disabled account, insufficient platform balance, etc.
// The transfer did not happen and will not happen without a new request.
type ProcessorError struct {
	Code    string
	Message string
}

func (e *ProcessorError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("processor rejected transfer (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("processor rejected transfer: %s", e.Message)
}

// AmbiguousError means the call ended without a definitive answer (timeout,
// connection drop, open circuit). The transfer may or may not have gone
// through; callers must reconcile via LookupTransfer with the same group key
// before retrying.
type AmbiguousError struct {
	GroupKey string
	Err      error
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("transfer outcome unknown for group %s: %v", e.GroupKey, e.Err)
}

func (e *AmbiguousError) Unwrap() error { return e.Err }

// IsAmbiguous reports whether err (anywhere in its chain) is an AmbiguousError.
func IsAmbiguous(err error) bool {
	var ae *AmbiguousError
	return errors.As(err, &ae)
}
