package ledger

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bountybase/engine/engine/retry"
	"github.com/stellar/go/clients/horizonclient"
)

// Rejection is a 400-class refusal carrying the ledger's machine-readable
// result codes. It is generally non-retryable unless the codes indicate a
// transient sequence or fee issue.
type Rejection struct {
	Codes []string
}

func (e *Rejection) Error() string {
	return fmt.Sprintf("ledger rejected transaction: %s", strings.Join(e.Codes, ", "))
}

// Retryable reports whether the rejection is a transient sequence/fee issue
// worth re-submitting.
func (e *Rejection) Retryable() bool {
	for _, code := range e.Codes {
		switch code {
		case "tx_bad_seq", "tx_insufficient_fee", "tx_too_late":
			return true
		}
	}

	return false
}

// Unavailable indicates the ledger could not be reached or answered with an
// infrastructure failure. Always retryable.
type Unavailable struct {
	Err error
}

func (e *Unavailable) Error() string {
	return fmt.Sprintf("ledger unavailable: %v", e.Err)
}

func (e *Unavailable) Unwrap() error { return e.Err }

// Retryable implements retry.RetryableError.
func (e *Unavailable) Retryable() bool { return true }

// classify maps a horizon client error to the engine's typed failure
// taxonomy. nil passes through.
func classify(err error) error {
	if err == nil {
		return nil
	}

	horizonErr := horizonclient.GetError(err)
	if horizonErr == nil {
		return &Unavailable{Err: err}
	}

	status := horizonErr.Problem.Status

	if status == http.StatusTooManyRequests {
		// Horizon does not expose a structured retry-after in the problem
		// body; zero lets the retry layer apply its amplified term.
		return &retry.RateLimitError{Err: err}
	}

	if status >= 400 && status < 500 {
		codes := resultCodes(horizonErr)
		if len(codes) > 0 {
			return &Rejection{Codes: codes}
		}

		return &Rejection{Codes: []string{horizonErr.Problem.Title}}
	}

	return &Unavailable{Err: err}
}

func resultCodes(horizonErr *horizonclient.Error) []string {
	resultCodes, err := horizonErr.ResultCodes()
	if err != nil || resultCodes == nil {
		return nil
	}

	codes := make([]string, 0, 2+len(resultCodes.OperationCodes))
	if resultCodes.TransactionCode != "" {
		codes = append(codes, resultCodes.TransactionCode)
	}

	if resultCodes.InnerTransactionCode != "" {
		codes = append(codes, resultCodes.InnerTransactionCode)
	}

	codes = append(codes, resultCodes.OperationCodes...)

	return codes
}
