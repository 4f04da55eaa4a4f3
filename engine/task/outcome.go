package task

// OutcomeKind tags the result of a lifecycle transition.
type OutcomeKind string

const (
	// OutcomeComplete means the transition and all its side effects
	// succeeded.
	OutcomeComplete OutcomeKind = "COMPLETE"
	// OutcomePartial means the state change and any fund movement
	// committed, but a downstream side effect failed. The committed
	// result stands; Detail and Err carry what went wrong.
	OutcomePartial OutcomeKind = "PARTIAL_SUCCESS"
	// OutcomeFailed means nothing user-visible changed, or the failure
	// left state needing reconciliation; Err carries the cause.
	OutcomeFailed OutcomeKind = "FAILED"
)

// Outcome is the explicit result of a lifecycle transition. Fund movements
// are never rolled back once committed, so a side-effect failure after a
// successful transfer is reported as partial success, not failure.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Task   *Task       `json:"task,omitempty"`
	TxHash string      `json:"txHash,omitempty"`
	Detail string      `json:"detail,omitempty"`
	Err    error       `json:"-"`
}

// Complete reports whether the transition fully succeeded.
func (o Outcome) Complete() bool { return o.Kind == OutcomeComplete }

// Failed reports whether the transition failed outright.
func (o Outcome) Failed() bool { return o.Kind == OutcomeFailed }

func completed(t *Task, txHash string) Outcome {
	return Outcome{Kind: OutcomeComplete, Task: t, TxHash: txHash}
}

func partial(t *Task, txHash, detail string, err error) Outcome {
	return Outcome{Kind: OutcomePartial, Task: t, TxHash: txHash, Detail: detail, Err: err}
}

func failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}
