package engine

import (
	constant "github.com/bountybase/engine/engine/constants"
)

// Response represents a business error with code, title, and message.
type Response struct {
	EntityType string `json:"entityType,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
	Err        error  `json:"err,omitempty"`
}

func (e Response) Error() string {
	return e.Message
}

// Unwrap exposes the underlying domain error for errors.Is checks.
func (e Response) Unwrap() error {
	return e.Err
}

// BusinessError translates a domain error constant into the business error
// surfaced at the request boundary, carrying code, title, and message.
// Unknown errors are returned unchanged.
func BusinessError(err error, entityType string) error {
	errorMap := map[error]error{
		constant.ErrInsufficientBalance: Response{
			EntityType: entityType,
			Code:       constant.ErrInsufficientBalance.Error(),
			Title:      "Insufficient Balance",
			Message:    "The payer wallet does not hold enough funds to cover the requested bounty. Top up the wallet and try again.",
			Err:        constant.ErrInsufficientBalance,
		},
		constant.ErrTaskState: Response{
			EntityType: entityType,
			Code:       constant.ErrTaskState.Error(),
			Title:      "Invalid Task State",
			Message:    "The task is not in a state that permits this operation. Refresh the task and try again.",
			Err:        constant.ErrTaskState,
		},
		constant.ErrAlreadyApplied: Response{
			EntityType: entityType,
			Code:       constant.ErrAlreadyApplied.Error(),
			Title:      "Duplicate Application",
			Message:    "An open application for this task already exists for this user.",
			Err:        constant.ErrAlreadyApplied,
		},
		constant.ErrTaskNotFound: Response{
			EntityType: entityType,
			Code:       constant.ErrTaskNotFound.Error(),
			Title:      "Task Not Found",
			Message:    "The requested task does not exist or was deleted.",
			Err:        constant.ErrTaskNotFound,
		},
		constant.ErrNotTaskCreator: Response{
			EntityType: entityType,
			Code:       constant.ErrNotTaskCreator.Error(),
			Title:      "Not Task Creator",
			Message:    "Only the task creator may perform this operation.",
			Err:        constant.ErrNotTaskCreator,
		},
		constant.ErrNotTaskContributor: Response{
			EntityType: entityType,
			Code:       constant.ErrNotTaskContributor.Error(),
			Title:      "Not Task Contributor",
			Message:    "Only the assigned contributor may perform this operation.",
			Err:        constant.ErrNotTaskContributor,
		},
		constant.ErrNoApplication: Response{
			EntityType: entityType,
			Code:       constant.ErrNoApplication.Error(),
			Title:      "No Application",
			Message:    "The user has not applied to this task, so they cannot be accepted as contributor.",
			Err:        constant.ErrNoApplication,
		},
		constant.ErrBountyLocked: Response{
			EntityType: entityType,
			Code:       constant.ErrBountyLocked.Error(),
			Title:      "Bounty Locked",
			Message:    "The bounty can no longer change because the task already has applications or an assigned contributor.",
			Err:        constant.ErrBountyLocked,
		},
		constant.ErrContributorAssigned: Response{
			EntityType: entityType,
			Code:       constant.ErrContributorAssigned.Error(),
			Title:      "Contributor Assigned",
			Message:    "The task cannot be deleted while a contributor is assigned.",
			Err:        constant.ErrContributorAssigned,
		},
		constant.ErrWalletNotFound: Response{
			EntityType: entityType,
			Code:       constant.ErrWalletNotFound.Error(),
			Title:      "Wallet Not Found",
			Message:    "No wallet is registered for the requested owner.",
			Err:        constant.ErrWalletNotFound,
		},
		constant.ErrInvalidInput: Response{
			EntityType: entityType,
			Code:       constant.ErrInvalidInput.Error(),
			Title:      "Invalid Input",
			Message:    "One or more request fields are missing or malformed. Review the request and try again.",
			Err:        constant.ErrInvalidInput,
		},
		constant.ErrTimelineUnit: Response{
			EntityType: entityType,
			Code:       constant.ErrTimelineUnit.Error(),
			Title:      "Invalid Timeline Unit",
			Message:    "The timeline unit must be DAY or WEEK.",
			Err:        constant.ErrTimelineUnit,
		},
	}

	if mappedError, found := errorMap[err]; found {
		return mappedError
	}

	return err
}
