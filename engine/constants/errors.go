package constant

import "errors"

var (
	// ErrInsufficientBalance maps to domain error code 0001.
	ErrInsufficientBalance = errors.New("0001")
	// ErrTaskState maps to domain error code 0002.
	ErrTaskState = errors.New("0002")
	// ErrAlreadyApplied maps to domain error code 0003.
	ErrAlreadyApplied = errors.New("0003")
	// ErrTaskNotFound maps to domain error code 0004.
	ErrTaskNotFound = errors.New("0004")
	// ErrNotTaskCreator maps to domain error code 0005.
	ErrNotTaskCreator = errors.New("0005")
	// ErrNotTaskContributor maps to domain error code 0006.
	ErrNotTaskContributor = errors.New("0006")
	// ErrNoApplication maps to domain error code 0007.
	ErrNoApplication = errors.New("0007")
	// ErrBountyLocked maps to domain error code 0008.
	ErrBountyLocked = errors.New("0008")
	// ErrContributorAssigned maps to domain error code 0009.
	ErrContributorAssigned = errors.New("0009")
	// ErrWalletNotFound maps to domain error code 0010.
	ErrWalletNotFound = errors.New("0010")
	// ErrInvalidInput maps to domain error code 0011.
	ErrInvalidInput = errors.New("0011")
	// ErrTimelineUnit maps to domain error code 0012.
	ErrTimelineUnit = errors.New("0012")
)
