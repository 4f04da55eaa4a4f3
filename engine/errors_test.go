//go:build unit

package engine

import (
	"errors"
	"testing"

	constant "github.com/bountybase/engine/engine/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusinessErrorMapsDomainConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "insufficient balance", err: constant.ErrInsufficientBalance},
		{name: "task state", err: constant.ErrTaskState},
		{name: "already applied", err: constant.ErrAlreadyApplied},
		{name: "task not found", err: constant.ErrTaskNotFound},
		{name: "not task creator", err: constant.ErrNotTaskCreator},
		{name: "not task contributor", err: constant.ErrNotTaskContributor},
		{name: "no application", err: constant.ErrNoApplication},
		{name: "bounty locked", err: constant.ErrBountyLocked},
		{name: "contributor assigned", err: constant.ErrContributorAssigned},
		{name: "wallet not found", err: constant.ErrWalletNotFound},
		{name: "invalid input", err: constant.ErrInvalidInput},
		{name: "timeline unit", err: constant.ErrTimelineUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mapped := BusinessError(tt.err, "Task")

			var response Response
			require.ErrorAs(t, mapped, &response)

			assert.Equal(t, "Task", response.EntityType)
			assert.Equal(t, tt.err.Error(), response.Code)
			assert.NotEmpty(t, response.Title)
			assert.NotEmpty(t, response.Message)

			// The domain constant stays reachable for errors.Is checks.
			assert.ErrorIs(t, mapped, tt.err)
		})
	}
}

func TestBusinessErrorPassesUnknownErrorsThrough(t *testing.T) {
	t.Parallel()

	unknown := errors.New("disk on fire")

	assert.Equal(t, unknown, BusinessError(unknown, "Task"))
}

func TestResponseErrorIsMessage(t *testing.T) {
	t.Parallel()

	response := Response{Message: "The task is gone."}

	assert.Equal(t, "The task is gone.", response.Error())
}
