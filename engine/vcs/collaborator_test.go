//go:build unit

package vcs

import (
	"errors"
	"testing"
	"time"

	"github.com/bountybase/engine/engine/retry"
	"github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRepo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		repo    string
		owner   string
		name    string
		wantErr bool
	}{
		{repo: "acme/widgets", owner: "acme", name: "widgets"},
		{repo: "acme/widgets/extra", owner: "acme", name: "widgets/extra"},
		{repo: "acme", wantErr: true},
		{repo: "/widgets", wantErr: true},
		{repo: "acme/", wantErr: true},
		{repo: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.repo, func(t *testing.T) {
			t.Parallel()

			owner, name, err := splitRepo(tt.repo)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestWrapErrorNil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, wrapError(nil))
}

func TestWrapErrorPassesThroughPlainErrors(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")

	assert.Equal(t, plain, wrapError(plain))
}

func TestWrapErrorConvertsRateLimit(t *testing.T) {
	t.Parallel()

	reset := time.Now().Add(90 * time.Second)
	err := wrapError(&github.RateLimitError{
		Rate: github.Rate{Reset: github.Timestamp{Time: reset}},
	})

	var rateErr *retry.RateLimitError
	require.ErrorAs(t, err, &rateErr)

	// The server wait lands close to the reset gap.
	assert.InDelta(t, (90 * time.Second).Seconds(), rateErr.RetryAfter.Seconds(), 5)
	assert.True(t, rateErr.Retryable())
}

func TestWrapErrorConvertsAbuseRateLimit(t *testing.T) {
	t.Parallel()

	after := 30 * time.Second
	err := wrapError(&github.AbuseRateLimitError{RetryAfter: &after})

	var rateErr *retry.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, after, rateErr.RetryAfter)
}

func TestWrapErrorAbuseWithoutRetryAfter(t *testing.T) {
	t.Parallel()

	err := wrapError(&github.AbuseRateLimitError{})

	var rateErr *retry.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Zero(t, rateErr.RetryAfter)
}
