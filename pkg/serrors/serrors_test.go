package serrors_test

import (
	"errors"
	"fmt"
	"testing"

	"exposureshield/pkg/serrors"

	"github.com/stretchr/testify/require"
)

type upstreamError struct{ status int }

func (e *upstreamError) Error() string { return fmt.Sprintf("upstream returned %d", e.status) }

func TestKindsAreDistinct(t *testing.T) {
	kinds := []serrors.Kind{
		serrors.ErrNotFound,
		serrors.ErrBadRequest,
		serrors.ErrForbidden,
		serrors.ErrInternal,
		serrors.ErrTimeout,
		serrors.ErrUnavailable,
		serrors.ErrRateLimited,
		serrors.ErrMisconfigured,
	}
	seen := map[serrors.Kind]bool{}
	for _, k := range kinds {
		require.False(t, seen[k], "duplicate kind %v", k)
		seen[k] = true
	}

	require.Equal(t, serrors.NewKind("RATE_LIMITED"), serrors.ErrRateLimited)
}

func TestErrorString(t *testing.T) {
	cause := errors.New("connection reset")

	require.Equal(t, "challenge expired", serrors.With(serrors.ErrBadRequest, "challenge %s", "expired").Error())
	require.Equal(t, "directory lookup: connection reset",
		serrors.Wrap(serrors.ErrUnavailable, cause, "directory lookup").Error())
	require.Equal(t, "connection reset", serrors.Wrap(serrors.ErrUnavailable, cause, "").Error())
	require.Equal(t, "MISCONFIGURED", serrors.KindOnly(serrors.ErrMisconfigured).Error())
}

func TestIsAndAs(t *testing.T) {
	cause := &upstreamError{status: 429}
	err := fmt.Errorf("lookup: %w", serrors.Wrap(serrors.ErrRateLimited, cause, "directory"))

	require.ErrorIs(t, err, serrors.ErrRateLimited)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, serrors.ErrMisconfigured)

	var k serrors.Kind
	require.ErrorAs(t, err, &k)
	require.Equal(t, serrors.ErrRateLimited, k)

	var ue *upstreamError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, 429, ue.status)
}

func TestKindOfAndMessageOf(t *testing.T) {
	err := fmt.Errorf("submit: %w", serrors.With(serrors.ErrBadRequest, "wrong answer"))

	require.Equal(t, serrors.ErrBadRequest, serrors.KindOf(err))
	require.Equal(t, "wrong answer", serrors.MessageOf(err, "fallback"))

	plain := errors.New("boom")
	require.Nil(t, serrors.KindOf(plain))
	require.Equal(t, "fallback", serrors.MessageOf(plain, "fallback"))
	require.Equal(t, "fallback", serrors.MessageOf(serrors.KindOnly(serrors.ErrInternal), "fallback"))
}

func TestAccessors(t *testing.T) {
	cause := errors.New("401")
	e := serrors.Wrap(serrors.ErrMisconfigured, cause, "directory rejected api key")

	require.Equal(t, serrors.ErrMisconfigured, e.Kind())
	require.Equal(t, "directory rejected api key", e.Message())
	require.Equal(t, cause, e.Cause())
	require.Equal(t, cause, errors.Unwrap(e))
}
