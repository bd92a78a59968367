package postgres_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"exposureshield/pkg/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStore_Feedback(t *testing.T) {
	t.Parallel()

	pgSQL, cleanup := setupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()

	t.Run("store and read back", func(t *testing.T) {
		t.Parallel()

		before := time.Now().Add(-time.Minute)
		stored, err := pgSQL.StoreFeedback(ctx, domain.Feedback{
			Email:      "visitor@example.org",
			Message:    "the scan said I was clean, thanks",
			ClientIP:   "203.0.113.7",
			VerifiedBy: domain.VerificationTurnstile,
		})
		require.NoError(t, err)
		require.NotEqual(t, domain.FeedbackID{}, stored.ID)
		require.True(t, stored.CreatedAt.After(before))

		got, err := pgSQL.FeedbackByID(ctx, stored.ID)
		require.NoError(t, err)
		require.Equal(t, stored.ID, got.ID)
		require.Equal(t, "visitor@example.org", got.Email)
		require.Equal(t, "203.0.113.7", got.ClientIP)
		require.Equal(t, domain.VerificationTurnstile, got.VerifiedBy)
	})

	t.Run("empty client ip is stored as null", func(t *testing.T) {
		t.Parallel()

		stored, err := pgSQL.StoreFeedback(ctx, domain.Feedback{
			Email:      "a@example.org",
			Message:    "hi",
			VerifiedBy: domain.VerificationChallenge,
		})
		require.NoError(t, err)

		var ip sql.NullString
		require.NoError(t, pgSQL.DB.QueryRowContext(ctx,
			`SELECT client_ip FROM feedback WHERE id = $1`, uuid.UUID(stored.ID)).Scan(&ip))
		require.False(t, ip.Valid)
		require.Empty(t, stored.ClientIP)
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		got, err := pgSQL.FeedbackByID(ctx, domain.FeedbackID(uuid.New()))
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestStore_StoreScanLog(t *testing.T) {
	pgSQL, cleanup := setupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	hash := strings.Repeat("a", 64)

	for _, status := range []domain.VerdictStatus{domain.VerdictExposed, domain.VerdictClear, domain.VerdictInconclusive} {
		require.NoError(t, pgSQL.StoreScanLog(ctx, domain.ScanLog{
			EmailHash: hash,
			Status:    status,
			ClientIP:  "unknown",
		}))
	}

	var count int
	require.NoError(t, pgSQL.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_logs WHERE email_hash = $1`, hash).Scan(&count))
	require.Equal(t, 3, count)

	var status string
	require.NoError(t, pgSQL.DB.QueryRowContext(ctx,
		`SELECT status FROM scan_logs ORDER BY id DESC LIMIT 1`).Scan(&status))
	require.Equal(t, string(domain.VerdictInconclusive), status)
}
