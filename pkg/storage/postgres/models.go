package postgres

import (
	"database/sql"
	"time"

	"exposureshield/pkg/domain"

	"github.com/google/uuid"
)

type PgFeedback struct {
	ID uuid.UUID `db:"id" goqu:"skipinsert"`

	Email      string         `db:"email"`
	Message    string         `db:"message"`
	ClientIP   sql.NullString `db:"client_ip"`
	VerifiedBy string         `db:"verified_by"`

	CreatedAt time.Time `db:"created_at" goqu:"skipinsert"`
}

func (p *PgFeedback) ToDomain() *domain.Feedback {
	return &domain.Feedback{
		ID:         domain.FeedbackID(p.ID),
		Email:      p.Email,
		Message:    p.Message,
		ClientIP:   p.ClientIP.String,
		VerifiedBy: domain.Verification(p.VerifiedBy),
		CreatedAt:  p.CreatedAt,
	}
}

func (p *PgFeedback) FromDomain(f domain.Feedback) {
	*p = PgFeedback{
		ID:      uuid.UUID(f.ID),
		Email:   f.Email,
		Message: f.Message,
		ClientIP: sql.NullString{
			String: f.ClientIP,
			Valid:  f.ClientIP != "",
		},
		VerifiedBy: string(f.VerifiedBy),
		CreatedAt:  f.CreatedAt,
	}
}

type PgScanLog struct {
	ID        int64          `db:"id" goqu:"skipinsert"`
	EmailHash string         `db:"email_hash"`
	Status    string         `db:"status"`
	ClientIP  sql.NullString `db:"client_ip"`
	CreatedAt time.Time      `db:"created_at" goqu:"skipinsert"`
}

func (p *PgScanLog) FromDomain(l domain.ScanLog) {
	*p = PgScanLog{
		EmailHash: l.EmailHash,
		Status:    string(l.Status),
		ClientIP: sql.NullString{
			String: l.ClientIP,
			Valid:  l.ClientIP != "",
		},
	}
}
