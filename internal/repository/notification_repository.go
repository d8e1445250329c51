package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

// NotificationRepository stores broadcasts until they expire.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	// ListActive returns unexpired notifications addressed to recipient,
	// newest first. The audience match happens before the limit applies.
	ListActive(ctx context.Context, recipient domain.Actor, now time.Time, limit int) ([]domain.Notification, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository returns a Postgres-backed implementation.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (id, message, severity, target_type, target_value, target_company_id,
            company_id, sender_id, created_at, expires_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.pool.Exec(ctx, query,
		n.ID,
		n.Message,
		n.Severity,
		n.Target.Type,
		n.Target.Value,
		n.Target.CompanyID,
		n.CompanyID,
		n.SenderID,
		n.CreatedAt,
		n.ExpiresAt,
	)
	return err
}

func (r *notificationRepository) ListActive(ctx context.Context, recipient domain.Actor, now time.Time, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `
        SELECT id, message, severity, target_type, target_value, target_company_id, company_id,
               sender_id, created_at, expires_at
        FROM notifications
        WHERE expires_at > $1
          AND (
                target_type = 'all'
             OR (target_type = 'company' AND target_value = $2)
             OR (target_type = 'role' AND target_value = $3 AND (target_company_id = '' OR target_company_id = $2))
             OR (target_type = 'specific' AND target_value = $4)
          )
        ORDER BY created_at DESC
        LIMIT $5`
	rows, err := r.pool.Query(ctx, query, now, recipient.CompanyID, recipient.Role.String(), recipient.UserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.Message,
			&n.Severity,
			&n.Target.Type,
			&n.Target.Value,
			&n.Target.CompanyID,
			&n.CompanyID,
			&n.SenderID,
			&n.CreatedAt,
			&n.ExpiresAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
