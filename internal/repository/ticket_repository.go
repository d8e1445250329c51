package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

// ErrVersionConflict is returned by Update when the row changed since it was read.
var ErrVersionConflict = errors.New("ticket was modified concurrently")

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	CompanyID      *string
	RequesterID    *string
	TechnicianID   *string
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	Categories     []domain.TicketCategory
	ReviewStatuses []domain.ReviewStatus
	SearchTerm     *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes every mutable column if ticket.Version still matches the
	// stored row, then increments ticket.Version.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	AppendComment(ctx context.Context, comment *domain.Comment) error
	AppendWorkLog(ctx context.Context, entry *domain.WorkLogEntry) error
	// CountActiveByTechnician returns Assigned/In Progress ticket counts per
	// technician for tickets of companyID.
	CountActiveByTechnician(ctx context.Context, companyID string) (map[string]int, error)
	Stats(ctx context.Context, filter TicketFilter, now time.Time) (*domain.TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, company_id, requester_id, technician_id, title, description,
       category, priority, status, review_status, sla_due_at, sla_breached, rating, feedback,
       review_notes, resolved_at, closed_at, version, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, external_key, company_id, requester_id, technician_id, title, description,
            category, priority, status, review_status, sla_due_at, sla_breached, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	if ticket.Version == 0 {
		ticket.Version = 1
	}
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.ExternalKey,
		ticket.CompanyID,
		ticket.RequesterID,
		ticket.TechnicianID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.ReviewStatus,
		ticket.SLADueAt,
		ticket.SLABreached,
		ticket.Version,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return err
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET technician_id=$1, title=$2, description=$3, category=$4, priority=$5,
            status=$6, review_status=$7, sla_breached=$8, rating=$9, feedback=$10, review_notes=$11,
            resolved_at=$12, closed_at=$13, updated_at=$14, version=version+1
        WHERE id=$15 AND version=$16`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.TechnicianID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.ReviewStatus,
		ticket.SLABreached,
		ticket.Rating,
		ticket.Feedback,
		ticket.ReviewNotes,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.UpdatedAt,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return ErrVersionConflict
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if ticket.Comments, err = r.listComments(ctx, id); err != nil {
		return nil, err
	}
	if ticket.WorkLog, err = r.listWorkLog(ctx, id); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) listComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, ticket_id, author_id, body, created_at
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY seq ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *ticketRepository) listWorkLog(ctx context.Context, ticketID string) ([]domain.WorkLogEntry, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, ticket_id, technician_id, note, created_at
        FROM ticket_work_logs WHERE ticket_id=$1 ORDER BY seq ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []domain.WorkLogEntry
	for rows.Next() {
		var w domain.WorkLogEntry
		if err := rows.Scan(&w.ID, &w.TicketID, &w.TechnicianID, &w.Note, &w.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func (r *ticketRepository) AppendComment(ctx context.Context, comment *domain.Comment) error {
	return r.appendEntry(ctx, comment.TicketID, comment.CreatedAt,
		`INSERT INTO ticket_comments (id, ticket_id, author_id, body, created_at) VALUES ($1,$2,$3,$4,$5)`,
		comment.ID, comment.TicketID, comment.AuthorID, comment.Text, comment.CreatedAt)
}

func (r *ticketRepository) AppendWorkLog(ctx context.Context, entry *domain.WorkLogEntry) error {
	return r.appendEntry(ctx, entry.TicketID, entry.CreatedAt,
		`INSERT INTO ticket_work_logs (id, ticket_id, technician_id, note, created_at) VALUES ($1,$2,$3,$4,$5)`,
		entry.ID, entry.TicketID, entry.TechnicianID, entry.Note, entry.CreatedAt)
}

// appendEntry inserts into a child collection and touches the parent ticket in
// one transaction. Appends do not bump the version: they never conflict with
// status writes.
func (r *ticketRepository) appendEntry(ctx context.Context, ticketID string, at time.Time, insert string, args ...any) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, `UPDATE tickets SET updated_at=$1 WHERE id=$2`, at, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	if _, err := tx.Exec(ctx, insert, args...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountActiveByTechnician(ctx context.Context, companyID string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT technician_id, COUNT(*)
        FROM tickets
        WHERE company_id=$1 AND technician_id IS NOT NULL AND status IN ($2,$3)
        GROUP BY technician_id`,
		companyID, domain.TicketStatusAssigned, domain.TicketStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			technicianID string
			n            int
		)
		if err := rows.Scan(&technicianID, &n); err != nil {
			return nil, err
		}
		counts[technicianID] = n
	}
	return counts, rows.Err()
}

func (r *ticketRepository) Stats(ctx context.Context, filter TicketFilter, now time.Time) (*domain.TicketStats, error) {
	where, args := buildTicketWhere(filter)
	args = append(args, now, domain.TicketStatusResolved, domain.TicketStatusClosed)
	nowArg := len(args) - 2
	query := fmt.Sprintf(`
        SELECT status,
               COUNT(*),
               COUNT(*) FILTER (WHERE status NOT IN ($%[2]d,$%[3]d) AND sla_due_at <= $%[1]d),
               COUNT(*) FILTER (WHERE status IN ($%[2]d,$%[3]d) AND sla_breached),
               COALESCE(SUM(rating), 0),
               COUNT(rating)
        FROM tickets WHERE %[4]s
        GROUP BY status`, nowArg, nowArg+1, nowArg+2, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.TicketStats{ByStatus: make(map[domain.TicketStatus]int)}
	var ratingSum, ratingCount int
	for rows.Next() {
		var status domain.TicketStatus
		var total, openBreached, resolvedBreached, sum, count int
		if err := rows.Scan(&status, &total, &openBreached, &resolvedBreached, &sum, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = total
		stats.Total += total
		stats.OpenBreached += openBreached
		stats.ResolvedBreached += resolvedBreached
		ratingSum += sum
		ratingCount += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if ratingCount > 0 {
		avg := float64(ratingSum) / float64(ratingCount)
		stats.AverageRating = &avg
	}
	return stats, nil
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	eq := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		clauses = append(clauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	in := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
	}

	eq("company_id", filter.CompanyID)
	eq("requester_id", filter.RequesterID)
	eq("technician_id", filter.TechnicianID)
	in("status", stringsOf(filter.Statuses))
	in("priority", stringsOf(filter.Priorities))
	in("category", stringsOf(filter.Categories))
	in("review_status", stringsOf(filter.ReviewStatuses))

	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	return strings.Join(clauses, " AND "), args
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.CompanyID,
		&ticket.RequesterID,
		&ticket.TechnicianID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.ReviewStatus,
		&ticket.SLADueAt,
		&ticket.SLABreached,
		&ticket.Rating,
		&ticket.Feedback,
		&ticket.ReviewNotes,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
