package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

const uniqueViolation = "23505"

const deliveryColumns = `
		id, message_id, subscription_id, endpoint, status,
		retry_count, max_retries, next_retry_at, delivered_at,
		response_code, error_message, created_at, updated_at`

type pgMessageRepository struct {
	pool *pgxpool.Pool
}

// NewPgMessageRepository returns a MessageRepository backed by PostgreSQL.
func NewPgMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &pgMessageRepository{pool: pool}
}

func (r *pgMessageRepository) CreateMessage(ctx context.Context, msg *domain.Message, deliveries []*domain.Delivery) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, topic_arn, subject, body, attributes, idempotency_key, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		msg.ID, msg.TopicARN, msg.Subject, msg.Body, msg.Attributes, msg.IdempotencyKey, msg.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert message: %w", err)
	}

	for _, d := range deliveries {
		_, err = tx.Exec(ctx, `
			INSERT INTO deliveries
				(id, message_id, subscription_id, endpoint, status,
				 retry_count, max_retries, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			d.ID, d.MessageID, d.SubscriptionID, d.Endpoint, d.Status,
			d.RetryCount, d.MaxRetries, d.CreatedAt, d.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

func (r *pgMessageRepository) GetMessage(ctx context.Context, id string) (*domain.Message, []*domain.Delivery, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, topic_arn, subject, body, attributes, idempotency_key, created_at
		FROM messages WHERE id = $1`, id)

	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get message: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT`+deliveryColumns+`
		FROM deliveries WHERE message_id = $1 ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("get message deliveries: %w", err)
	}
	defer rows.Close()

	deliveries, err := scanDeliveries(rows)
	return msg, deliveries, err
}

func (r *pgMessageRepository) GetMessageByIdempotencyKey(ctx context.Context, key string) (*domain.Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, topic_arn, subject, body, attributes, idempotency_key, created_at
		FROM messages WHERE idempotency_key = $1`, key)

	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return msg, err
}

func (r *pgMessageRepository) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+deliveryColumns+`
		FROM deliveries WHERE id = $1`, id)

	d, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

func (r *pgMessageRepository) ListDeliveries(ctx context.Context, f domain.DeliveryFilter) ([]*domain.Delivery, int, error) {
	where, args := buildListWhere(f)
	offset := (f.Page - 1) * f.Limit

	// Count total matching rows for pagination metadata.
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM deliveries"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deliveries: %w", err)
	}

	// Append pagination args after the WHERE args.
	args = append(args, f.Limit, offset)
	query := fmt.Sprintf(`SELECT%s
		FROM deliveries%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, deliveryColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	deliveries, err := scanDeliveries(rows)
	return deliveries, total, err
}

func (r *pgMessageRepository) UpdateStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE deliveries SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

func (r *pgMessageRepository) MarkDelivered(ctx context.Context, id string, responseCode int, deliveredAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = 'delivered', response_code = $1, delivered_at = $2,
		    next_retry_at = NULL, error_message = NULL, updated_at = NOW()
		WHERE id = $3`, responseCode, deliveredAt, id)
	return err
}

func (r *pgMessageRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = 'failed', error_message = $1, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $2`, errMsg, id)
	return err
}

func (r *pgMessageRepository) ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = 'retrying', retry_count = $1, next_retry_at = $2,
		    error_message = $3, updated_at = NOW()
		WHERE id = $4`, retryCount, nextRetry, errMsg, id)
	return err
}

func (r *pgMessageRepository) FindDueRetries(ctx context.Context) ([]*domain.Delivery, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+deliveryColumns+`
		FROM deliveries
		WHERE status = 'retrying'
		  AND next_retry_at <= NOW()
		ORDER BY next_retry_at ASC
		LIMIT 500`)
	if err != nil {
		return nil, fmt.Errorf("find due retries: %w", err)
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

func (r *pgMessageRepository) FindStalePending(ctx context.Context, pendingBefore, stuckBefore time.Time) ([]*domain.Delivery, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+deliveryColumns+`
		FROM deliveries
		WHERE (status = 'pending' AND created_at < $1)
		   OR (status IN ('queued', 'in_flight') AND updated_at < $2)
		ORDER BY created_at ASC
		LIMIT 500`, pendingBefore, stuckBefore)
	if err != nil {
		return nil, fmt.Errorf("find stale pending: %w", err)
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

func (r *pgMessageRepository) ResetOrphaned(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = 'pending', updated_at = NOW()
		WHERE status IN ('queued', 'in_flight')`)
	if err != nil {
		return 0, fmt.Errorf("reset orphaned deliveries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---- helpers ----

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(&m.ID, &m.TopicARN, &m.Subject, &m.Body, &m.Attributes, &m.IdempotencyKey, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// scanDelivery reads a single delivery row from any pgx row type.
func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	err := row.Scan(
		&d.ID, &d.MessageID, &d.SubscriptionID, &d.Endpoint, &d.Status,
		&d.RetryCount, &d.MaxRetries, &d.NextRetryAt, &d.DeliveredAt,
		&d.ResponseCode, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDeliveries(rows pgx.Rows) ([]*domain.Delivery, error) {
	var result []*domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// buildListWhere builds a parameterised WHERE clause from a DeliveryFilter.
func buildListWhere(f domain.DeliveryFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.MessageID != nil {
		add("message_id = $%d", *f.MessageID)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
