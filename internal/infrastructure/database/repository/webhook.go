package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
)

// WebhookRepository handles webhook persistence
type WebhookRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

const webhookColumns = `
	id, name, url, secret, enabled, events, headers, retry_config,
	total_deliveries, success_deliveries, failed_deliveries,
	last_delivery_at, last_error_at, last_error, created_at, updated_at`

// Create inserts a new webhook
func (r *WebhookRepository) Create(ctx context.Context, w *models.Webhook) error {
	query := `
		INSERT INTO webhooks (
			id, name, url, secret, enabled, events, headers, retry_config, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.Name, w.URL, w.Secret, w.Enabled, eventsToStrings(w.Events),
		headersOrEmpty(w.Headers), w.RetryConfig, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

// Get retrieves a webhook by ID
func (r *WebhookRepository) Get(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	w, err := scanWebhook(r.pool.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

// List retrieves all webhooks, oldest first
func (r *WebhookRepository) List(ctx context.Context) ([]*models.Webhook, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+webhookColumns+` FROM webhooks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	webhooks := make([]*models.Webhook, 0)
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// Update writes configuration columns; delivery counters are left alone
func (r *WebhookRepository) Update(ctx context.Context, w *models.Webhook) error {
	query := `
		UPDATE webhooks SET
			name = $2, url = $3, secret = $4, enabled = $5, events = $6,
			headers = $7, retry_config = $8, updated_at = $9
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		w.ID, w.Name, w.URL, w.Secret, w.Enabled, eventsToStrings(w.Events),
		headersOrEmpty(w.Headers), w.RetryConfig, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

// Delete removes a webhook
func (r *WebhookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

// RecordDelivery updates the delivery counters for one finished delivery
func (r *WebhookRepository) RecordDelivery(ctx context.Context, id uuid.UUID, success bool, errMsg string, at time.Time) error {
	var query string
	args := []any{id, at}
	if success {
		query = `
			UPDATE webhooks SET
				total_deliveries = total_deliveries + 1,
				success_deliveries = success_deliveries + 1,
				last_delivery_at = $2
			WHERE id = $1`
	} else {
		query = `
			UPDATE webhooks SET
				total_deliveries = total_deliveries + 1,
				failed_deliveries = failed_deliveries + 1,
				last_error_at = $2,
				last_error = $3
			WHERE id = $1`
		args = append(args, errMsg)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to record webhook delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

func scanWebhook(row pgx.Row) (*models.Webhook, error) {
	var (
		w                       models.Webhook
		events                  []string
		lastDelivery, lastErrAt pgtype.Timestamptz
		lastError               pgtype.Text
	)

	err := row.Scan(
		&w.ID, &w.Name, &w.URL, &w.Secret, &w.Enabled, &events, &w.Headers, &w.RetryConfig,
		&w.TotalDeliveries, &w.SuccessDeliveries, &w.FailedDeliveries,
		&lastDelivery, &lastErrAt, &lastError, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.Events = stringsToEvents(events)
	w.LastDeliveryAt = timestamptzToTimePtr(lastDelivery)
	w.LastErrorAt = timestamptzToTimePtr(lastErrAt)
	w.LastError = nullTextToString(lastError)

	return &w, nil
}

func headersOrEmpty(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	return h
}
