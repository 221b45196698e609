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

// ScanRepository handles scan persistence
type ScanRepository struct {
	pool *pgxpool.Pool
}

// NewScanRepository creates a new scan repository
func NewScanRepository(pool *pgxpool.Pool) *ScanRepository {
	return &ScanRepository{pool: pool}
}

const scanColumns = `
	id, channel, sender_info, text, is_threat, risk, category, tactics,
	explanation, engine, highlighted, extracted_urls, extracted_emails,
	extracted_phones, api_key_id, feedback, feedback_comment, created_at, updated_at`

// Create inserts a new scan
func (r *ScanRepository) Create(ctx context.Context, s *models.ScanRecord) error {
	query := `
		INSERT INTO scans (` + scanColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, string(s.Channel), textOrNull(s.SenderInfo), s.Text,
		s.Verdict.IsThreat, s.Verdict.Risk, string(s.Verdict.Category), tacticsToStrings(s.Verdict.Tactics),
		s.Verdict.Explanation, string(s.Engine), s.Highlighted,
		nonNil(s.ExtractedURLs), nonNil(s.ExtractedEmails), nonNil(s.ExtractedPhones),
		uuidToNullUUID(s.APIKeyID), textOrNull(string(s.Feedback)), textOrNull(s.FeedbackComment),
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}
	return nil
}

// Get retrieves a scan by ID
func (r *ScanRepository) Get(ctx context.Context, id uuid.UUID) (*models.ScanRecord, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = $1`
	s, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// List retrieves a page of scans, newest first
func (r *ScanRepository) List(ctx context.Context, filter models.ScanFilter) ([]*models.ScanRecord, int, error) {
	filter.Normalize()

	where := `WHERE ($1 = FALSE OR is_threat) AND ($2 = '' OR category = $2)`
	args := []any{filter.ThreatsOnly, string(filter.Category)}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scans `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count scans: %w", err)
	}

	query := `SELECT ` + scanColumns + ` FROM scans ` + where + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	items := make([]*models.ScanRecord, 0, filter.Limit)
	for rows.Next() {
		s, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate scans: %w", err)
	}

	return items, total, nil
}

// UpdateFeedback records user feedback on a scan
func (r *ScanRepository) UpdateFeedback(ctx context.Context, id uuid.UUID, feedback models.ScanFeedback, comment string) error {
	query := `
		UPDATE scans
		SET feedback = $2, feedback_comment = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, string(feedback), textOrNull(comment), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update scan feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

// DeleteAll removes every scan
func (r *ScanRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM scans`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scans: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.Row) (*models.ScanRecord, error) {
	var (
		s                           models.ScanRecord
		channel, category, engine   string
		senderInfo, feedback, fbMsg pgtype.Text
		tactics                     []string
		apiKeyID                    pgtype.UUID
	)

	err := row.Scan(
		&s.ID, &channel, &senderInfo, &s.Text, &s.Verdict.IsThreat, &s.Verdict.Risk, &category, &tactics,
		&s.Verdict.Explanation, &engine, &s.Highlighted, &s.ExtractedURLs, &s.ExtractedEmails,
		&s.ExtractedPhones, &apiKeyID, &feedback, &fbMsg, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Channel = models.Channel(channel)
	s.SenderInfo = nullTextToString(senderInfo)
	s.Verdict.Category = models.ScamCategory(category)
	s.Verdict.Tactics = stringsToTactics(tactics)
	s.Engine = models.ScanEngine(engine)
	s.APIKeyID = nullUUIDToPtr(apiKeyID)
	s.Feedback = models.ScanFeedback(nullTextToString(feedback))
	s.FeedbackComment = nullTextToString(fbMsg)

	return &s, nil
}
