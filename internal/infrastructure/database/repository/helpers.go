package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"scamshield/internal/domain/models"
	"scamshield/internal/domain/services"
)

// notFound maps pgx.ErrNoRows onto the service sentinel
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return services.ErrNotFound
	}
	return err
}

// String slice conversion helpers

func tacticsToStrings(t models.MatchSet) []string {
	if t == nil {
		return []string{}
	}
	return t.Strings()
}

func stringsToTactics(strs []string) models.MatchSet {
	result := make(models.MatchSet, len(strs))
	for i, s := range strs {
		result[i] = models.Tactic(s)
	}
	return result
}

func permissionsToStrings(perms []models.Permission) []string {
	result := make([]string, len(perms))
	for i, p := range perms {
		result[i] = string(p)
	}
	return result
}

func stringsToPermissions(strs []string) []models.Permission {
	result := make([]models.Permission, len(strs))
	for i, s := range strs {
		result[i] = models.Permission(s)
	}
	return result
}

func eventsToStrings(events []models.WebhookEventType) []string {
	result := make([]string, len(events))
	for i, e := range events {
		result[i] = string(e)
	}
	return result
}

func stringsToEvents(strs []string) []models.WebhookEventType {
	result := make([]models.WebhookEventType, len(strs))
	for i, s := range strs {
		result[i] = models.WebhookEventType(s)
	}
	return result
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Text conversion helpers

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func nullTextToString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// Timestamp conversion helpers

func timeToTimestamptzPtr(t *time.Time) pgtype.Timestamptz {
	if t == nil || t.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timestamptzToTimePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// UUID conversion helpers

func uuidToNullUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil || *id == uuid.Nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func nullUUIDToPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}
