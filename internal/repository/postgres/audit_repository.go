package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andresuchdata/bakecast/internal/domain"
)

// InsertAuditEvent appends one event. Inside WithinTx it commits or rolls
// back together with the change it describes.
func (s *Store) InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_events (store_id, action, resource_type, resource_date, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`

	err = s.q.QueryRowxContext(ctx, query,
		event.StoreID,
		event.Action,
		event.ResourceType,
		event.ResourceDate,
		event.Actor,
		payload,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the newest events for a store first.
func (s *Store) ListAuditEvents(ctx context.Context, storeID int64, limit int) ([]domain.AuditEvent, error) {
	query := `
		SELECT id, store_id, action, resource_type, resource_date, actor, details, created_at
		FROM audit_events
		WHERE store_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.q.QueryxContext(ctx, query, storeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := []domain.AuditEvent{}
	for rows.Next() {
		var (
			ev      domain.AuditEvent
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.StoreID, &ev.Action, &ev.ResourceType, &ev.ResourceDate, &ev.Actor, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}
	return events, nil
}
