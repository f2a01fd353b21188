package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/homeledger/homeledger/pkg/ledger"
)

// PayScheduleStore manages the singleton biweekly pay anchor.
type PayScheduleStore struct {
	conn *Connection
}

// NewPayScheduleStore creates a new PayScheduleStore instance.
func NewPayScheduleStore(conn *Connection) *PayScheduleStore {
	return &PayScheduleStore{conn: conn}
}

// Set upserts the anchor date. The frequency is fixed to biweekly.
func (s *PayScheduleStore) Set(ctx context.Context, anchor time.Time) error {
	_, err := s.conn.GetDB().ExecContext(ctx, `
		INSERT INTO pay_schedule (id, frequency, anchor_date)
		VALUES (1, 'biweekly', ?)
		ON CONFLICT(id) DO UPDATE SET anchor_date = excluded.anchor_date
	`, anchor.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("failed to set pay schedule: %w", err)
	}
	return nil
}

// Get reads the anchor. Returns nil, nil when no schedule has been set.
func (s *PayScheduleStore) Get(ctx context.Context) (*ledger.PaySchedule, error) {
	var anchorStr string
	err := s.conn.GetDB().QueryRowContext(ctx,
		`SELECT anchor_date FROM pay_schedule WHERE id = 1`).Scan(&anchorStr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pay schedule: %w", err)
	}

	anchor, err := time.Parse(dateLayout, anchorStr)
	if err != nil {
		return nil, fmt.Errorf("bad anchor date %q: %w", anchorStr, err)
	}
	return &ledger.PaySchedule{Anchor: anchor}, nil
}
