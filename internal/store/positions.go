package store

import (
	"context"
	"time"

	"github.com/evafinance/evacore/internal/models"
)

// InsertPosition opens one paper position keyed by its signal event.
// Repeat entry for the same event is a no-op.
func (s *Store) InsertPosition(ctx context.Context, p models.PaperPosition) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_positions (
			signal_event_id, brand, tag, ticker,
			entry_date, entry_price, current_price, position_size, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8)
		ON CONFLICT (signal_event_id) DO NOTHING`,
		p.SignalEventID, p.Brand, p.Tag, p.Ticker,
		p.EntryDate, p.EntryPrice, p.PositionSize, models.PositionOpen)
	if err != nil {
		return false, classify("store.insert_position", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("store.insert_position", err)
	}
	return n > 0, nil
}

// OpenPositions returns all open positions.
func (s *Store) OpenPositions(ctx context.Context) ([]models.PaperPosition, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var rows []models.PaperPosition
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, signal_event_id, brand, tag, ticker,
		       entry_date, entry_price, current_price, position_size, status,
		       exit_date, exit_price, exit_reason, return_pct, return_dollar, days_held
		FROM paper_positions
		WHERE status = $1
		ORDER BY entry_date ASC`,
		models.PositionOpen)
	if err != nil {
		return nil, classify("store.open_positions", err)
	}
	return rows, nil
}

// UpdatePositionPrice refreshes an open position's mark and derived
// return figures.
func (s *Store) UpdatePositionPrice(ctx context.Context, id int64, price, returnPct, returnDollar float64, daysHeld int) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE paper_positions
		SET current_price = $2, return_pct = $3, return_dollar = $4, days_held = $5
		WHERE id = $1 AND status = $6`,
		id, price, returnPct, returnDollar, daysHeld, models.PositionOpen)
	if err != nil {
		return classify("store.update_position_price", err)
	}
	return nil
}

// ClosePosition transitions one open position to closed, setting all exit
// fields atomically with the status change.
func (s *Store) ClosePosition(ctx context.Context, id int64, exitDate time.Time, exitPrice float64, reason models.ExitReason, returnPct, returnDollar float64, daysHeld int) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE paper_positions
		SET status = $2, exit_date = $3, exit_price = $4, exit_reason = $5,
		    current_price = $4, return_pct = $6, return_dollar = $7, days_held = $8
		WHERE id = $1 AND status = $9`,
		id, models.PositionClosed, exitDate, exitPrice, reason, returnPct, returnDollar, daysHeld, models.PositionOpen)
	if err != nil {
		return false, classify("store.close_position", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("store.close_position", err)
	}
	return n > 0, nil
}
