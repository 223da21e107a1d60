package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stealth-alerts/internal/types"
)

// Delivery statuses.
const (
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
)

// DeliveryRecord is one recipient's copy of a sent alert, together with the
// immutable transaction snapshot that produced it. The snapshot is what the
// refresh flow re-renders from.
type DeliveryRecord struct {
	ID           uuid.UUID
	AlertID      int64
	TokenAddress string
	TokenSymbol  string
	Transactions []types.TransactionRecord
	MessageID    int
	ChatID       int64
	Status       string
	CreatedAt    time.Time
}

// DeliveryRepository persists alert deliveries.
type DeliveryRepository struct {
	db *PostgresDB
}

// NewDeliveryRepository creates a delivery repository.
func NewDeliveryRepository(db *PostgresDB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Insert stores one delivery outcome.
func (r *DeliveryRepository) Insert(ctx context.Context, rec *DeliveryRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	txns, err := json.Marshal(rec.Transactions)
	if err != nil {
		return fmt.Errorf("marshal transactions snapshot: %w", err)
	}

	query := `
		INSERT INTO alert_messages (id, alert_id, token_address, token_symbol, transactions, message_id, chat_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`

	_, err = r.db.Pool().Exec(ctx, query,
		rec.ID, rec.AlertID, rec.TokenAddress, rec.TokenSymbol, txns, rec.MessageID, rec.ChatID, rec.Status)
	if err != nil {
		return fmt.Errorf("insert alert message: %w", err)
	}
	return nil
}

// GetByMessage returns the delivery behind a Telegram message, or nil when
// the message is not one of ours.
func (r *DeliveryRepository) GetByMessage(ctx context.Context, chatID int64, messageID int) (*DeliveryRecord, error) {
	query := `
		SELECT id, alert_id, token_address, token_symbol, transactions, message_id, chat_id, status, created_at
		FROM alert_messages
		WHERE chat_id = $1 AND message_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var rec DeliveryRecord
	var txns []byte
	err := r.db.Pool().QueryRow(ctx, query, chatID, messageID).Scan(
		&rec.ID,
		&rec.AlertID,
		&rec.TokenAddress,
		&rec.TokenSymbol,
		&txns,
		&rec.MessageID,
		&rec.ChatID,
		&rec.Status,
		&rec.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert message %d/%d: %w", chatID, messageID, err)
	}

	if err := json.Unmarshal(txns, &rec.Transactions); err != nil {
		return nil, fmt.Errorf("parse transactions snapshot: %w", err)
	}
	return &rec, nil
}
