package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// TokenRecord is a token the system has alerted on.
type TokenRecord struct {
	Address          string
	Name             string
	Symbol           string
	ContractCreation *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TokenRepository persists alerted tokens.
type TokenRepository struct {
	db *PostgresDB
}

// NewTokenRepository creates a token repository.
func NewTokenRepository(db *PostgresDB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Upsert inserts the token or refreshes its metadata. Re-alerting on a known
// token must not fail on the unique address constraint.
func (r *TokenRepository) Upsert(ctx context.Context, token *TokenRecord) error {
	query := `
		INSERT INTO tokens (address, name, symbol, contract_creation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (address) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), tokens.name),
			symbol = COALESCE(NULLIF(EXCLUDED.symbol, ''), tokens.symbol),
			contract_creation = COALESCE(EXCLUDED.contract_creation, tokens.contract_creation),
			updated_at = NOW()
	`

	_, err := r.db.Pool().Exec(ctx, query, token.Address, token.Name, token.Symbol, token.ContractCreation)
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", token.Address, err)
	}
	return nil
}

// GetByAddress returns a stored token, or nil when unknown.
func (r *TokenRepository) GetByAddress(ctx context.Context, address string) (*TokenRecord, error) {
	query := `
		SELECT address, name, symbol, contract_creation, created_at, updated_at
		FROM tokens
		WHERE address = $1
	`

	var token TokenRecord
	err := r.db.Pool().QueryRow(ctx, query, address).Scan(
		&token.Address,
		&token.Name,
		&token.Symbol,
		&token.ContractCreation,
		&token.CreatedAt,
		&token.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token %s: %w", address, err)
	}
	return &token, nil
}
