package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/stealth-alerts/internal/config"
	"github.com/stealth-alerts/internal/types"
)

// ClickHouseDB wraps the ClickHouse connection used for the transaction
// archive. Archiving is best-effort; alerting never depends on it.
type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(cfg *config.ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     10,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying ClickHouse connection
func (db *ClickHouseDB) Conn() driver.Conn {
	return db.conn
}

// EnsureArchiveTable creates the archive table if it does not exist.
func (db *ClickHouseDB) EnsureArchiveTable(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS provider_transactions (
			fetched_at     DateTime,
			alert_id       Int64,
			txn_time       DateTime,
			wallet_address String,
			token_address  String,
			token_symbol   String,
			buy_price      Float64,
			txn_value      Float64,
			funding_source String
		) ENGINE = MergeTree()
		ORDER BY (token_address, txn_time)
	`
	return db.conn.Exec(ctx, ddl)
}

// ArchiveTransactions stores one fetched provider batch for later analysis.
func (db *ClickHouseDB) ArchiveTransactions(ctx context.Context, alertID int64, fetchedAt time.Time, txns []types.TransactionRecord) error {
	if len(txns) == 0 {
		return nil
	}

	batch, err := db.conn.PrepareBatch(ctx, "INSERT INTO provider_transactions")
	if err != nil {
		return fmt.Errorf("prepare archive batch: %w", err)
	}

	for _, txn := range txns {
		ts, err := txn.Timestamp()
		if err != nil {
			continue
		}
		if err := batch.Append(
			fetchedAt,
			alertID,
			ts,
			txn.WalletAddress,
			txn.TokenAddress,
			txn.TokenSymbol,
			txn.BuyPrice,
			txn.Value,
			txn.FundingSource,
		); err != nil {
			return fmt.Errorf("append archive row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send archive batch: %w", err)
	}
	return nil
}
