package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// SaveAccount replaces the whole account record inside one transaction,
// which is the single-write contract the trade executor relies on.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	email            TEXT NOT NULL UNIQUE,
	balance          NUMERIC NOT NULL CHECK (balance >= 0),
	starting_balance NUMERIC NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	account_id    TEXT NOT NULL REFERENCES accounts(id),
	instrument_id BIGINT NOT NULL,
	symbol        TEXT NOT NULL,
	name          TEXT NOT NULL,
	quantity      BIGINT NOT NULL CHECK (quantity > 0),
	average_cost  NUMERIC NOT NULL,
	last_price    NUMERIC NOT NULL,
	PRIMARY KEY (account_id, instrument_id)
);

CREATE TABLE IF NOT EXISTS transactions (
	id            TEXT PRIMARY KEY,
	account_id    TEXT NOT NULL REFERENCES accounts(id),
	instrument_id BIGINT NOT NULL,
	symbol        TEXT NOT NULL,
	name          TEXT NOT NULL,
	quantity      BIGINT NOT NULL,
	price         NUMERIC NOT NULL,
	total         NUMERIC NOT NULL,
	kind          TEXT NOT NULL,
	timestamp     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS transactions_account_ts
	ON transactions (account_id, timestamp);

CREATE TABLE IF NOT EXISTS watchlist (
	account_id    TEXT NOT NULL REFERENCES accounts(id),
	instrument_id BIGINT NOT NULL,
	PRIMARY KEY (account_id, instrument_id)
);
`

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, name, email, balance, starting_balance, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6)`,
		a.ID, a.Name, a.Email,
		a.Balance.String(), a.StartingBalance.String(),
		a.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation on email
		return ErrDuplicateEmail
	}
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.getAccount(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.getAccount(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) getAccount(ctx context.Context, where string, arg any) (*model.Account, error) {
	var a model.Account
	var balance, starting string

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, balance::TEXT, starting_balance::TEXT, created_at
		 FROM accounts `+where, arg).
		Scan(&a.ID, &a.Name, &a.Email, &balance, &starting, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	a.Balance, _ = decimal.NewFromString(balance)
	a.StartingBalance, _ = decimal.NewFromString(starting)

	if err := s.loadHoldings(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) loadHoldings(ctx context.Context, a *model.Account) error {
	rows, err := s.pool.Query(ctx,
		`SELECT instrument_id, symbol, name, quantity,
		        average_cost::TEXT, last_price::TEXT
		 FROM positions WHERE account_id = $1 ORDER BY instrument_id`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Position
		var avg, last string
		if err := rows.Scan(&p.InstrumentID, &p.Symbol, &p.Name, &p.Quantity, &avg, &last); err != nil {
			return err
		}
		p.AverageCost, _ = decimal.NewFromString(avg)
		p.LastPrice, _ = decimal.NewFromString(last)
		a.Positions = append(a.Positions, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	txRows, err := s.pool.Query(ctx,
		`SELECT id, instrument_id, symbol, name, quantity,
		        price::TEXT, total::TEXT, kind, timestamp
		 FROM transactions WHERE account_id = $1 ORDER BY timestamp, id`, a.ID)
	if err != nil {
		return err
	}
	defer txRows.Close()

	for txRows.Next() {
		var tx model.Transaction
		var price, total, kind string
		if err := txRows.Scan(&tx.ID, &tx.InstrumentID, &tx.Symbol, &tx.Name,
			&tx.Quantity, &price, &total, &kind, &tx.Timestamp); err != nil {
			return err
		}
		tx.Price, _ = decimal.NewFromString(price)
		tx.Total, _ = decimal.NewFromString(total)
		tx.Kind = model.TradeKind(kind)
		a.Transactions = append(a.Transactions, tx)
	}
	if err := txRows.Err(); err != nil {
		return err
	}

	wlRows, err := s.pool.Query(ctx,
		`SELECT instrument_id FROM watchlist WHERE account_id = $1 ORDER BY instrument_id`, a.ID)
	if err != nil {
		return err
	}
	defer wlRows.Close()

	for wlRows.Next() {
		var id int64
		if err := wlRows.Scan(&id); err != nil {
			return err
		}
		a.Watchlist = append(a.Watchlist, id)
	}
	return wlRows.Err()
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, balance::TEXT, starting_balance::TEXT, created_at
		 FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		var balance, starting string
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &balance, &starting, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Balance, _ = decimal.NewFromString(balance)
		a.StartingBalance, _ = decimal.NewFromString(starting)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SaveAccount replaces the persisted record in one transaction: the cash
// balance is updated, positions and watchlist are rewritten, and any new
// transactions are appended (existing log rows are never touched).
func (s *PostgresStore) SaveAccount(ctx context.Context, a *model.Account) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $2::NUMERIC WHERE id = $1`,
		a.ID, a.Balance.String())
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM positions WHERE account_id = $1`, a.ID); err != nil {
		return fmt.Errorf("save positions: %w", err)
	}
	for _, p := range a.Positions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO positions (account_id, instrument_id, symbol, name, quantity, average_cost, last_price)
			 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC)`,
			a.ID, p.InstrumentID, p.Symbol, p.Name, p.Quantity,
			p.AverageCost.String(), p.LastPrice.String()); err != nil {
			return fmt.Errorf("save positions: %w", err)
		}
	}

	for _, t := range a.Transactions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO transactions (id, account_id, instrument_id, symbol, name, quantity, price, total, kind, timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9, $10)
			 ON CONFLICT (id) DO NOTHING`,
			t.ID, a.ID, t.InstrumentID, t.Symbol, t.Name, t.Quantity,
			t.Price.String(), t.Total.String(), string(t.Kind), t.Timestamp); err != nil {
			return fmt.Errorf("save transactions: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM watchlist WHERE account_id = $1`, a.ID); err != nil {
		return fmt.Errorf("save watchlist: %w", err)
	}
	for _, id := range a.Watchlist {
		if _, err := tx.Exec(ctx,
			`INSERT INTO watchlist (account_id, instrument_id) VALUES ($1, $2)`,
			a.ID, id); err != nil {
			return fmt.Errorf("save watchlist: %w", err)
		}
	}

	return tx.Commit(ctx)
}
