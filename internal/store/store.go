// Package store persists clients, statements and transactions in
// PostgreSQL. Methods accept the DB interface rather than a concrete
// pool so tests can substitute pgxmock.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// ErrNotFound reports a lookup that matched no row.
var ErrNotFound = errors.New("not found")

// DB is the slice of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store wraps all database access.
type Store struct {
	db DB
}

// New creates a Store over an open connection pool.
func New(db DB) *Store {
	return &Store{db: db}
}

// schemaStatements create the tables on startup. Statements run one at
// a time: pgx's extended protocol does not accept multi-command strings.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS clients (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		contact_name TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS statements (
		id BIGSERIAL PRIMARY KEY,
		client_id BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		file_path TEXT NOT NULL,
		ocr_text TEXT NOT NULL DEFAULT '',
		progress INT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
		status_changed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_statements_client_id ON statements(client_id)`,
	`CREATE INDEX IF NOT EXISTS idx_statements_status ON statements(status)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		statement_id BIGINT NOT NULL REFERENCES statements(id) ON DELETE CASCADE,
		date DATE NOT NULL,
		payee TEXT NOT NULL,
		amount NUMERIC(14,2) NOT NULL,
		type TEXT NOT NULL,
		balance NUMERIC(14,2),
		currency TEXT NOT NULL DEFAULT 'GBP'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_statement_id ON transactions(statement_id)`,
}

// EnsureSchema creates missing tables and indexes. Schema lives with
// the code rather than a migration tool; the tables are append-only in
// shape and created on first start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// --- Clients ---

// ClientUpdate carries a partial client update; nil fields keep their
// stored value.
type ClientUpdate struct {
	Name         *string `json:"name"`
	ContactName  *string `json:"contactName"`
	ContactEmail *string `json:"contactEmail"`
}

// CreateClient inserts a client and fills its ID and CreatedAt.
func (s *Store) CreateClient(ctx context.Context, c *models.Client) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO clients (name, contact_name, contact_email)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		c.Name, c.ContactName, c.ContactEmail,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetClient returns one client or ErrNotFound.
func (s *Store) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	c := &models.Client{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, contact_name, contact_email, created_at
		 FROM clients WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.ContactName, &c.ContactEmail, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// ListClients returns all clients, oldest first.
func (s *Store) ListClients(ctx context.Context) ([]models.Client, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, contact_name, contact_email, created_at
		 FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.ContactName, &c.ContactEmail, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// UpdateClient applies the non-nil fields of upd and returns the
// updated client, or ErrNotFound.
func (s *Store) UpdateClient(ctx context.Context, id int64, upd ClientUpdate) (*models.Client, error) {
	c := &models.Client{}
	err := s.db.QueryRow(ctx,
		`UPDATE clients SET
			name = COALESCE($2, name),
			contact_name = COALESCE($3, contact_name),
			contact_email = COALESCE($4, contact_email)
		 WHERE id = $1
		 RETURNING id, name, contact_name, contact_email, created_at`,
		id, upd.Name, upd.ContactName, upd.ContactEmail,
	).Scan(&c.ID, &c.Name, &c.ContactName, &c.ContactEmail, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	return c, nil
}

// DeleteClient removes a client and, through the FK cascade, its
// statements and their transactions.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Statements ---

const statementColumns = `id, client_id, uploaded_at, file_path, ocr_text, progress, status`

func scanStatement(row pgx.Row) (*models.Statement, error) {
	st := &models.Statement{}
	err := row.Scan(&st.ID, &st.ClientID, &st.UploadedAt, &st.FilePath,
		&st.OCRText, &st.Progress, &st.Status)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// CreateStatement inserts a pending statement and fills its ID and
// UploadedAt.
func (s *Store) CreateStatement(ctx context.Context, st *models.Statement) error {
	if st.Status == "" {
		st.Status = models.StatusPending
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO statements (client_id, file_path, progress, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, uploaded_at`,
		st.ClientID, st.FilePath, st.Progress, st.Status,
	).Scan(&st.ID, &st.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create statement: %w", err)
	}
	return nil
}

// GetStatement returns one statement or ErrNotFound.
func (s *Store) GetStatement(ctx context.Context, id int64) (*models.Statement, error) {
	st, err := scanStatement(s.db.QueryRow(ctx,
		`SELECT `+statementColumns+` FROM statements WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}
	return st, nil
}

// ListStatements returns statements newest first, optionally filtered
// by client.
func (s *Store) ListStatements(ctx context.Context, clientID *int64) ([]models.Statement, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+statementColumns+` FROM statements
		 WHERE ($1::bigint IS NULL OR client_id = $1)
		 ORDER BY uploaded_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}
	defer rows.Close()

	statements := []models.Statement{}
	for rows.Next() {
		var st models.Statement
		if err := rows.Scan(&st.ID, &st.ClientID, &st.UploadedAt, &st.FilePath,
			&st.OCRText, &st.Progress, &st.Status); err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		statements = append(statements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}
	return statements, nil
}

// ClaimNextPending atomically takes the oldest pending statement and
// flips it to processing. Returns (nil, nil) when nothing is queued.
// SKIP LOCKED keeps concurrent workers off the same row.
func (s *Store) ClaimNextPending(ctx context.Context) (*models.Statement, error) {
	st, err := scanStatement(s.db.QueryRow(ctx,
		`UPDATE statements SET status = 'processing', progress = 10, status_changed_at = now()
		 WHERE id = (
			SELECT id FROM statements WHERE status = 'pending'
			ORDER BY uploaded_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+statementColumns))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim statement: %w", err)
	}
	return st, nil
}

// SetStatementProgress updates the poll-visible progress value.
func (s *Store) SetStatementProgress(ctx context.Context, id int64, progress int) error {
	_, err := s.db.Exec(ctx,
		`UPDATE statements SET progress = $2 WHERE id = $1`, id, progress)
	if err != nil {
		return fmt.Errorf("failed to set statement progress: %w", err)
	}
	return nil
}

// SetStatementStatus moves a statement between lifecycle states.
func (s *Store) SetStatementStatus(ctx context.Context, id int64, status string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE statements SET status = $2, status_changed_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("failed to set statement status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteStatement records a successful run: extracted text stored,
// progress pinned to 100.
func (s *Store) CompleteStatement(ctx context.Context, id int64, ocrText string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE statements
		 SET status = 'completed', progress = 100, ocr_text = $2, status_changed_at = now()
		 WHERE id = $1`, id, ocrText)
	if err != nil {
		return fmt.Errorf("failed to complete statement: %w", err)
	}
	return nil
}

// FailStatement records a fatal run; progress resets so the frontend
// does not show a stuck bar.
func (s *Store) FailStatement(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx,
		`UPDATE statements
		 SET status = 'failed', progress = 0, status_changed_at = now()
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to fail statement: %w", err)
	}
	return nil
}

// RequeueStuck returns statements that have sat in processing longer
// than olderThan to pending, so a worker lost mid-run does not strand
// them. Returns how many were requeued.
func (s *Store) RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE statements SET status = 'pending', progress = 0, status_changed_at = now()
		 WHERE status = 'processing'
		   AND status_changed_at < now() - make_interval(secs => $1)`,
		olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stuck statements: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteStatement removes a statement and its transactions (FK
// cascade) and returns the stored file path so the caller can unlink
// the upload.
func (s *Store) DeleteStatement(ctx context.Context, id int64) (string, error) {
	var filePath string
	err := s.db.QueryRow(ctx,
		`DELETE FROM statements WHERE id = $1 RETURNING file_path`, id,
	).Scan(&filePath)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete statement: %w", err)
	}
	return filePath, nil
}

// --- Transactions ---

var transactionColumns = []string{
	"statement_id", "date", "payee", "amount", "type", "balance", "currency",
}

func transactionRows(statementID int64, txns []models.Transaction) [][]any {
	rows := make([][]any, len(txns))
	for i, t := range txns {
		rows[i] = []any{statementID, t.Date, t.Payee, t.Amount, t.Type, t.Balance, t.Currency}
	}
	return rows
}

// InsertTransactions bulk-loads parsed transactions for a statement.
func (s *Store) InsertTransactions(ctx context.Context, statementID int64, txns []models.Transaction) (int64, error) {
	if len(txns) == 0 {
		return 0, nil
	}
	n, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"transactions"}, transactionColumns,
		pgx.CopyFromRows(transactionRows(statementID, txns)))
	if err != nil {
		return 0, fmt.Errorf("failed to insert transactions: %w", err)
	}
	return n, nil
}

// ReplaceTransactions swaps a statement's transactions for the given
// set in one transaction, so a reprocessed statement never shows a
// mix of old and new rows.
func (s *Store) ReplaceTransactions(ctx context.Context, statementID int64, txns []models.Transaction) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM transactions WHERE statement_id = $1`, statementID); err != nil {
		return 0, fmt.Errorf("failed to clear transactions: %w", err)
	}

	var n int64
	if len(txns) > 0 {
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"transactions"}, transactionColumns,
			pgx.CopyFromRows(transactionRows(statementID, txns)))
		if err != nil {
			return 0, fmt.Errorf("failed to insert transactions: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return n, nil
}

// ListTransactionsByStatement returns a statement's transactions in
// date order.
func (s *Store) ListTransactionsByStatement(ctx context.Context, statementID int64) ([]models.Transaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, statement_id, date, payee, amount, type, balance, currency
		 FROM transactions WHERE statement_id = $1
		 ORDER BY date, id`, statementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.StatementID, &t.Date, &t.Payee,
			&t.Amount, &t.Type, &t.Balance, &t.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// GetTransaction returns one transaction or ErrNotFound.
func (s *Store) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	t := &models.Transaction{}
	err := s.db.QueryRow(ctx,
		`SELECT id, statement_id, date, payee, amount, type, balance, currency
		 FROM transactions WHERE id = $1`, id,
	).Scan(&t.ID, &t.StatementID, &t.Date, &t.Payee,
		&t.Amount, &t.Type, &t.Balance, &t.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}
