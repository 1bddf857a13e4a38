/*
Package sqlite provides the SQLite-backed implementation of the billing
storage interface.

PURPOSE:
  Implements billing.Store and billing.TxStore on SQLite. The same SQL works
  on PostgreSQL with only dialect-level changes (placeholders, RETURNING).

MONEY COLUMNS:
  All monetary columns are TEXT holding decimal strings, parsed with
  shopspring/decimal. Never REAL: float round-tripping would break the
  exact-sum invariants of the allocation engine.

SOFT DELETE:
  accounting_entries.deleted_at is NULL for live rows. Delete/restore are
  single-column updates; rows are never removed. Every "live" query filters
  deleted_at IS NULL.

KEY TABLES:
  events:              diploma/medal unit prices + discount tier JSON
  event_prices:        per (event, nomination) performance price
  registrations:       counts + derived payment status
  accounting_entries:  the ledger (soft-deletable)

CONCURRENCY:
  sync.RWMutex on top of a single connection; WithTx holds the write lock for
  the whole transaction, so a payment's validate-then-insert window is
  serialized against concurrent payments.

WAL MODE:
  SQLite is opened with WAL so readers do not block the writer.

USAGE:
  store, err := sqlite.New("./data/payments.db")   // ":memory:" for tests
  if err != nil { ... }
  defer store.Close()
  svc := billing.NewService(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/quickstep/payment-engine/billing"
)

// Store implements billing.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: access is serialized by the mutex anyway, and a
	// ":memory:" database must not be split across pool connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		price_per_diploma TEXT,
		price_per_medal TEXT,
		discount_tiers TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Performance price per (event, nomination) pair
	CREATE TABLE IF NOT EXISTS event_prices (
		event_id INTEGER NOT NULL,
		nomination_id INTEGER NOT NULL,
		price_per_participant TEXT NOT NULL,
		price_per_federation_participant TEXT,
		PRIMARY KEY (event_id, nomination_id)
	);

	CREATE TABLE IF NOT EXISTS registrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id INTEGER NOT NULL,
		nomination_id INTEGER NOT NULL,
		collective_id INTEGER NOT NULL,
		participants_count INTEGER NOT NULL DEFAULT 0,
		federation_participants_count INTEGER NOT NULL DEFAULT 0,
		diplomas_count INTEGER NOT NULL DEFAULT 0,
		medals_count INTEGER NOT NULL DEFAULT 0,
		payment_status TEXT NOT NULL DEFAULT 'UNPAID',
		performance_paid INTEGER NOT NULL DEFAULT 0,
		diplomas_medals_paid INTEGER NOT NULL DEFAULT 0,
		paid_amount TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_registrations_event
		ON registrations(event_id);

	-- The ledger. Soft delete via deleted_at; money as decimal strings.
	CREATE TABLE IF NOT EXISTS accounting_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		registration_id INTEGER,
		collective_id INTEGER,
		event_id INTEGER,
		amount TEXT NOT NULL,
		discount_amount TEXT NOT NULL DEFAULT '0',
		discount_percent TEXT NOT NULL DEFAULT '0',
		instrument TEXT NOT NULL,
		category TEXT NOT NULL,
		payment_group_id TEXT,
		payment_group_name TEXT,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		deleted_at TEXT
	);

	-- Live-entry lookups per registration (status derivation hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_registration
		ON accounting_entries(registration_id) WHERE registration_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_group
		ON accounting_entries(payment_group_id) WHERE payment_group_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_event
		ON accounting_entries(event_id) WHERE event_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// REGISTRATIONS
// =============================================================================

const registrationColumns = `id, event_id, nomination_id, collective_id,
	participants_count, federation_participants_count, diplomas_count, medals_count,
	payment_status, performance_paid, diplomas_medals_paid, paid_amount`

func scanRegistration(row interface{ Scan(...any) error }) (*billing.Registration, error) {
	var r billing.Registration
	var paidAmount string
	err := row.Scan(&r.ID, &r.EventID, &r.NominationID, &r.CollectiveID,
		&r.ParticipantsCount, &r.FederationParticipantsCount, &r.DiplomasCount, &r.MedalsCount,
		&r.PaymentStatus, &r.PerformancePaid, &r.DiplomasMedalsPaid, &paidAmount)
	if err != nil {
		return nil, err
	}
	r.PaidAmount, err = decimal.NewFromString(paidAmount)
	if err != nil {
		return nil, fmt.Errorf("corrupt paid_amount for registration %d: %w", r.ID, err)
	}
	return &r, nil
}

// GetRegistration returns a registration, or nil if it does not exist.
func (s *Store) GetRegistration(ctx context.Context, id int64) (*billing.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRegistration(ctx, s.db, id)
}

func (s *Store) getRegistration(ctx context.Context, db dbtx, id int64) (*billing.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = ?`
	reg, err := scanRegistration(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	return reg, nil
}

// ListRegistrations returns the registrations with the given ids.
func (s *Store) ListRegistrations(ctx context.Context, ids []int64) ([]billing.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRegistrations(ctx, s.db, ids)
}

func (s *Store) listRegistrations(ctx context.Context, db dbtx, ids []int64) ([]billing.Registration, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE id IN (` + placeholders + `) ORDER BY id`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var regs []billing.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// ListRegistrationsByEvent returns all registrations of an event.
func (s *Store) ListRegistrationsByEvent(ctx context.Context, eventID int64) ([]billing.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRegistrationsByEvent(ctx, s.db, eventID)
}

func (s *Store) listRegistrationsByEvent(ctx context.Context, db dbtx, eventID int64) ([]billing.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE event_id = ? ORDER BY id`
	rows, err := db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var regs []billing.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// UpdateRegistrationCounts persists updated counts; nil fields keep the
// stored value.
func (s *Store) UpdateRegistrationCounts(ctx context.Context, id int64, counts billing.RegistrationCounts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRegistrationCounts(ctx, s.db, id, counts)
}

func (s *Store) updateRegistrationCounts(ctx context.Context, db dbtx, id int64, counts billing.RegistrationCounts) error {
	query := `
		UPDATE registrations SET
			participants_count = COALESCE(?, participants_count),
			federation_participants_count = COALESCE(?, federation_participants_count),
			diplomas_count = COALESCE(?, diplomas_count),
			medals_count = COALESCE(?, medals_count)
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		counts.ParticipantsCount, counts.FederationParticipantsCount,
		counts.DiplomasCount, counts.MedalsCount, id)
	if err != nil {
		return fmt.Errorf("failed to update registration counts: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: registration %d", billing.ErrRegistrationNotFound, id)
	}
	return nil
}

// UpdateRegistrationPayment persists the derived payment fields.
func (s *Store) UpdateRegistrationPayment(ctx context.Context, id int64, status billing.PaymentStatus,
	performancePaid, diplomasMedalsPaid bool, paidAmount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRegistrationPayment(ctx, s.db, id, status, performancePaid, diplomasMedalsPaid, paidAmount)
}

func (s *Store) updateRegistrationPayment(ctx context.Context, db dbtx, id int64, status billing.PaymentStatus,
	performancePaid, diplomasMedalsPaid bool, paidAmount decimal.Decimal) error {
	query := `
		UPDATE registrations SET
			payment_status = ?,
			performance_paid = ?,
			diplomas_medals_paid = ?,
			paid_amount = ?
		WHERE id = ?
	`
	_, err := db.ExecContext(ctx, query,
		string(status), performancePaid, diplomasMedalsPaid, paidAmount.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update registration payment: %w", err)
	}
	return nil
}

// =============================================================================
// EVENTS AND PRICING
// =============================================================================

// GetEvent returns an event, or nil if it does not exist.
func (s *Store) GetEvent(ctx context.Context, id int64) (*billing.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEvent(ctx, s.db, id)
}

func (s *Store) getEvent(ctx context.Context, db dbtx, id int64) (*billing.Event, error) {
	query := `SELECT id, name, price_per_diploma, price_per_medal, discount_tiers
		FROM events WHERE id = ?`

	var ev billing.Event
	var diploma, medal sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&ev.ID, &ev.Name, &diploma, &medal, &ev.DiscountTiers)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	if ev.PricePerDiploma, err = nullDecimal(diploma); err != nil {
		return nil, fmt.Errorf("corrupt price_per_diploma for event %d: %w", id, err)
	}
	if ev.PricePerMedal, err = nullDecimal(medal); err != nil {
		return nil, fmt.Errorf("corrupt price_per_medal for event %d: %w", id, err)
	}
	return &ev, nil
}

// GetEventPricing returns the performance price row for an (event, nomination)
// pair, or nil if none exists.
func (s *Store) GetEventPricing(ctx context.Context, eventID, nominationID int64) (*billing.EventPricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEventPricing(ctx, s.db, eventID, nominationID)
}

func (s *Store) getEventPricing(ctx context.Context, db dbtx, eventID, nominationID int64) (*billing.EventPricing, error) {
	query := `SELECT event_id, nomination_id, price_per_participant, price_per_federation_participant
		FROM event_prices WHERE event_id = ? AND nomination_id = ?`

	var p billing.EventPricing
	var perParticipant string
	var perFederation sql.NullString
	err := db.QueryRowContext(ctx, query, eventID, nominationID).Scan(
		&p.EventID, &p.NominationID, &perParticipant, &perFederation)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event pricing: %w", err)
	}

	if p.PricePerParticipant, err = decimal.NewFromString(perParticipant); err != nil {
		return nil, fmt.Errorf("corrupt price_per_participant: %w", err)
	}
	if p.PricePerFederationParticipant, err = nullDecimal(perFederation); err != nil {
		return nil, fmt.Errorf("corrupt price_per_federation_participant: %w", err)
	}
	return &p, nil
}

// =============================================================================
// ACCOUNTING ENTRIES
// =============================================================================

const entryColumns = `id, registration_id, collective_id, event_id,
	amount, discount_amount, discount_percent, instrument, category,
	payment_group_id, payment_group_name, description, created_at, deleted_at`

func scanEntry(row interface{ Scan(...any) error }) (*billing.AccountingEntry, error) {
	var e billing.AccountingEntry
	var amount, discountAmount, discountPercent string
	var groupID, groupName sql.NullString
	var createdAt string
	var deletedAt sql.NullString
	err := row.Scan(&e.ID, &e.RegistrationID, &e.CollectiveID, &e.EventID,
		&amount, &discountAmount, &discountPercent, &e.Instrument, &e.Category,
		&groupID, &groupName, &e.Description, &createdAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("corrupt amount for entry %d: %w", e.ID, err)
	}
	if e.DiscountAmount, err = decimal.NewFromString(discountAmount); err != nil {
		return nil, fmt.Errorf("corrupt discount_amount for entry %d: %w", e.ID, err)
	}
	if e.DiscountPercent, err = decimal.NewFromString(discountPercent); err != nil {
		return nil, fmt.Errorf("corrupt discount_percent for entry %d: %w", e.ID, err)
	}
	if groupID.Valid {
		e.PaymentGroupID = &groupID.String
	}
	if groupName.Valid {
		e.PaymentGroupName = &groupName.String
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at for entry %d: %w", e.ID, err)
	}
	if deletedAt.Valid {
		t, err := time.Parse(time.RFC3339, deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt deleted_at for entry %d: %w", e.ID, err)
		}
		e.DeletedAt = &t
	}
	return &e, nil
}

// InsertEntry persists a new accounting entry and assigns its ID.
func (s *Store) InsertEntry(ctx context.Context, e *billing.AccountingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertEntry(ctx, s.db, e)
}

func (s *Store) insertEntry(ctx context.Context, db dbtx, e *billing.AccountingEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO accounting_entries
		(registration_id, collective_id, event_id, amount, discount_amount, discount_percent,
		 instrument, category, payment_group_id, payment_group_name, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := db.ExecContext(ctx, query,
		e.RegistrationID, e.CollectiveID, e.EventID,
		e.Amount.String(), e.DiscountAmount.String(), e.DiscountPercent.String(),
		string(e.Instrument), string(e.Category),
		e.PaymentGroupID, e.PaymentGroupName, e.Description,
		e.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted entry id: %w", err)
	}
	return nil
}

// GetEntry returns an entry regardless of its deletion state, or nil if it
// does not exist.
func (s *Store) GetEntry(ctx context.Context, id int64) (*billing.AccountingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntry(ctx, s.db, id)
}

func (s *Store) getEntry(ctx context.Context, db dbtx, id int64) (*billing.AccountingEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM accounting_entries WHERE id = ?`
	entry, err := scanEntry(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry: %w", err)
	}
	return entry, nil
}

// UpdateEntry rewrites the mutable fields of an existing entry.
func (s *Store) UpdateEntry(ctx context.Context, e *billing.AccountingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateEntry(ctx, s.db, e)
}

func (s *Store) updateEntry(ctx context.Context, db dbtx, e *billing.AccountingEntry) error {
	query := `
		UPDATE accounting_entries SET
			amount = ?,
			discount_amount = ?,
			discount_percent = ?,
			instrument = ?,
			category = ?,
			description = ?,
			payment_group_name = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		e.Amount.String(), e.DiscountAmount.String(), e.DiscountPercent.String(),
		string(e.Instrument), string(e.Category), e.Description, e.PaymentGroupName, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: entry %d", billing.ErrEntryNotFound, e.ID)
	}
	return nil
}

// SoftDeleteEntry stamps deleted_at. Idempotent.
func (s *Store) SoftDeleteEntry(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.softDeleteEntry(ctx, s.db, id)
}

func (s *Store) softDeleteEntry(ctx context.Context, db dbtx, id int64) error {
	query := `UPDATE accounting_entries SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`
	_, err := db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// RestoreEntry clears deleted_at. Idempotent.
func (s *Store) RestoreEntry(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreEntry(ctx, s.db, id)
}

func (s *Store) restoreEntry(ctx context.Context, db dbtx, id int64) error {
	query := `UPDATE accounting_entries SET deleted_at = NULL WHERE id = ?`
	_, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to restore entry: %w", err)
	}
	return nil
}

// ListEntriesByRegistration returns a registration's live entries.
func (s *Store) ListEntriesByRegistration(ctx context.Context, registrationID int64) ([]billing.AccountingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEntriesByRegistration(ctx, s.db, registrationID)
}

func (s *Store) listEntriesByRegistration(ctx context.Context, db dbtx, registrationID int64) ([]billing.AccountingEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM accounting_entries
		WHERE registration_id = ? AND deleted_at IS NULL ORDER BY id`
	return queryEntries(ctx, db, query, registrationID)
}

// ListGroupEntries returns the live entries of a payment group in a category.
func (s *Store) ListGroupEntries(ctx context.Context, groupID string, category billing.Category) ([]billing.AccountingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listGroupEntries(ctx, s.db, groupID, category)
}

func (s *Store) listGroupEntries(ctx context.Context, db dbtx, groupID string, category billing.Category) ([]billing.AccountingEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM accounting_entries
		WHERE payment_group_id = ? AND category = ? AND deleted_at IS NULL ORDER BY id`
	return queryEntries(ctx, db, query, groupID, string(category))
}

// RenameGroup sets the display name on every entry of a payment group.
func (s *Store) RenameGroup(ctx context.Context, groupID, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renameGroup(ctx, s.db, groupID, name)
}

func (s *Store) renameGroup(ctx context.Context, db dbtx, groupID, name string) (int64, error) {
	query := `UPDATE accounting_entries SET payment_group_name = ? WHERE payment_group_id = ?`
	res, err := db.ExecContext(ctx, query, name, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to rename group: %w", err)
	}
	return res.RowsAffected()
}

// ListEntriesByEvent returns entries belonging to an event, both those linked
// to the event's registrations and manual event-scoped ones, newest first.
func (s *Store) ListEntriesByEvent(ctx context.Context, eventID int64, f billing.EntryFilter) ([]billing.AccountingEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEntriesByEvent(ctx, s.db, eventID, f)
}

func (s *Store) listEntriesByEvent(ctx context.Context, db dbtx, eventID int64, f billing.EntryFilter) ([]billing.AccountingEntry, int, error) {
	where := `(event_id = ? OR registration_id IN (SELECT id FROM registrations WHERE event_id = ?))`
	switch {
	case f.DeletedOnly:
		where += ` AND deleted_at IS NOT NULL`
	case !f.IncludeDeleted:
		where += ` AND deleted_at IS NULL`
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM accounting_entries WHERE ` + where
	if err := db.QueryRowContext(ctx, countQuery, eventID, eventID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count entries: %w", err)
	}

	query := `SELECT ` + entryColumns + ` FROM accounting_entries
		WHERE ` + where + ` ORDER BY created_at DESC, id DESC`
	args := []any{eventID, eventID}
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	entries, err := queryEntries(ctx, db, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func queryEntries(ctx context.Context, db dbtx, query string, args ...any) ([]billing.AccountingEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []billing.AccountingEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// =============================================================================
// TRANSACTIONS (billing.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes Store calls through an open transaction. The parent's write
// lock is held for the transaction's whole lifetime, so no extra locking here.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) GetRegistration(ctx context.Context, id int64) (*billing.Registration, error) {
	return ts.parent.getRegistration(ctx, ts.tx, id)
}

func (ts *txStore) ListRegistrations(ctx context.Context, ids []int64) ([]billing.Registration, error) {
	return ts.parent.listRegistrations(ctx, ts.tx, ids)
}

func (ts *txStore) ListRegistrationsByEvent(ctx context.Context, eventID int64) ([]billing.Registration, error) {
	return ts.parent.listRegistrationsByEvent(ctx, ts.tx, eventID)
}

func (ts *txStore) UpdateRegistrationCounts(ctx context.Context, id int64, counts billing.RegistrationCounts) error {
	return ts.parent.updateRegistrationCounts(ctx, ts.tx, id, counts)
}

func (ts *txStore) UpdateRegistrationPayment(ctx context.Context, id int64, status billing.PaymentStatus,
	performancePaid, diplomasMedalsPaid bool, paidAmount decimal.Decimal) error {
	return ts.parent.updateRegistrationPayment(ctx, ts.tx, id, status, performancePaid, diplomasMedalsPaid, paidAmount)
}

func (ts *txStore) GetEvent(ctx context.Context, id int64) (*billing.Event, error) {
	return ts.parent.getEvent(ctx, ts.tx, id)
}

func (ts *txStore) GetEventPricing(ctx context.Context, eventID, nominationID int64) (*billing.EventPricing, error) {
	return ts.parent.getEventPricing(ctx, ts.tx, eventID, nominationID)
}

func (ts *txStore) InsertEntry(ctx context.Context, e *billing.AccountingEntry) error {
	return ts.parent.insertEntry(ctx, ts.tx, e)
}

func (ts *txStore) GetEntry(ctx context.Context, id int64) (*billing.AccountingEntry, error) {
	return ts.parent.getEntry(ctx, ts.tx, id)
}

func (ts *txStore) UpdateEntry(ctx context.Context, e *billing.AccountingEntry) error {
	return ts.parent.updateEntry(ctx, ts.tx, e)
}

func (ts *txStore) SoftDeleteEntry(ctx context.Context, id int64) error {
	return ts.parent.softDeleteEntry(ctx, ts.tx, id)
}

func (ts *txStore) RestoreEntry(ctx context.Context, id int64) error {
	return ts.parent.restoreEntry(ctx, ts.tx, id)
}

func (ts *txStore) ListEntriesByRegistration(ctx context.Context, registrationID int64) ([]billing.AccountingEntry, error) {
	return ts.parent.listEntriesByRegistration(ctx, ts.tx, registrationID)
}

func (ts *txStore) ListGroupEntries(ctx context.Context, groupID string, category billing.Category) ([]billing.AccountingEntry, error) {
	return ts.parent.listGroupEntries(ctx, ts.tx, groupID, category)
}

func (ts *txStore) RenameGroup(ctx context.Context, groupID, name string) (int64, error) {
	return ts.parent.renameGroup(ctx, ts.tx, groupID, name)
}

func (ts *txStore) ListEntriesByEvent(ctx context.Context, eventID int64, f billing.EntryFilter) ([]billing.AccountingEntry, int, error) {
	return ts.parent.listEntriesByEvent(ctx, ts.tx, eventID, f)
}

// =============================================================================
// SEEDING (admin and test setup, not part of billing.Store)
// =============================================================================

// CreateEvent inserts an event and returns its id.
func (s *Store) CreateEvent(ctx context.Context, ev billing.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO events (name, price_per_diploma, price_per_medal, discount_tiers, created_at)
		VALUES (?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		ev.Name, decimalString(ev.PricePerDiploma), decimalString(ev.PricePerMedal),
		ev.DiscountTiers, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to create event: %w", err)
	}
	return res.LastInsertId()
}

// SetEventPricing creates or replaces the performance price row of an
// (event, nomination) pair.
func (s *Store) SetEventPricing(ctx context.Context, p billing.EventPricing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO event_prices (event_id, nomination_id, price_per_participant, price_per_federation_participant)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id, nomination_id) DO UPDATE SET
			price_per_participant = excluded.price_per_participant,
			price_per_federation_participant = excluded.price_per_federation_participant
	`
	_, err := s.db.ExecContext(ctx, query,
		p.EventID, p.NominationID, p.PricePerParticipant.String(),
		decimalString(p.PricePerFederationParticipant))
	if err != nil {
		return fmt.Errorf("failed to set event pricing: %w", err)
	}
	return nil
}

// CreateRegistration inserts a registration and returns its id.
func (s *Store) CreateRegistration(ctx context.Context, r billing.Registration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO registrations
		(event_id, nomination_id, collective_id, participants_count,
		 federation_participants_count, diplomas_count, medals_count,
		 payment_status, paid_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	status := r.PaymentStatus
	if status == "" {
		status = billing.StatusUnpaid
	}
	res, err := s.db.ExecContext(ctx, query,
		r.EventID, r.NominationID, r.CollectiveID, r.ParticipantsCount,
		r.FederationParticipantsCount, r.DiplomasCount, r.MedalsCount,
		string(status), r.PaidAmount.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to create registration: %w", err)
	}
	return res.LastInsertId()
}

// Helper functions

func nullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
