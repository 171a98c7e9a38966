package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tracking (
	email_id       TEXT PRIMARY KEY,
	customer_id    TEXT NOT NULL,
	company_name   TEXT NOT NULL DEFAULT '',
	contact_email  TEXT NOT NULL,
	subject        TEXT NOT NULL DEFAULT '',
	sent_date      DATETIME,
	pipeline_stage INTEGER NOT NULL DEFAULT 1,
	email_type     TEXT NOT NULL DEFAULT 'outreach',
	attachments    TEXT NOT NULL DEFAULT '[]',
	status         TEXT NOT NULL DEFAULT 'queued',
	replied        INTEGER NOT NULL DEFAULT 0,
	reply_date     DATETIME,
	reply_summary  TEXT NOT NULL DEFAULT '',
	detected_stage INTEGER NOT NULL DEFAULT 0,
	next_action    TEXT NOT NULL DEFAULT '',
	ai_confidence  REAL NOT NULL DEFAULT 0,
	reviewed_by    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS customers (
	id             TEXT PRIMARY KEY,
	company_name   TEXT NOT NULL DEFAULT '',
	contact_name   TEXT NOT NULL DEFAULT '',
	contact_email  TEXT NOT NULL,
	industry       TEXT NOT NULL DEFAULT '',
	country        TEXT NOT NULL DEFAULT '',
	pipeline_stage INTEGER NOT NULL DEFAULT 1,
	engagement     TEXT NOT NULL DEFAULT '',
	salesforce_id  TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tracking_status ON tracking(status);
CREATE INDEX IF NOT EXISTS idx_tracking_contact_email ON tracking(contact_email);
CREATE INDEX IF NOT EXISTS idx_customers_contact_email ON customers(contact_email);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const trackingColumns = `email_id, customer_id, company_name, contact_email, subject,
	sent_date, pipeline_stage, email_type, attachments, status, replied,
	reply_date, reply_summary, detected_stage, next_action, ai_confidence, reviewed_by`

func (s *SQLiteStore) AppendTracking(ctx context.Context, rec model.TrackingRecord) error {
	if rec.EmailID == "" {
		rec.EmailID = model.NewEmailID()
	}
	if rec.Status == "" {
		rec.Status = model.StatusQueued
	}

	attachJSON, err := json.Marshal(rec.Attachments)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal attachments")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tracking (`+trackingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EmailID, rec.CustomerID, rec.CompanyName, rec.ContactEmail, rec.Subject,
		nullTime(rec.SentDate), rec.PipelineStage, rec.EmailType, string(attachJSON),
		string(rec.Status), rec.Replied, nullTime(rec.ReplyDate), rec.ReplySummary,
		rec.DetectedStage, rec.NextAction, rec.AIConfidence, rec.ReviewedBy,
	)
	return eris.Wrapf(err, "sqlite: insert tracking %s", rec.EmailID)
}

func (s *SQLiteStore) ListTracking(ctx context.Context, filter TrackingFilter) ([]model.TrackingRecord, error) {
	query := `SELECT ` + trackingColumns + ` FROM tracking WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Replied != nil {
		query += ` AND replied = ?`
		args = append(args, *filter.Replied)
	}
	if filter.Stage > 0 {
		query += ` AND pipeline_stage = ?`
		args = append(args, filter.Stage)
	}
	query += ` ORDER BY sent_date ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tracking")
	}
	defer rows.Close()

	var recs []model.TrackingRecord
	for rows.Next() {
		r, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list tracking iterate")
}

func (s *SQLiteStore) GetTracking(ctx context.Context, emailID string) (*model.TrackingRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackingColumns+` FROM tracking WHERE email_id = ?`, emailID)
	rec, err := scanTracking(row)
	if err == errNoRow {
		return nil, eris.Errorf("tracking not found: %s", emailID)
	}
	return rec, err
}

func (s *SQLiteStore) FindOpenTrackingByEmail(ctx context.Context, email string) (*model.TrackingRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackingColumns+` FROM tracking
		 WHERE contact_email = ? COLLATE NOCASE AND status IN ('sent', 'queued') AND replied = 0
		 ORDER BY sent_date ASC LIMIT 1`,
		email,
	)
	rec, err := scanTracking(row)
	if err == errNoRow {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStore) UpdateTracking(ctx context.Context, emailID string, upd model.TrackingUpdate) error {
	query := `UPDATE tracking SET email_id = email_id`
	var args []any

	if upd.Status != "" {
		query += `, status = ?`
		args = append(args, string(upd.Status))
	}
	if upd.Replied != nil {
		query += `, replied = ?`
		args = append(args, *upd.Replied)
	}
	if upd.ReplyDate != nil {
		query += `, reply_date = ?`
		args = append(args, upd.ReplyDate.UTC())
	}
	if upd.ReplySummary != nil {
		query += `, reply_summary = ?`
		args = append(args, *upd.ReplySummary)
	}
	if upd.DetectedStage != nil {
		query += `, detected_stage = ?`
		args = append(args, *upd.DetectedStage)
	}
	if upd.NextAction != nil {
		query += `, next_action = ?`
		args = append(args, *upd.NextAction)
	}
	if upd.AIConfidence != nil {
		query += `, ai_confidence = ?`
		args = append(args, *upd.AIConfidence)
	}
	if upd.SentDate != nil {
		query += `, sent_date = ?`
		args = append(args, upd.SentDate.UTC())
	}
	query += ` WHERE email_id = ?`
	args = append(args, emailID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update tracking %s", emailID)
	}
	return checkRowsAffected(res, "tracking", emailID)
}

const customerColumns = `id, company_name, contact_name, contact_email, industry,
	country, pipeline_stage, engagement, salesforce_id, notes`

func (s *SQLiteStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY company_name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list customers")
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var c model.Customer
		var engagement string
		if err := rows.Scan(&c.ID, &c.CompanyName, &c.ContactName, &c.ContactEmail,
			&c.Industry, &c.Country, &c.PipelineStage, &engagement,
			&c.SalesforceID, &c.Notes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan customer")
		}
		c.Engagement = model.Engagement(engagement)
		customers = append(customers, c)
	}
	return customers, eris.Wrap(rows.Err(), "sqlite: list customers iterate")
}

func (s *SQLiteStore) GetCustomer(ctx context.Context, customerID string) (*model.Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`, customerID)

	var c model.Customer
	var engagement string
	err := row.Scan(&c.ID, &c.CompanyName, &c.ContactName, &c.ContactEmail,
		&c.Industry, &c.Country, &c.PipelineStage, &engagement,
		&c.SalesforceID, &c.Notes)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("customer not found: %s", customerID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get customer")
	}
	c.Engagement = model.Engagement(engagement)
	return &c, nil
}

func (s *SQLiteStore) UpdateCustomer(ctx context.Context, customerID string, upd model.CustomerUpdate) error {
	query := `UPDATE customers SET id = id`
	var args []any

	if upd.PipelineStage != nil {
		query += `, pipeline_stage = ?`
		args = append(args, *upd.PipelineStage)
	}
	if upd.Engagement != "" {
		query += `, engagement = ?`
		args = append(args, string(upd.Engagement))
	}
	query += ` WHERE id = ?`
	args = append(args, customerID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update customer %s", customerID)
	}
	return checkRowsAffected(res, "customer", customerID)
}

// InsertCustomer adds a customer row; used by migrations and tests.
func (s *SQLiteStore) InsertCustomer(ctx context.Context, c model.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyName, c.ContactName, c.ContactEmail, c.Industry,
		c.Country, c.PipelineStage, string(c.Engagement), c.SalesforceID, c.Notes,
	)
	return eris.Wrapf(err, "sqlite: insert customer %s", c.ID)
}

// helpers

var errNoRow = eris.New("no row")

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTracking(row scannable) (*model.TrackingRecord, error) {
	var r model.TrackingRecord
	var sentDate, replyDate sql.NullTime
	var attachJSON, status string

	err := row.Scan(&r.EmailID, &r.CustomerID, &r.CompanyName, &r.ContactEmail,
		&r.Subject, &sentDate, &r.PipelineStage, &r.EmailType, &attachJSON,
		&status, &r.Replied, &replyDate, &r.ReplySummary, &r.DetectedStage,
		&r.NextAction, &r.AIConfidence, &r.ReviewedBy)
	if err == sql.ErrNoRows {
		return nil, errNoRow
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan tracking")
	}

	r.Status = model.EmailStatus(status)
	if sentDate.Valid {
		r.SentDate = sentDate.Time
	}
	if replyDate.Valid {
		r.ReplyDate = replyDate.Time
	}
	if err := json.Unmarshal([]byte(attachJSON), &r.Attachments); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal attachments")
	}
	return &r, nil
}
