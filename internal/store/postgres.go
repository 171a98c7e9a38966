package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"find_open_tracking": `SELECT ` + trackingColumns + ` FROM tracking
		WHERE lower(contact_email) = lower($1) AND status IN ('sent', 'queued') AND replied = false
		ORDER BY sent_date ASC NULLS LAST LIMIT 1`,
	"get_tracking":   `SELECT ` + trackingColumns + ` FROM tracking WHERE email_id = $1`,
	"get_customer":   `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`,
	"list_customers": `SELECT ` + customerColumns + ` FROM customers ORDER BY company_name ASC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for bulk operations
// (e.g., the migrate command's COPY-based import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tracking (
	email_id       TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	customer_id    TEXT NOT NULL,
	company_name   TEXT NOT NULL DEFAULT '',
	contact_email  TEXT NOT NULL,
	subject        TEXT NOT NULL DEFAULT '',
	sent_date      TIMESTAMPTZ,
	pipeline_stage INTEGER NOT NULL DEFAULT 1,
	email_type     TEXT NOT NULL DEFAULT 'outreach',
	attachments    JSONB NOT NULL DEFAULT '[]',
	status         TEXT NOT NULL DEFAULT 'queued',
	replied        BOOLEAN NOT NULL DEFAULT false,
	reply_date     TIMESTAMPTZ,
	reply_summary  TEXT NOT NULL DEFAULT '',
	detected_stage INTEGER NOT NULL DEFAULT 0,
	next_action    TEXT NOT NULL DEFAULT '',
	ai_confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	reviewed_by    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS customers (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
CREATE INDEX IF NOT EXISTS idx_tracking_contact_email ON tracking(lower(contact_email));
CREATE INDEX IF NOT EXISTS idx_customers_contact_email ON customers(lower(contact_email));
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AppendTracking(ctx context.Context, rec model.TrackingRecord) error {
	if rec.EmailID == "" {
		rec.EmailID = model.NewEmailID()
	}
	if rec.Status == "" {
		rec.Status = model.StatusQueued
	}

	attachJSON, err := json.Marshal(rec.Attachments)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal attachments")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tracking (`+trackingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		rec.EmailID, rec.CustomerID, rec.CompanyName, rec.ContactEmail, rec.Subject,
		nullTime(rec.SentDate), rec.PipelineStage, rec.EmailType, string(attachJSON),
		string(rec.Status), rec.Replied, nullTime(rec.ReplyDate), rec.ReplySummary,
		rec.DetectedStage, rec.NextAction, rec.AIConfidence, rec.ReviewedBy,
	)
	return eris.Wrapf(err, "postgres: insert tracking %s", rec.EmailID)
}

// ImportTracking bulk-upserts tracking records, keyed by email_id. Used by
// the migrate command when moving history from the spreadsheet or sqlite.
func (s *PostgresStore) ImportTracking(ctx context.Context, recs []model.TrackingRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	columns := []string{"email_id", "customer_id", "company_name", "contact_email",
		"subject", "sent_date", "pipeline_stage", "email_type", "attachments",
		"status", "replied", "reply_date", "reply_summary", "detected_stage",
		"next_action", "ai_confidence", "reviewed_by"}

	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		if rec.EmailID == "" {
			rec.EmailID = model.NewEmailID()
		}
		attachJSON, err := json.Marshal(rec.Attachments)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal attachments")
		}
		rows = append(rows, []any{
			rec.EmailID, rec.CustomerID, rec.CompanyName, rec.ContactEmail,
			rec.Subject, nullTime(rec.SentDate), rec.PipelineStage, rec.EmailType,
			string(attachJSON), string(rec.Status), rec.Replied,
			nullTime(rec.ReplyDate), rec.ReplySummary, rec.DetectedStage,
			rec.NextAction, rec.AIConfidence, rec.ReviewedBy,
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "tracking",
		Columns:      columns,
		ConflictKeys: []string{"email_id"},
	}, rows)
}

// ImportCustomers bulk-upserts customer rows, keyed by id.
func (s *PostgresStore) ImportCustomers(ctx context.Context, customers []model.Customer) (int64, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	columns := []string{"id", "company_name", "contact_name", "contact_email",
		"industry", "country", "pipeline_stage", "engagement", "salesforce_id", "notes"}

	rows := make([][]any, 0, len(customers))
	for _, c := range customers {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		rows = append(rows, []any{
			c.ID, c.CompanyName, c.ContactName, c.ContactEmail, c.Industry,
			c.Country, c.PipelineStage, string(c.Engagement), c.SalesforceID, c.Notes,
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "customers",
		Columns:      columns,
		ConflictKeys: []string{"id"},
	}, rows)
}

func (s *PostgresStore) ListTracking(ctx context.Context, filter TrackingFilter) ([]model.TrackingRecord, error) {
	query := `SELECT ` + trackingColumns + ` FROM tracking WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = ` + placeholder(len(args))
	}
	if filter.Replied != nil {
		args = append(args, *filter.Replied)
		query += ` AND replied = ` + placeholder(len(args))
	}
	if filter.Stage > 0 {
		args = append(args, filter.Stage)
		query += ` AND pipeline_stage = ` + placeholder(len(args))
	}
	query += ` ORDER BY sent_date ASC NULLS LAST`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)
	query += ` LIMIT ` + placeholder(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET ` + placeholder(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tracking")
	}
	defer rows.Close()

	var recs []model.TrackingRecord
	for rows.Next() {
		r, err := scanPgTracking(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list tracking iterate")
}

func (s *PostgresStore) GetTracking(ctx context.Context, emailID string) (*model.TrackingRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+trackingColumns+` FROM tracking WHERE email_id = $1`, emailID)
	rec, err := scanPgTracking(row)
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("tracking not found: %s", emailID)
	}
	return rec, err
}

func (s *PostgresStore) FindOpenTrackingByEmail(ctx context.Context, email string) (*model.TrackingRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+trackingColumns+` FROM tracking
		 WHERE lower(contact_email) = lower($1) AND status IN ('sent', 'queued') AND replied = false
		 ORDER BY sent_date ASC NULLS LAST LIMIT 1`,
		email,
	)
	rec, err := scanPgTracking(row)
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) UpdateTracking(ctx context.Context, emailID string, upd model.TrackingUpdate) error {
	query := `UPDATE tracking SET email_id = email_id`
	var args []any

	if upd.Status != "" {
		args = append(args, string(upd.Status))
		query += `, status = ` + placeholder(len(args))
	}
	if upd.Replied != nil {
		args = append(args, *upd.Replied)
		query += `, replied = ` + placeholder(len(args))
	}
	if upd.ReplyDate != nil {
		args = append(args, upd.ReplyDate.UTC())
		query += `, reply_date = ` + placeholder(len(args))
	}
	if upd.ReplySummary != nil {
		args = append(args, *upd.ReplySummary)
		query += `, reply_summary = ` + placeholder(len(args))
	}
	if upd.DetectedStage != nil {
		args = append(args, *upd.DetectedStage)
		query += `, detected_stage = ` + placeholder(len(args))
	}
	if upd.NextAction != nil {
		args = append(args, *upd.NextAction)
		query += `, next_action = ` + placeholder(len(args))
	}
	if upd.AIConfidence != nil {
		args = append(args, *upd.AIConfidence)
		query += `, ai_confidence = ` + placeholder(len(args))
	}
	if upd.SentDate != nil {
		args = append(args, upd.SentDate.UTC())
		query += `, sent_date = ` + placeholder(len(args))
	}
	args = append(args, emailID)
	query += ` WHERE email_id = ` + placeholder(len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update tracking %s", emailID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("tracking not found: %s", emailID)
	}
	return nil
}

func (s *PostgresStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY company_name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list customers")
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var c model.Customer
		var engagement string
		if err := rows.Scan(&c.ID, &c.CompanyName, &c.ContactName, &c.ContactEmail,
			&c.Industry, &c.Country, &c.PipelineStage, &engagement,
			&c.SalesforceID, &c.Notes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan customer")
		}
		c.Engagement = model.Engagement(engagement)
		customers = append(customers, c)
	}
	return customers, eris.Wrap(rows.Err(), "postgres: list customers iterate")
}

func (s *PostgresStore) GetCustomer(ctx context.Context, customerID string) (*model.Customer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, customerID)

	var c model.Customer
	var engagement string
	err := row.Scan(&c.ID, &c.CompanyName, &c.ContactName, &c.ContactEmail,
		&c.Industry, &c.Country, &c.PipelineStage, &engagement,
		&c.SalesforceID, &c.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("customer not found: %s", customerID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get customer")
	}
	c.Engagement = model.Engagement(engagement)
	return &c, nil
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, customerID string, upd model.CustomerUpdate) error {
	query := `UPDATE customers SET id = id`
	var args []any

	if upd.PipelineStage != nil {
		args = append(args, *upd.PipelineStage)
		query += `, pipeline_stage = ` + placeholder(len(args))
	}
	if upd.Engagement != "" {
		args = append(args, string(upd.Engagement))
		query += `, engagement = ` + placeholder(len(args))
	}
	args = append(args, customerID)
	query += ` WHERE id = ` + placeholder(len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update customer %s", customerID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("customer not found: %s", customerID)
	}
	return nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func scanPgTracking(row scannable) (*model.TrackingRecord, error) {
	var r model.TrackingRecord
	var sentDate, replyDate *time.Time
	var attachJSON []byte
	var status string

	err := row.Scan(&r.EmailID, &r.CustomerID, &r.CompanyName, &r.ContactEmail,
		&r.Subject, &sentDate, &r.PipelineStage, &r.EmailType, &attachJSON,
		&status, &r.Replied, &replyDate, &r.ReplySummary, &r.DetectedStage,
		&r.NextAction, &r.AIConfidence, &r.ReviewedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan tracking")
	}

	r.Status = model.EmailStatus(status)
	if sentDate != nil {
		r.SentDate = *sentDate
	}
	if replyDate != nil {
		r.ReplyDate = *replyDate
	}
	if len(attachJSON) > 0 {
		if err := json.Unmarshal(attachJSON, &r.Attachments); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal attachments")
		}
	}
	return &r, nil
}
