package store

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Sheet and header layout of the shared outreach workbook. Column order is
// load-bearing for the sales team's filters; new columns go at the end.
const (
	trackingSheetName = "Email_Tracking"
	customerSheetName = "Customers"
)

var trackingHeaders = []string{
	"email_id", "customer_id", "company_name", "contact_email", "subject",
	"sent_date", "pipeline_stage", "email_type", "attachments", "status",
	"replied", "reply_date", "reply_content_summary", "detected_stage",
	"next_action", "ai_confidence", "reviewed_by",
}

var customerHeaders = []string{
	"customer_id", "company_name", "contact_name", "contact_email", "industry",
	"country", "pipeline_stage", "engagement_level", "salesforce_id", "notes",
}

const xlsxTimeLayout = "2006-01-02 15:04:05"

// XLSXStore implements Store against the shared spreadsheet the sales team
// works in. Every cell arrives as a string; all parsing happens here so the
// rest of the code only ever sees typed records. The workbook has no
// transactions: each mutation rewrites the file, and concurrent writers are
// last-write-wins.
type XLSXStore struct {
	path string

	mu   sync.Mutex
	file *xlsx.File
}

// NewXLSX opens the workbook at path, creating it if missing.
func NewXLSX(path string) (*XLSXStore, error) {
	s := &XLSXStore{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		s.file = xlsx.NewFile()
		return s, nil
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}
	s.file = f
	return s, nil
}

// Migrate ensures both sheets exist with their header rows.
func (s *XLSXStore) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for name, headers := range map[string][]string{
		trackingSheetName: trackingHeaders,
		customerSheetName: customerHeaders,
	} {
		if _, ok := s.file.Sheet[name]; ok {
			continue
		}
		sheet, err := s.file.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "xlsx: add sheet %s", name)
		}
		row := sheet.AddRow()
		for _, h := range headers {
			row.AddCell().SetString(h)
		}
		changed = true
	}
	if !changed {
		return nil
	}
	return s.save()
}

func (s *XLSXStore) Close() error {
	return nil
}

func (s *XLSXStore) AppendTracking(ctx context.Context, rec model.TrackingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, cols, err := s.sheet(trackingSheetName)
	if err != nil {
		return err
	}
	if rec.EmailID == "" {
		rec.EmailID = model.NewEmailID()
	}
	if rec.Status == "" {
		rec.Status = model.StatusQueued
	}

	row := sheet.AddRow()
	for range cols {
		row.AddCell()
	}
	writeTrackingRow(row, cols, rec)

	return s.save()
}

func (s *XLSXStore) ListTracking(ctx context.Context, filter TrackingFilter) ([]model.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, cols, err := s.sheet(trackingSheetName)
	if err != nil {
		return nil, err
	}

	var recs []model.TrackingRecord
	skipped := 0
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		rec := parseTrackingRow(row, cols)
		if rec.EmailID == "" && rec.ContactEmail == "" {
			continue // blank padding rows the spreadsheet UI leaves behind
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Replied != nil && rec.Replied != *filter.Replied {
			continue
		}
		if filter.Stage > 0 && rec.PipelineStage != filter.Stage {
			continue
		}
		if filter.Offset > 0 && skipped < filter.Offset {
			skipped++
			continue
		}
		recs = append(recs, rec)
		if filter.Limit > 0 && len(recs) >= filter.Limit {
			break
		}
	}
	return recs, nil
}

func (s *XLSXStore) GetTracking(ctx context.Context, emailID string) (*model.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, rec, _, err := s.findTrackingRow(emailID)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *XLSXStore) FindOpenTrackingByEmail(ctx context.Context, email string) (*model.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, cols, err := s.sheet(trackingSheetName)
	if err != nil {
		return nil, err
	}

	// Rows are appended in send order, so the first open match is the
	// earliest-sent open record.
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		rec := parseTrackingRow(row, cols)
		if !strings.EqualFold(rec.ContactEmail, email) {
			continue
		}
		if !rec.Status.Open() || rec.Replied {
			continue
		}
		return &rec, nil
	}
	return nil, nil
}

func (s *XLSXStore) UpdateTracking(ctx context.Context, emailID string, upd model.TrackingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, _, cols, err := s.findTrackingRow(emailID)
	if err != nil {
		return err
	}

	if upd.Status != "" {
		setCell(row, cols, "status", string(upd.Status))
	}
	if upd.Replied != nil {
		setCell(row, cols, "replied", yesNo(*upd.Replied))
	}
	if upd.ReplyDate != nil {
		setCell(row, cols, "reply_date", upd.ReplyDate.Format(xlsxTimeLayout))
	}
	if upd.ReplySummary != nil {
		setCell(row, cols, "reply_content_summary", *upd.ReplySummary)
	}
	if upd.DetectedStage != nil {
		setCell(row, cols, "detected_stage", strconv.Itoa(*upd.DetectedStage))
	}
	if upd.NextAction != nil {
		setCell(row, cols, "next_action", *upd.NextAction)
	}
	if upd.AIConfidence != nil {
		setCell(row, cols, "ai_confidence", strconv.FormatFloat(*upd.AIConfidence, 'f', 2, 64))
	}
	if upd.SentDate != nil {
		setCell(row, cols, "sent_date", upd.SentDate.Format(xlsxTimeLayout))
	}

	return s.save()
}

func (s *XLSXStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, cols, err := s.sheet(customerSheetName)
	if err != nil {
		return nil, err
	}

	var customers []model.Customer
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		c := parseCustomerRow(row, cols)
		if c.ID == "" && c.ContactEmail == "" {
			continue
		}
		customers = append(customers, c)
	}
	return customers, nil
}

func (s *XLSXStore) GetCustomer(ctx context.Context, customerID string) (*model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, c, _, err := s.findCustomerRow(customerID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *XLSXStore) UpdateCustomer(ctx context.Context, customerID string, upd model.CustomerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, _, cols, err := s.findCustomerRow(customerID)
	if err != nil {
		return err
	}

	if upd.PipelineStage != nil {
		setCell(row, cols, "pipeline_stage", strconv.Itoa(*upd.PipelineStage))
	}
	if upd.Engagement != "" {
		setCell(row, cols, "engagement_level", string(upd.Engagement))
	}

	return s.save()
}

// InsertCustomer adds a customer row; used by migrations and tests.
func (s *XLSXStore) InsertCustomer(ctx context.Context, c model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, cols, err := s.sheet(customerSheetName)
	if err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	row := sheet.AddRow()
	for range cols {
		row.AddCell()
	}
	setCell(row, cols, "customer_id", c.ID)
	setCell(row, cols, "company_name", c.CompanyName)
	setCell(row, cols, "contact_name", c.ContactName)
	setCell(row, cols, "contact_email", c.ContactEmail)
	setCell(row, cols, "industry", c.Industry)
	setCell(row, cols, "country", c.Country)
	setCell(row, cols, "pipeline_stage", strconv.Itoa(c.PipelineStage))
	setCell(row, cols, "engagement_level", string(c.Engagement))
	setCell(row, cols, "salesforce_id", c.SalesforceID)
	setCell(row, cols, "notes", c.Notes)

	return s.save()
}

// internals

func (s *XLSXStore) save() error {
	return eris.Wrapf(s.file.Save(s.path), "xlsx: save %s", s.path)
}

// sheet returns the named sheet plus a header-name -> column-index map.
func (s *XLSXStore) sheet(name string) (*xlsx.Sheet, map[string]int, error) {
	sheet, ok := s.file.Sheet[name]
	if !ok {
		return nil, nil, eris.Errorf("xlsx: sheet %q not found (run migrate first)", name)
	}
	if len(sheet.Rows) == 0 {
		return nil, nil, eris.Errorf("xlsx: sheet %q has no header row", name)
	}
	cols := make(map[string]int, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		cols[strings.TrimSpace(strings.ToLower(cell.String()))] = i
	}
	return sheet, cols, nil
}

func (s *XLSXStore) findTrackingRow(emailID string) (*xlsx.Row, *model.TrackingRecord, map[string]int, error) {
	sheet, cols, err := s.sheet(trackingSheetName)
	if err != nil {
		return nil, nil, nil, err
	}
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		if cellValue(row, cols, "email_id") == emailID {
			rec := parseTrackingRow(row, cols)
			return row, &rec, cols, nil
		}
	}
	return nil, nil, nil, eris.Errorf("tracking not found: %s", emailID)
}

func (s *XLSXStore) findCustomerRow(customerID string) (*xlsx.Row, *model.Customer, map[string]int, error) {
	sheet, cols, err := s.sheet(customerSheetName)
	if err != nil {
		return nil, nil, nil, err
	}
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		if cellValue(row, cols, "customer_id") == customerID {
			c := parseCustomerRow(row, cols)
			return row, &c, cols, nil
		}
	}
	return nil, nil, nil, eris.Errorf("customer not found: %s", customerID)
}

func writeTrackingRow(row *xlsx.Row, cols map[string]int, rec model.TrackingRecord) {
	setCell(row, cols, "email_id", rec.EmailID)
	setCell(row, cols, "customer_id", rec.CustomerID)
	setCell(row, cols, "company_name", rec.CompanyName)
	setCell(row, cols, "contact_email", rec.ContactEmail)
	setCell(row, cols, "subject", rec.Subject)
	if !rec.SentDate.IsZero() {
		setCell(row, cols, "sent_date", rec.SentDate.Format(xlsxTimeLayout))
	}
	setCell(row, cols, "pipeline_stage", strconv.Itoa(rec.PipelineStage))
	setCell(row, cols, "email_type", rec.EmailType)
	setCell(row, cols, "attachments", strings.Join(rec.Attachments, "; "))
	setCell(row, cols, "status", string(rec.Status))
	setCell(row, cols, "replied", yesNo(rec.Replied))
	if !rec.ReplyDate.IsZero() {
		setCell(row, cols, "reply_date", rec.ReplyDate.Format(xlsxTimeLayout))
	}
	setCell(row, cols, "reply_content_summary", rec.ReplySummary)
	if rec.DetectedStage > 0 {
		setCell(row, cols, "detected_stage", strconv.Itoa(rec.DetectedStage))
	}
	setCell(row, cols, "next_action", rec.NextAction)
	setCell(row, cols, "ai_confidence", strconv.FormatFloat(rec.AIConfidence, 'f', 2, 64))
	setCell(row, cols, "reviewed_by", rec.ReviewedBy)
}

// parseTrackingRow is the string-to-typed boundary for tracking rows. Every
// malformed cell degrades to a usable default instead of failing the scan:
// the workbook is hand-edited and a single bad cell must not hide a lead.
func parseTrackingRow(row *xlsx.Row, cols map[string]int) model.TrackingRecord {
	rec := model.TrackingRecord{
		EmailID:       cellValue(row, cols, "email_id"),
		CustomerID:    cellValue(row, cols, "customer_id"),
		CompanyName:   cellValue(row, cols, "company_name"),
		ContactEmail:  cellValue(row, cols, "contact_email"),
		Subject:       cellValue(row, cols, "subject"),
		SentDate:      parseCellTime(cellValue(row, cols, "sent_date")),
		PipelineStage: parseCellStage(cellValue(row, cols, "pipeline_stage")),
		EmailType:     cellValue(row, cols, "email_type"),
		Status:        model.EmailStatus(strings.ToLower(cellValue(row, cols, "status"))),
		Replied:       parseCellBool(cellValue(row, cols, "replied")),
		ReplyDate:     parseCellTime(cellValue(row, cols, "reply_date")),
		ReplySummary:  cellValue(row, cols, "reply_content_summary"),
		NextAction:    cellValue(row, cols, "next_action"),
		ReviewedBy:    cellValue(row, cols, "reviewed_by"),
	}
	if v := cellValue(row, cols, "attachments"); v != "" {
		for _, a := range strings.Split(v, ";") {
			if a = strings.TrimSpace(a); a != "" {
				rec.Attachments = append(rec.Attachments, a)
			}
		}
	}
	if n, err := strconv.Atoi(cellValue(row, cols, "detected_stage")); err == nil {
		rec.DetectedStage = n
	}
	if f, err := strconv.ParseFloat(cellValue(row, cols, "ai_confidence"), 64); err == nil {
		rec.AIConfidence = f
	}
	if rec.Status == "" {
		rec.Status = model.StatusQueued
	}
	return rec
}

func parseCustomerRow(row *xlsx.Row, cols map[string]int) model.Customer {
	return model.Customer{
		ID:            cellValue(row, cols, "customer_id"),
		CompanyName:   cellValue(row, cols, "company_name"),
		ContactName:   cellValue(row, cols, "contact_name"),
		ContactEmail:  cellValue(row, cols, "contact_email"),
		Industry:      cellValue(row, cols, "industry"),
		Country:       cellValue(row, cols, "country"),
		PipelineStage: parseCellStage(cellValue(row, cols, "pipeline_stage")),
		Engagement:    model.Engagement(strings.ToUpper(cellValue(row, cols, "engagement_level"))),
		SalesforceID:  cellValue(row, cols, "salesforce_id"),
		Notes:         cellValue(row, cols, "notes"),
	}
}

func cellValue(row *xlsx.Row, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[idx].String())
}

func setCell(row *xlsx.Row, cols map[string]int, name, value string) {
	idx, ok := cols[name]
	if !ok {
		return
	}
	for len(row.Cells) <= idx {
		row.AddCell()
	}
	row.Cells[idx].SetString(value)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// parseCellStage parses a stage number, defaulting to 1 on anything
// non-numeric.
func parseCellStage(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func parseCellBool(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}

func parseCellTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{xlsxTimeLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
