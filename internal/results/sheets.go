package results

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/m3rciful/cxbot/core/telegram/netutil"
	"github.com/m3rciful/cxbot/internal/delivery"
)

// SheetsConfig selects the spreadsheet and credentials for the sink.
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id" envconfig:"SHEET_ID"`
	Worksheet     string `yaml:"worksheet" envconfig:"SHEETS_WORKSHEET"`
	// CredentialsJSON is the inline service-account key; CredentialsFile is
	// the on-disk alternative. JSON wins when both are set.
	CredentialsJSON string `yaml:"credentials_json" envconfig:"GCP_SERVICE_ACCOUNT"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"GCP_CREDENTIALS_FILE"`
}

const defaultWorksheet = "STAT"

// SheetsSink appends one RAW row per outcome to a Google Sheets worksheet.
// Transient failures are retried under the shared policy budget; the caller
// (the dispatcher) swallows whatever still fails.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
	policy        delivery.Policy
}

// NewSheetsSink builds the Sheets client from the configured credentials.
func NewSheetsSink(ctx context.Context, cfg SheetsConfig, policy delivery.Policy) (*SheetsSink, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("results: spreadsheet_id is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("results: sheets client: %w", err)
	}

	worksheet := cfg.Worksheet
	if worksheet == "" {
		worksheet = defaultWorksheet
	}
	if policy.MaxAttempts <= 0 {
		policy = delivery.DefaultPolicy()
	}

	return &SheetsSink{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		worksheet:     worksheet,
		policy:        policy,
	}, nil
}

// Record appends [ts, user_id, username, role, correct, errors]. A fresh
// spreadsheet has no worksheet tab yet: the first append fails, the tab is
// created once, and the append is retried.
func (s *SheetsSink) Record(ctx context.Context, o Outcome) error {
	row := []interface{}{
		o.CompletedAt.UTC().Format(time.RFC3339),
		strconv.FormatInt(o.UserID, 10),
		o.Username,
		o.Role,
		strconv.Itoa(o.Correct),
		strconv.Itoa(o.Errors),
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}

	createTried := false
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := s.append(ctx, vr)
		if err == nil {
			return nil
		}
		if !createTried && missingWorksheet(err) {
			createTried = true
			if cerr := s.ensureWorksheet(ctx); cerr == nil {
				continue
			}
		}
		lastErr = err
		if !retryable(err) {
			return lastErr
		}
		delay, ok := s.policy.Backoff(attempt, err)
		if !ok {
			return lastErr
		}
		if serr := delivery.Sleep(ctx, delay); serr != nil {
			return lastErr
		}
	}
}

func (s *SheetsSink) append(ctx context.Context, vr *sheets.ValueRange) error {
	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.worksheet, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// ensureWorksheet adds the worksheet tab. Another writer winning the race is
// fine: "already exists" counts as success.
func (s *SheetsSink) ensureWorksheet(ctx context.Context) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: s.worksheet},
			},
		}},
	}
	_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	if err != nil && worksheetExists(err) {
		return nil
	}
	return err
}

// missingWorksheet matches the 400 the values API answers when the A1 range
// names a tab that does not exist.
func missingWorksheet(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != 400 {
		return false
	}
	return strings.Contains(apiErr.Message, "Unable to parse range")
}

func worksheetExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 400 &&
		strings.Contains(apiErr.Message, "already exists")
}

// retryable covers transient sheet-store failures: quota pushback, server
// errors, and plain transport trouble.
func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return netutil.ShouldRetry(err)
}
