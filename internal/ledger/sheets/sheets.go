// Package sheets implements the ledger on top of a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gitlab.com/yelinaung/ledger-chat/internal/ledger"
	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

const (
	valueInputRaw    = "RAW"
	insertDataAppend = "INSERT_ROWS"
)

// Ensure interface conformance.
var _ ledger.Store = (*Client)(nil)

// Config names the spreadsheet and its tabs.
type Config struct {
	SpreadsheetID   string
	ExpensesSheet   string
	CategoriesSheet string
	Timeout         time.Duration
}

// Client reads and writes ledger rows through the Sheets API.
// Expenses live in columns A:D (date, amount, description, category) and
// custom categories in columns A:B (name, created_at), each under a header row.
type Client struct {
	svc             *gsheet.Service
	spreadsheetID   string
	expensesSheet   string
	categoriesSheet string
	timeout         time.Duration
}

// CredentialOptions returns the client options for a service account key.
func CredentialOptions(serviceAccountJSON []byte) []goption.ClientOption {
	return []goption.ClientOption{
		goption.WithCredentialsJSON(serviceAccountJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}
}

// New creates a Sheets-backed ledger.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.ExpensesSheet == "" {
		cfg.ExpensesSheet = "Expenses"
	}
	if cfg.CategoriesSheet == "" {
		cfg.CategoriesSheet = "Categories"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:             svc,
		spreadsheetID:   cfg.SpreadsheetID,
		expensesSheet:   cfg.ExpensesSheet,
		categoriesSheet: cfg.CategoriesSheet,
		timeout:         cfg.Timeout,
	}, nil
}

// AppendExpense appends one row to the expenses tab.
func (c *Client) AppendExpense(ctx context.Context, e models.Expense) error {
	if !e.IsComplete() {
		return fmt.Errorf("%w: expense is incomplete", ledger.ErrWriteFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rng := fmt.Sprintf("%s!A:D", c.expensesSheet)
	vr := &gsheet.ValueRange{Values: [][]any{{
		e.FormattedDate(),
		e.Amount.String(),
		e.Description,
		e.Category,
	}}}

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertDataAppend).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%w: append %s: %w", ledger.ErrWriteFailed, rng, err)
	}
	return nil
}

// ListExpenses reads every expense row below the header.
func (c *Client) ListExpenses(ctx context.Context) ([]models.LedgerRow, error) {
	values, err := c.read(ctx, fmt.Sprintf("%s!A2:D", c.expensesSheet))
	if err != nil {
		return nil, err
	}

	rows := make([]models.LedgerRow, 0, len(values))
	for _, raw := range values {
		cells := toStrings(raw, 4)
		if cells[0] == "" && cells[1] == "" && cells[2] == "" && cells[3] == "" {
			continue
		}
		rows = append(rows, models.LedgerRow{
			Date:        cells[0],
			Amount:      cells[1],
			Description: cells[2],
			Category:    cells[3],
		})
	}
	return rows, nil
}

// CustomCategories reads the categories tab in sheet order.
func (c *Client) CustomCategories(ctx context.Context) ([]models.CustomCategory, error) {
	values, err := c.read(ctx, fmt.Sprintf("%s!A2:B", c.categoriesSheet))
	if err != nil {
		return nil, err
	}

	var out []models.CustomCategory
	for _, raw := range values {
		cells := toStrings(raw, 2)
		if cells[0] == "" {
			continue
		}
		meta := map[string]any{}
		if cells[1] != "" {
			meta["created_at"] = cells[1]
		}
		out = append(out, models.CustomCategory{Name: cells[0], Meta: meta})
	}
	return out, nil
}

// SaveCustomCategory appends name to the categories tab.
func (c *Client) SaveCustomCategory(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rng := fmt.Sprintf("%s!A:B", c.categoriesSheet)
	vr := &gsheet.ValueRange{Values: [][]any{{
		name,
		time.Now().UTC().Format(time.RFC3339),
	}}}

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertDataAppend).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%w: append %s: %w", ledger.ErrWriteFailed, rng, err)
	}
	return nil
}

func (c *Client) read(ctx context.Context, rng string) ([][]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ledger.ErrReadFailed, rng, err)
	}
	return resp.Values, nil
}

// toStrings pads or truncates a row to width trimmed cells.
func toStrings(in []any, width int) []string {
	out := make([]string, width)
	for i := 0; i < width && i < len(in); i++ {
		if in[i] == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(in[i]))
	}
	return out
}
