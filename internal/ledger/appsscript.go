package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

// Apps Script actions.
const (
	actionAddExpense          = "add_expense"
	actionGetExpenses         = "get_expenses"
	actionGetCustomCategories = "get_custom_categories"
	actionSaveCustomCategory  = "save_custom_category"
)

// maxResponseBytes caps how much of a ledger response is read.
const maxResponseBytes = 4 << 20

var errNotObject = errors.New("expected a JSON object")

// Compile-time check that AppsScriptClient implements Store.
var _ Store = (*AppsScriptClient)(nil)

// AppsScriptClient talks to a spreadsheet-backed Apps Script web app.
type AppsScriptClient struct {
	endpoint   string
	httpClient *http.Client
}

type addExpenseRequest struct {
	Action      string `json:"action"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type saveCategoryRequest struct {
	Action       string `json:"action"`
	CategoryName string `json:"category_name"`
}

// rowResponse accepts amounts and dates as either strings or numbers.
type rowResponse struct {
	Date        flexString `json:"date"`
	Amount      flexString `json:"amount"`
	Description flexString `json:"description"`
	Category    flexString `json:"category"`
}

// flexString decodes a JSON string, number, bool or null into text.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("unsupported value %s", string(data))
	}
	*f = flexString(fmt.Sprint(b))
	return nil
}

// NewAppsScriptClient creates a client for the web app at endpoint.
// Every call is bounded by timeout.
func NewAppsScriptClient(endpoint string, timeout time.Duration) *AppsScriptClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &AppsScriptClient{
		endpoint: strings.TrimSpace(endpoint),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AppendExpense posts a completed expense.
func (c *AppsScriptClient) AppendExpense(ctx context.Context, e models.Expense) error {
	if !e.IsComplete() {
		return fmt.Errorf("%w: expense is incomplete", ErrWriteFailed)
	}

	payload := addExpenseRequest{
		Action:      actionAddExpense,
		Date:        e.FormattedDate(),
		Amount:      e.Amount.String(),
		Description: e.Description,
		Category:    e.Category,
	}

	if err := c.post(ctx, payload); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, actionAddExpense, err)
	}
	return nil
}

// SaveCustomCategory registers a custom category name.
func (c *AppsScriptClient) SaveCustomCategory(ctx context.Context, name string) error {
	payload := saveCategoryRequest{
		Action:       actionSaveCustomCategory,
		CategoryName: name,
	}

	if err := c.post(ctx, payload); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, actionSaveCustomCategory, err)
	}
	return nil
}

// ListExpenses fetches every ledger row.
func (c *AppsScriptClient) ListExpenses(ctx context.Context) ([]models.LedgerRow, error) {
	body, err := c.get(ctx, actionGetExpenses)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, actionGetExpenses, err)
	}

	var payload []rowResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode expenses: %w", ErrReadFailed, err)
	}

	rows := make([]models.LedgerRow, 0, len(payload))
	for _, r := range payload {
		rows = append(rows, models.LedgerRow{
			Date:        string(r.Date),
			Amount:      string(r.Amount),
			Description: string(r.Description),
			Category:    string(r.Category),
		})
	}
	return rows, nil
}

// CustomCategories fetches the category side-table, keeping the key order
// of the returned JSON object.
func (c *AppsScriptClient) CustomCategories(ctx context.Context) ([]models.CustomCategory, error) {
	body, err := c.get(ctx, actionGetCustomCategories)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, actionGetCustomCategories, err)
	}

	categories, err := decodeOrderedCategories(body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode custom categories: %w", ErrReadFailed, err)
	}
	return categories, nil
}

func (c *AppsScriptClient) post(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

func (c *AppsScriptClient) get(ctx context.Context, action string) ([]byte, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("action", action)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req)
}

func (c *AppsScriptClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}

	return body, nil
}

// decodeOrderedCategories walks a JSON object token by token so the
// category order matches the order the ledger wrote the keys in.
func decodeOrderedCategories(body []byte) ([]models.CustomCategory, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	var categories []models.CustomCategory
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", keyTok)
		}

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("category %q: %w", name, err)
		}

		meta, ok := raw.(map[string]any)
		if !ok {
			meta = map[string]any{"value": raw}
		}

		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		categories = append(categories, models.CustomCategory{Name: name, Meta: meta})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return categories, nil
}
