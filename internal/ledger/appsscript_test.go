package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

func sampleExpense() models.Expense {
	return models.Expense{
		Date:        time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("4000"),
		Description: "labour work",
		Category:    "Labour",
	}
}

func TestAppsScriptClient_AppendExpense(t *testing.T) {
	t.Parallel()

	t.Run("posts canonical payload", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "add_expense", body["action"])
			assert.Equal(t, "02-10-2025", body["date"])
			assert.Equal(t, "4000", body["amount"])
			assert.Equal(t, "labour work", body["description"])
			assert.Equal(t, "Labour", body["category"])
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		client := NewAppsScriptClient(server.URL, time.Second)
		require.NoError(t, client.AppendExpense(context.Background(), sampleExpense()))
	})

	t.Run("non 200 is a write failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewAppsScriptClient(server.URL, time.Second)
		err := client.AppendExpense(context.Background(), sampleExpense())
		require.ErrorIs(t, err, ErrWriteFailed)
		require.Contains(t, err.Error(), "status 500")
	})

	t.Run("rejects incomplete expense without calling out", func(t *testing.T) {
		t.Parallel()

		called := false
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			called = true
		}))
		defer server.Close()

		e := sampleExpense()
		e.Category = models.OtherCategory

		client := NewAppsScriptClient(server.URL, time.Second)
		err := client.AppendExpense(context.Background(), e)
		require.ErrorIs(t, err, ErrWriteFailed)
		require.False(t, called)
	})

	t.Run("timeout is a write failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewAppsScriptClient(server.URL, 20*time.Millisecond)
		err := client.AppendExpense(context.Background(), sampleExpense())
		require.ErrorIs(t, err, ErrWriteFailed)
	})
}

func TestAppsScriptClient_SaveCustomCategory(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "save_custom_category", body["action"])
		assert.Equal(t, "Scaffolding", body["category_name"])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewAppsScriptClient(server.URL, time.Second)
	require.NoError(t, client.SaveCustomCategory(context.Background(), "Scaffolding"))
}

func TestAppsScriptClient_ListExpenses(t *testing.T) {
	t.Parallel()

	t.Run("decodes mixed value types", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "get_expenses", r.URL.Query().Get("action"))
			_, _ = w.Write([]byte(`[
				{"date":"16-10-2026","amount":4000,"description":"labour","category":"Labour"},
				{"date":"2026-10-15T18:30:00.000Z","amount":"250.5","description":"diesel","category":"Fuel"},
				{"date":null,"amount":true,"description":"odd","category":"Other"}
			]`))
		}))
		defer server.Close()

		client := NewAppsScriptClient(server.URL, time.Second)
		rows, err := client.ListExpenses(context.Background())
		require.NoError(t, err)
		require.Len(t, rows, 3)
		require.Equal(t, models.LedgerRow{Date: "16-10-2026", Amount: "4000", Description: "labour", Category: "Labour"}, rows[0])
		require.Equal(t, "250.5", rows[1].Amount)
		require.Equal(t, "", rows[2].Date)
		require.Equal(t, "true", rows[2].Amount)
	})

	t.Run("keeps existing query parameters", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "abc", r.URL.Query().Get("key"))
			assert.Equal(t, "get_expenses", r.URL.Query().Get("action"))
			_, _ = w.Write([]byte(`[]`))
		}))
		defer server.Close()

		client := NewAppsScriptClient(server.URL+"/exec?key=abc", time.Second)
		rows, err := client.ListExpenses(context.Background())
		require.NoError(t, err)
		require.Empty(t, rows)
	})

	t.Run("bad json is a read failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>error</html>`))
		}))
		defer server.Close()

		client := NewAppsScriptClient(server.URL, time.Second)
		_, err := client.ListExpenses(context.Background())
		require.ErrorIs(t, err, ErrReadFailed)
	})

	t.Run("non 200 is a read failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewAppsScriptClient(server.URL, time.Second)
		_, err := client.ListExpenses(context.Background())
		require.ErrorIs(t, err, ErrReadFailed)
		require.Contains(t, err.Error(), "status 502")
	})
}

func TestAppsScriptClient_CustomCategories(t *testing.T) {
	t.Parallel()

	t.Run("preserves key order", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "get_custom_categories", r.URL.Query().Get("action"))
			_, _ = w.Write([]byte(`{"Scaffolding":{"created_at":"2026-01-01"},"Cement":{},"Paint":"x","  ":{}}`))
		}))
		defer server.Close()

		client := NewAppsScriptClient(server.URL, time.Second)
		got, err := client.CustomCategories(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 3)
		require.Equal(t, "Scaffolding", got[0].Name)
		require.Equal(t, "2026-01-01", got[0].Meta["created_at"])
		require.Equal(t, "Cement", got[1].Name)
		require.Equal(t, "Paint", got[2].Name)
		require.Equal(t, "x", got[2].Meta["value"])
	})

	t.Run("empty object", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := NewAppsScriptClient(server.URL, time.Second)
		got, err := client.CustomCategories(context.Background())
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("array payload is a read failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`["Scaffolding"]`))
		}))
		defer server.Close()

		client := NewAppsScriptClient(server.URL, time.Second)
		_, err := client.CustomCategories(context.Background())
		require.ErrorIs(t, err, ErrReadFailed)
		require.ErrorIs(t, err, errNotObject)
	})
}
