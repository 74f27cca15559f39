package webhook

import (
	"context"
	"encoding/xml"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	calls  []string
	reply  string
	panics bool
}

func (h *recordingHandler) Handle(_ context.Context, senderID, text string) string {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, senderID+"|"+text)
	return h.reply
}

func (h *recordingHandler) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func postForm(t *testing.T, handler http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, body string) string {
	t.Helper()
	var resp twiml
	require.NoError(t, xml.Unmarshal([]byte(body), &resp))
	return resp.Message
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	t.Run("routes body and sender", func(t *testing.T) {
		t.Parallel()
		h := &recordingHandler{reply: "⏳ Adding expense...\n\nDescription: <labour & 'work'>"}

		rec := postForm(t, NewRouter(h), url.Values{
			"Body": {"  Paid 4000 rs for labour work  "},
			"From": {"whatsapp:+919800000001"},
		})

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
		require.True(t, strings.HasPrefix(rec.Body.String(), "<?xml"))
		require.Equal(t, h.reply, decodeMessage(t, rec.Body.String()))
		require.Equal(t, []string{"whatsapp:+919800000001|Paid 4000 rs for labour work"}, h.recorded())
	})

	t.Run("empty body gets static prompt", func(t *testing.T) {
		t.Parallel()
		h := &recordingHandler{}

		rec := postForm(t, NewRouter(h), url.Values{"Body": {"   "}, "From": {"x"}})

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, emptyPrompt, decodeMessage(t, rec.Body.String()))
		require.Empty(t, h.recorded())
	})

	t.Run("missing sender is rejected", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			form url.Values
		}{
			{name: "no from field", form: url.Values{"Body": {"today"}}},
			{name: "blank from field", form: url.Values{"Body": {"Diesel 1200"}, "From": {"   "}}},
			{name: "blank from and body", form: url.Values{"Body": {""}, "From": {""}}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				h := &recordingHandler{reply: "ok"}

				rec := postForm(t, NewRouter(h), tt.form)

				require.Equal(t, http.StatusBadRequest, rec.Code)
				require.Contains(t, rec.Body.String(), "missing sender")
				require.Empty(t, h.recorded())
			})
		}
	})

	t.Run("handler panic is recovered", func(t *testing.T) {
		t.Parallel()
		h := &recordingHandler{panics: true}

		rec := postForm(t, NewRouter(h), url.Values{"Body": {"today"}, "From": {"x"}})
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("get is not allowed", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		NewRouter(&recordingHandler{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestStaticRoutes(t *testing.T) {
	t.Parallel()

	handler := NewRouter(&recordingHandler{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, bannerText, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestServer_RunAndShutdown(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := New(addr, &recordingHandler{reply: "hi"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + addr + "/health")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.JSONEq(t, `{"status":"healthy"}`, string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
