// Package webhook exposes the chat router over a Twilio-style HTTP webhook.
package webhook

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gitlab.com/yelinaung/ledger-chat/internal/logger"
)

const (
	// maxFormBytes bounds the inbound form body.
	maxFormBytes = 64 << 10

	shutdownTimeout = 10 * time.Second

	bannerText  = "WhatsApp Expense Tracker is running! 🚀"
	emptyPrompt = "Please send me an expense message! Example: 'Paid 4000 rs for labour work on 2nd Oct 2025'"
)

// MessageHandler turns one inbound message into a reply.
type MessageHandler interface {
	Handle(ctx context.Context, senderID, text string) string
}

type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// NewRouter builds the HTTP routes, instrumented with OpenTelemetry.
func NewRouter(h MessageHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(bannerText))
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Post("/webhook", webhookHandler(h))

	return otelhttp.NewHandler(r, "webhook")
}

func webhookHandler(h MessageHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form data", http.StatusBadRequest)
			return
		}

		body := strings.TrimSpace(r.PostFormValue("Body"))
		sender := strings.TrimSpace(r.PostFormValue("From"))

		// Sessions are keyed by sender, so a request without one cannot be routed.
		if sender == "" {
			logger.Log.Warn().Str("request_id", middleware.GetReqID(r.Context())).Msg("Webhook request without sender rejected")
			http.Error(w, "missing sender", http.StatusBadRequest)
			return
		}
		if body == "" {
			writeTwiML(w, emptyPrompt)
			return
		}

		logger.Log.Debug().
			Str("sender_hash", logger.HashSender(sender)).
			Str("body", logger.SanitizeText(body)).
			Msg("Inbound message")

		writeTwiML(w, h.Handle(r.Context(), sender, body))
	}
}

func writeTwiML(w http.ResponseWriter, message string) {
	out, err := xml.Marshal(twiml{Message: message})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to encode TwiML")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		logger.Log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// Server runs the webhook until its context is cancelled.
type Server struct {
	srv *http.Server
}

// New creates a Server listening on addr.
func New(addr string, h MessageHandler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
		},
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("addr", s.srv.Addr).Msg("Webhook server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
