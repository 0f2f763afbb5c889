package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// healthResponse is served on /health.
type healthResponse struct {
	Status          string `json:"status"`
	PollInterval    string `json:"poll_interval"`
	PendingTasks    int    `json:"pending_tasks"`
	AwaitingOTP     bool   `json:"awaiting_otp"`
	KnownVacancies  int    `json:"known_vacancies"`
	SMSCircuitState string `json:"sms_circuit_state,omitempty"`
}

// statusSource gathers the live values reported on /health.
type statusSource struct {
	pollInterval   func() time.Duration
	pendingTasks   func() int
	awaitingOTP    func() bool
	knownVacancies func() int
	smsState       func() string
}

func newStatusMux(src statusSource) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler(src))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("🤖 Housemanship bot is running!"))
	})
	return mux
}

func healthHandler(src statusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:         "ok",
			PollInterval:   src.pollInterval().String(),
			PendingTasks:   src.pendingTasks(),
			AwaitingOTP:    src.awaitingOTP(),
			KnownVacancies: src.knownVacancies(),
		}
		if src.smsState != nil {
			resp.SMSCircuitState = src.smsState()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// startStatusServer serves /, /health and /metrics until ctx is cancelled.
func startStatusServer(ctx context.Context, addr string, src statusSource, logger *logrus.Entry) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           newStatusMux(src),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		logger.WithField("addr", addr).Info("Status server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Status server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Status server shutdown error")
		}
	}()

	return server
}
