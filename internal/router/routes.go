package router

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/avask/reqkey/api/v1"
	"github.com/avask/reqkey/internal/auth"
	"github.com/avask/reqkey/internal/events"
	"github.com/avask/reqkey/internal/repo"
	"github.com/avask/reqkey/internal/service"
)

// New sets up the application routes and required middleware.
func New(logger *slog.Logger, keyingSvc service.Keying, store repo.RequestRepo, hub *events.Hub) *mux.Router {

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write healthz response", "err", err)
		}
	}).Methods("GET")

	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			logger.Error("readiness check failed", "err", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write readyz response", "err", err)
		}
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	keyHandler := v1.NewKeyHandler(logger, keyingSvc, hub)

	// Correlation runs outermost so access logs can pick the ID up.
	r.Use(v1.CorrelationID)
	r.Use(keyHandler.Log)
	r.Use(auth.Middleware)

	api := r.PathPrefix("/v1").Subrouter()

	// GETs
	get := api.Methods("GET").Subrouter()
	get.HandleFunc("/requests", keyHandler.ListRequests)
	get.HandleFunc("/requests/{id:[A-Za-z0-9]+}", keyHandler.GetRequest)
	get.HandleFunc("/events", keyHandler.StreamEvents)

	// POSTs carrying a full request body
	post := api.Methods("POST").Subrouter()
	post.HandleFunc("/keys", keyHandler.ComputeKey)
	post.HandleFunc("/requests", keyHandler.RegisterRequest)
	post.Use(v1.MiddlewareRequestValidation)

	// POST /normalize has its own, smaller body contract.
	normalize := api.Methods("POST").PathPrefix("/normalize").Subrouter()
	normalize.HandleFunc("", keyHandler.Normalize)
	normalize.Use(v1.MiddlewareNormalizeValidation)

	return r
}
