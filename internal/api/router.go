package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"reaper/internal/adapters/config"
	"reaper/internal/api/health"
	"reaper/internal/metrics"
	breakersvc "reaper/internal/services/breaker"
	ledgersvc "reaper/internal/services/ledger"
	resetsvc "reaper/internal/services/reset"
	scansvc "reaper/internal/services/scan"
	"reaper/pkg/logger"
)

// NewRouter wires all HTTP routes. Position and crank endpoints are open;
// breaker governance requires an operator or guardian key.
func NewRouter(
	cfg config.APIConfig,
	ledger *ledgersvc.Service,
	scans *scansvc.Service,
	reset *resetsvc.Service,
	breaker *breakersvc.Service,
	healthHandler *health.Handler,
	log *logger.Logger,
) http.Handler {
	h := &handlers{
		ledger:  ledger,
		scans:   scans,
		reset:   reset,
		breaker: breaker,
		log:     log.With("component", "api"),
	}

	r := mux.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(rateLimitMiddleware(cfg.RateLimitRPS, cfg.RateBurst))

	// Probes and metrics
	r.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", healthHandler.HandleReadiness).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Positions
	v1.HandleFunc("/positions", h.enter).Methods(http.MethodPost)
	v1.HandleFunc("/positions/stake", h.addStake).Methods(http.MethodPost)
	v1.HandleFunc("/positions/extract", h.extract).Methods(http.MethodPost)
	v1.HandleFunc("/positions/claim", h.claimRewards).Methods(http.MethodPost)
	v1.HandleFunc("/positions/{owner}", h.getPosition).Methods(http.MethodGet)
	v1.HandleFunc("/positions/{owner}/history", h.history).Methods(http.MethodGet)

	// Levels
	v1.HandleFunc("/levels", h.levels).Methods(http.MethodGet)

	// Scan cranks, permissionless by design
	v1.HandleFunc("/levels/{level}/scan/execute", h.executeScan).Methods(http.MethodPost)
	v1.HandleFunc("/levels/{level}/scan/activate", h.activateScan).Methods(http.MethodPost)
	v1.HandleFunc("/levels/{level}/scan/deaths", h.submitDeaths).Methods(http.MethodPost)
	v1.HandleFunc("/levels/{level}/scan/finalize", h.finalizeScan).Methods(http.MethodPost)
	v1.HandleFunc("/levels/{level}/scan", h.openScan).Methods(http.MethodGet)
	v1.HandleFunc("/scans/{id}", h.getScan).Methods(http.MethodGet)

	// Reset
	v1.HandleFunc("/reset/timer", h.resetTimer).Methods(http.MethodGet)
	v1.HandleFunc("/reset/trigger", h.triggerReset).Methods(http.MethodPost)

	// Breaker governance
	v1.HandleFunc("/breaker", h.breakerState).Methods(http.MethodGet)
	v1.HandleFunc("/breaker/proposals", h.listProposals).Methods(http.MethodGet)

	operator := requireKey(cfg.OperatorKeys)
	guardian := requireKey(cfg.GuardianKeys)

	v1.Handle("/breaker/proposals", operator(http.HandlerFunc(h.proposeReset))).Methods(http.MethodPost)
	v1.Handle("/breaker/proposals/{id}/execute", operator(http.HandlerFunc(h.executeReset))).Methods(http.MethodPost)
	v1.Handle("/breaker/proposals/{id}/veto", guardian(http.HandlerFunc(h.vetoReset))).Methods(http.MethodPost)
	v1.Handle("/breaker/counters/reset", operator(http.HandlerFunc(h.resetCounters))).Methods(http.MethodPost)

	return r
}
