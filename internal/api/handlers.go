package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	breakersvc "reaper/internal/services/breaker"
	ledgersvc "reaper/internal/services/ledger"
	resetsvc "reaper/internal/services/reset"
	scansvc "reaper/internal/services/scan"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

type handlers struct {
	ledger  *ledgersvc.Service
	scans   *scansvc.Service
	reset   *resetsvc.Service
	breaker *breakersvc.Service
	log     *logger.Logger
}

type enterRequest struct {
	Owner  uuid.UUID       `json:"owner"`
	Level  int             `json:"level"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *handlers) enter(w http.ResponseWriter, r *http.Request) {
	var req enterRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.ledger.Enter(r.Context(), req.Owner, req.Level, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type stakeRequest struct {
	Owner  uuid.UUID       `json:"owner"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *handlers) addStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.ledger.AddStake(r.Context(), req.Owner, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type ownerRequest struct {
	Owner uuid.UUID `json:"owner"`
}

func (h *handlers) extract(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if !decode(w, r, &req) {
		return
	}

	paid, err := h.ledger.Extract(r.Context(), req.Owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"paid": paid})
}

func (h *handlers) claimRewards(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if !decode(w, r, &req) {
		return
	}

	claimed, err := h.ledger.ClaimRewards(r.Context(), req.Owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"claimed": claimed})
}

func (h *handlers) getPosition(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathUUID(w, r, "owner")
	if !ok {
		return
	}

	p, err := h.ledger.GetPosition(r.Context(), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathUUID(w, r, "owner")
	if !ok {
		return
	}

	positions, err := h.ledger.History(r.Context(), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (h *handlers) levels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.ledger.Levels(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

func (h *handlers) executeScan(w http.ResponseWriter, r *http.Request) {
	lvl, ok := pathLevel(w, r)
	if !ok {
		return
	}

	sc, err := h.scans.ExecuteScan(r.Context(), lvl)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (h *handlers) activateScan(w http.ResponseWriter, r *http.Request) {
	lvl, ok := pathLevel(w, r)
	if !ok {
		return
	}

	sc, err := h.scans.ActivateScan(r.Context(), lvl)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

type deathsRequest struct {
	Owners []uuid.UUID `json:"owners"`
}

func (h *handlers) submitDeaths(w http.ResponseWriter, r *http.Request) {
	lvl, ok := pathLevel(w, r)
	if !ok {
		return
	}
	var req deathsRequest
	if !decode(w, r, &req) {
		return
	}

	accepted, err := h.scans.SubmitDeaths(r.Context(), lvl, req.Owners)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": accepted})
}

func (h *handlers) finalizeScan(w http.ResponseWriter, r *http.Request) {
	lvl, ok := pathLevel(w, r)
	if !ok {
		return
	}

	sc, err := h.scans.FinalizeScan(r.Context(), lvl)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *handlers) openScan(w http.ResponseWriter, r *http.Request) {
	lvl, ok := pathLevel(w, r)
	if !ok {
		return
	}

	sc, err := h.scans.OpenScan(r.Context(), lvl)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *handlers) getScan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	sc, deaths, err := h.scans.GetScan(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"scan": sc, "deaths": deaths})
}

func (h *handlers) resetTimer(w http.ResponseWriter, r *http.Request) {
	timer, err := h.reset.Timer(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timer)
}

func (h *handlers) triggerReset(w http.ResponseWriter, r *http.Request) {
	epoch, err := h.reset.TriggerReset(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, epoch)
}

func (h *handlers) breakerState(w http.ResponseWriter, r *http.Request) {
	state, err := h.breaker.State(r.Context())
	if errors.Is(err, errors.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"tripped": false})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *handlers) listProposals(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	proposals, err := h.breaker.Proposals(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

type proposeRequest struct {
	Proposer string `json:"proposer"`
}

func (h *handlers) proposeReset(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.breaker.ProposeReset(r.Context(), req.Proposer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type vetoRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) vetoReset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req vetoRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.breaker.VetoReset(r.Context(), id, req.Reason); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "vetoed"})
}

func (h *handlers) executeReset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.breaker.ExecuteReset(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "executed"})
}

func (h *handlers) resetCounters(w http.ResponseWriter, r *http.Request) {
	if err := h.breaker.ResetPayoutCounters(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[key])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + key})
		return uuid.Nil, false
	}
	return id, true
}

func pathLevel(w http.ResponseWriter, r *http.Request) (int, bool) {
	lvl, err := strconv.Atoi(mux.Vars(r)["level"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid level"})
		return 0, false
	}
	return lvl, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto HTTP status codes
func (h *handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, errors.ErrPositionNotFound),
		errors.Is(err, errors.ErrScanNotFound),
		errors.Is(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidLevel),
		errors.Is(err, errors.ErrStakeTooSmall),
		errors.Is(err, errors.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrPositionExists),
		errors.Is(err, errors.ErrScanActive),
		errors.Is(err, errors.ErrPositionLocked),
		errors.Is(err, errors.ErrWindowClosed),
		errors.Is(err, errors.ErrWindowOpen),
		errors.Is(err, errors.ErrScanNotDue),
		errors.Is(err, errors.ErrSeedNotReady),
		errors.Is(err, errors.ErrSeedAlreadySet),
		errors.Is(err, errors.ErrDeadlineNotReached),
		errors.Is(err, errors.ErrTimelockActive),
		errors.Is(err, errors.ErrProposalExpired),
		errors.Is(err, errors.ErrProposalVetoed),
		errors.Is(err, errors.ErrProposalExecuted),
		errors.Is(err, errors.ErrProposalInvalidated),
		errors.Is(err, errors.ErrBreakerNotTripped):
		status = http.StatusConflict
	case errors.Is(err, errors.ErrBreakerTripped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrTransferFailed),
		errors.Is(err, errors.ErrInsufficientBalance):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.log.Errorf("Request failed: %v", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
