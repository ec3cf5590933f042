package questions

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dmv-prep/backend/internal/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	bank     *Bank
	training *TrainingSelector
}

func NewHandler(bank *Bank, training *TrainingSelector) *Handler {
	return &Handler{bank: bank, training: training}
}

func (h *Handler) ListStates(w http.ResponseWriter, r *http.Request) {
	states := h.bank.States()
	out := make([]models.StateSummary, 0, len(states))
	for _, s := range states {
		out = append(out, models.StateSummary{
			State:         s,
			PoolSize:      len(h.bank.Pool(s)),
			StateSpecific: h.bank.StateSize(s),
			TrainingSets:  len(h.training.Sets(s)),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	state := strings.ToUpper(mux.Vars(r)["state"])
	if !h.bank.HasState(state) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Unknown state"})
		return
	}
	writeJSON(w, http.StatusOK, models.StateSummary{
		State:         state,
		PoolSize:      len(h.bank.Pool(state)),
		StateSpecific: h.bank.StateSize(state),
		TrainingSets:  len(h.training.Sets(state)),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
