package sessions

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/dmv-prep/backend/internal/middleware"
	"github.com/dmv-prep/backend/internal/models"
	"github.com/dmv-prep/backend/internal/questions"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the authenticated progress, test and training routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/progress", h.GetProgress).Methods("GET")
	r.HandleFunc("/progress/state", h.SelectState).Methods("PUT")

	r.HandleFunc("/tests/{number}/start", h.StartTest).Methods("POST")
	r.HandleFunc("/tests/{number}", h.GetTest).Methods("GET")
	r.HandleFunc("/tests/{number}/answers", h.AnswerTest).Methods("POST")
	r.HandleFunc("/tests/{number}/complete", h.CompleteTest).Methods("POST")

	r.HandleFunc("/training/sets", h.ListTrainingSets).Methods("GET")
	r.HandleFunc("/training/sets/{setId}/next", h.NextTraining).Methods("GET")
	r.HandleFunc("/training/sets/{setId}/answers", h.AnswerTraining).Methods("POST")
}

// ── Progress ───────────────────────────────────────────

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	writeJSON(w, http.StatusOK, h.service.Progress(r.Context(), userID))
}

func (h *Handler) SelectState(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.SelectStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.SelectState(r.Context(), userID, req.State)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Tests ──────────────────────────────────────────────

func (h *Handler) StartTest(w http.ResponseWriter, r *http.Request) {
	userID, testNumber, ok := testRequest(w, r)
	if !ok {
		return
	}
	resp, err := h.service.StartTest(r.Context(), userID, testNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *Handler) GetTest(w http.ResponseWriter, r *http.Request) {
	userID, testNumber, ok := testRequest(w, r)
	if !ok {
		return
	}
	resp, err := h.service.GetTest(r.Context(), userID, testNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) AnswerTest(w http.ResponseWriter, r *http.Request) {
	userID, testNumber, ok := testRequest(w, r)
	if !ok {
		return
	}

	var req models.SubmitTestAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.AnswerTest(r.Context(), userID, testNumber, req.Index, req.Answer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CompleteTest(w http.ResponseWriter, r *http.Request) {
	userID, testNumber, ok := testRequest(w, r)
	if !ok {
		return
	}
	resp, err := h.service.CompleteTest(r.Context(), userID, testNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func testRequest(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return "", 0, false
	}
	n, err := strconv.Atoi(mux.Vars(r)["number"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid test number"})
		return "", 0, false
	}
	return userID, n, true
}

// ── Training ───────────────────────────────────────────

func (h *Handler) ListTrainingSets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	sets, err := h.service.TrainingSets(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (h *Handler) NextTraining(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	resp, err := h.service.NextTraining(r.Context(), userID, mux.Vars(r)["setId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) AnswerTraining(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.SubmitTrainingAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.AnswerTraining(r.Context(), userID, mux.Vars(r)["setId"], req.QuestionID, req.Answer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Helpers ────────────────────────────────────────────

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrStateRequired),
		errors.Is(err, ErrUnknownState),
		errors.Is(err, ErrInvalidAnswer),
		errors.Is(err, questions.ErrInvalidTestNumber),
		errors.Is(err, questions.ErrNotInSet):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrLocked):
		writeJSON(w, http.StatusForbidden, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrNoSession), errors.Is(err, questions.ErrUnknownSet):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrIncompleteSubmission):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, questions.ErrEmptyPool), errors.Is(err, ErrEmptySession):
		writeJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: err.Error()})
	default:
		log.Printf("[sessions] unexpected error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
