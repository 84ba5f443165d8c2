package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/leadexport-service/internal/delivery/http/request"
	"github.com/user/leadexport-service/internal/delivery/http/response"
	"github.com/user/leadexport-service/internal/repository"
	"github.com/user/leadexport-service/internal/usecase"
)

// Handler serves the job control surface and the credit endpoints. Callers
// are identified by the X-User-ID header; authentication happens upstream.
type Handler struct {
	exports           usecase.ExportManager
	ledger            usecase.CreditLedger
	defaultExportCost int
}

func NewHandler(exports usecase.ExportManager, ledger usecase.CreditLedger, defaultExportCost int) *Handler {
	return &Handler{
		exports:           exports,
		ledger:            ledger,
		defaultExportCost: defaultExportCost,
	}
}

func (h *Handler) HandleRequestExport(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req request.RequestExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeJSONError(w, "query is required", http.StatusBadRequest)
		return
	}
	cost := req.Cost
	if cost == 0 {
		cost = h.defaultExportCost
	}

	job, err := h.exports.RequestExport(r.Context(), usecase.RequestExportInput{
		UserID:           userID,
		TargetBusinessID: req.TargetBusinessID,
		Query:            req.Query,
		Location:         req.Location,
		Cost:             cost,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			// The rejected job is still returned so the caller can show it.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(response.FromJob(job))
			return
		}
		slog.Error("Failed to request export", "user_id", userID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.FromJob(job))
}

func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := h.exports.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeJobError(w, jobID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.FromJob(job))
}

func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	jobs, err := h.exports.ListJobs(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list jobs", "user_id", userID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	out := make([]response.ExportJobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, response.FromJob(job))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.exports.CancelJob(r.Context(), jobID); err != nil {
		h.writeJobError(w, jobID, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	ev, err := h.exports.Progress(r.Context(), jobID)
	if err != nil {
		slog.Error("Failed to read progress", "job_id", jobID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if ev == nil {
		h.writeJSONError(w, "No progress reported yet", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, ev)
}

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	filename, data, err := h.exports.Download(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrArtifactNotFound) {
			h.writeJSONError(w, "Artifact not available", http.StatusNotFound)
			return
		}
		h.writeJobError(w, jobID, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to stream artifact", "job_id", jobID, "error", err)
	}
}

func (h *Handler) HandleStuckJobs(w http.ResponseWriter, r *http.Request) {
	olderThan := 15 * time.Minute
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			h.writeJSONError(w, "Invalid older_than duration", http.StatusBadRequest)
			return
		}
		olderThan = d
	}
	jobs, err := h.exports.StuckJobs(r.Context(), olderThan)
	if err != nil {
		slog.Error("Failed to query stuck jobs", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	out := make([]response.ExportJobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, response.FromJob(job))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to read balance", "user_id", userID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.BalanceResponse{UserID: userID, Balance: balance})
}

func (h *Handler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req request.PurchaseCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		h.writeJSONError(w, "amount must be positive", http.StatusBadRequest)
		return
	}
	tx, err := h.ledger.Purchase(r.Context(), userID, req.Amount, req.Description)
	if err != nil {
		slog.Error("Failed to purchase credits", "user_id", userID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, response.FromTransaction(tx))
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	history, err := h.ledger.History(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to read ledger history", "user_id", userID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	out := make([]response.TransactionResponse, 0, len(history))
	for _, tx := range history {
		out = append(out, response.FromTransaction(tx))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeJSONError(w, "X-User-ID header is required", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}

func (h *Handler) writeJobError(w http.ResponseWriter, jobID string, err error) {
	if errors.Is(err, repository.ErrJobNotFound) {
		h.writeJSONError(w, "Export job not found", http.StatusNotFound)
		return
	}
	slog.Error("Job operation failed", "job_id", jobID, "error", err)
	h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
