// Package handlers exposes the professionals catalog. Listing and reads are
// public; creation is restricted to admins (role injected by the gateway).
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/serenio-health/serenio/services/directory-service/internal/storage"
)

type ProfessionalHandler struct {
	logger *slog.Logger
	repo   *storage.Repository
}

func NewProfessionalHandler(logger *slog.Logger, repo *storage.Repository) *ProfessionalHandler {
	return &ProfessionalHandler{logger: logger, repo: repo}
}

func (h *ProfessionalHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/professionals", h.List)
	mux.HandleFunc("GET /api/v1/professionals/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/professionals", h.Create)
}

func (h *ProfessionalHandler) List(w http.ResponseWriter, r *http.Request) {
	pros, err := h.repo.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("specialization")))
	if err != nil {
		h.logger.Error("professionals list failed", "err", err)
		http.Error(w, "failed to list professionals", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pros)
}

func (h *ProfessionalHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "professional not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("professional get failed", "err", err)
		http.Error(w, "failed to load professional", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type createRequest struct {
	Name           string  `json:"name"`
	Specialization string  `json:"specialization"`
	Rating         float64 `json:"rating"`
	Reviews        int     `json:"reviews"`
	Experience     string  `json:"experience"`
	Bio            string  `json:"bio"`
	ImageURL       string  `json:"imageUrl"`
}

func (h *ProfessionalHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Role") != "Admin" {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Specialization = strings.TrimSpace(req.Specialization)
	if req.Name == "" || req.Specialization == "" {
		http.Error(w, "name and specialization required", http.StatusBadRequest)
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		http.Error(w, "rating must be between 0 and 5", http.StatusBadRequest)
		return
	}

	p, err := h.repo.Create(r.Context(), storage.Professional{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Specialization: req.Specialization,
		Rating:         req.Rating,
		Reviews:        req.Reviews,
		Experience:     req.Experience,
		Bio:            req.Bio,
		ImageURL:       req.ImageURL,
	})
	if err != nil {
		h.logger.Error("professional create failed", "err", err)
		http.Error(w, "failed to create professional", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
