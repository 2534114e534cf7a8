package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/givehub/donation-backend/internal/models"
	"github.com/givehub/donation-backend/internal/services"
)

type ReportHandler struct {
	service *services.ReportService
	auth    *Auth
	logger  *logrus.Logger
}

func NewReportHandler(service *services.ReportService, auth *Auth, logger *logrus.Logger) *ReportHandler {
	return &ReportHandler{service: service, auth: auth, logger: logger}
}

func (h *ReportHandler) charityID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return primitive.NilObjectID, false
	}
	if claims.Role != models.RoleCharity {
		writeError(w, http.StatusForbidden, "charity role required")
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(claims.CharityID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token subject")
		return primitive.NilObjectID, false
	}
	return id, true
}

// Create handles POST /api/impact-reports
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	charityID, ok := h.charityID(w, r)
	if !ok {
		return
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Period  string `json:"period"`
		Publish bool   `json:"publish"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.service.Create(r.Context(), charityID, req.Title, req.Content, req.Period, req.Publish)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Errorf("create report failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

// List handles GET /api/impact-reports (public, published only).
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.ListPublished(r.Context())
	if err != nil {
		h.logger.Errorf("list reports failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch reports")
		return
	}
	if reports == nil {
		reports = []models.ImpactReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// Update handles PATCH /api/impact-reports/{reportID}
func (h *ReportHandler) Update(w http.ResponseWriter, r *http.Request) {
	charityID, ok := h.charityID(w, r)
	if !ok {
		return
	}

	reportID, err := primitive.ObjectIDFromHex(mux.Vars(r)["reportID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Period  string `json:"period"`
		Publish *bool  `json:"publish"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.service.Update(r.Context(), reportID, charityID, req.Title, req.Content, req.Period, req.Publish)
	if err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			writeError(w, http.StatusNotFound, "impact report not found")
			return
		}
		h.logger.Errorf("update report failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Delete handles DELETE /api/impact-reports/{reportID}
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	charityID, ok := h.charityID(w, r)
	if !ok {
		return
	}

	reportID, err := primitive.ObjectIDFromHex(mux.Vars(r)["reportID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	if err := h.service.Delete(r.Context(), reportID, charityID); err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			writeError(w, http.StatusNotFound, "impact report not found")
			return
		}
		h.logger.Errorf("delete report failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
