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

type CharityHandler struct {
	service *services.CharityService
	auth    *Auth
	logger  *logrus.Logger
}

func NewCharityHandler(service *services.CharityService, auth *Auth, logger *logrus.Logger) *CharityHandler {
	return &CharityHandler{service: service, auth: auth, logger: logger}
}

// Register handles POST /api/auth/charity/register
func (h *CharityHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterCharityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	charity, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email or registration number already registered")
		default:
			h.logger.Errorf("charity register failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":          charity.ID.Hex(),
		"is_approved": charity.IsApproved,
		"message":     "application submitted, pending admin approval",
	})
}

// Login handles POST /api/auth/charity/login
func (h *CharityHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	charity, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.logger.Errorf("charity login failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := h.auth.IssueToken(charity.ID.Hex(), models.RoleCharity, charity.ID.Hex())
	if err != nil {
		h.logger.Errorf("token issue failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"charity": map[string]interface{}{
			"id":          charity.ID.Hex(),
			"name":        charity.Name,
			"email":       charity.Email,
			"is_approved": charity.IsApproved,
		},
	})
}

// List handles GET /api/charities (public, approved only).
func (h *CharityHandler) List(w http.ResponseWriter, r *http.Request) {
	charities, err := h.service.ListApproved(r.Context())
	if err != nil {
		h.logger.Errorf("list charities failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch charities")
		return
	}
	if charities == nil {
		charities = []models.Charity{}
	}
	writeJSON(w, http.StatusOK, charities)
}

// Get handles GET /api/charities/{charityID} (public).
func (h *CharityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["charityID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid charity id")
		return
	}

	charity, err := h.service.GetCharity(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrCharityNotFound) {
			writeError(w, http.StatusNotFound, "charity not found")
			return
		}
		h.logger.Errorf("get charity failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !charity.IsApproved {
		writeError(w, http.StatusNotFound, "charity not found")
		return
	}

	writeJSON(w, http.StatusOK, charity)
}

// ListPending handles GET /api/admin/charities
func (h *CharityHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	charities, err := h.service.ListPending(r.Context())
	if err != nil {
		h.logger.Errorf("list pending charities failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch charities")
		return
	}
	if charities == nil {
		charities = []models.Charity{}
	}
	writeJSON(w, http.StatusOK, charities)
}

// Approve handles POST /api/admin/charities/{charityID}/approve
func (h *CharityHandler) Approve(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil || claims.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}
	adminID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token subject")
		return
	}

	charityID, err := primitive.ObjectIDFromHex(mux.Vars(r)["charityID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid charity id")
		return
	}

	charity, err := h.service.Approve(r.Context(), charityID, adminID)
	if err != nil {
		if errors.Is(err, services.ErrCharityNotFound) {
			writeError(w, http.StatusNotFound, "charity not found or already approved")
			return
		}
		h.logger.Errorf("approve charity failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, charity)
}

// Reject handles POST /api/admin/charities/{charityID}/reject
func (h *CharityHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	charityID, err := primitive.ObjectIDFromHex(mux.Vars(r)["charityID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid charity id")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	charity, err := h.service.Reject(r.Context(), charityID, body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrCharityNotFound):
			writeError(w, http.StatusNotFound, "charity not found or already approved")
		default:
			h.logger.Errorf("reject charity failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, charity)
}

func (h *CharityHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	if claims.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin role required")
		return false
	}
	return true
}
