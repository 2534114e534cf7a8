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

type DonationHandler struct {
	service *services.DonationService
	auth    *Auth
	logger  *logrus.Logger
}

func NewDonationHandler(service *services.DonationService, auth *Auth, logger *logrus.Logger) *DonationHandler {
	return &DonationHandler{service: service, auth: auth, logger: logger}
}

// Create handles POST /api/donations
func (h *DonationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if claims.Role != models.RoleUser {
		writeError(w, http.StatusForbidden, "only donors can create donations")
		return
	}
	donorID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token subject")
		return
	}

	var req services.CreateDonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.CreateDonationOrder(r.Context(), donorID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrCharityUnavailable):
			writeError(w, http.StatusNotFound, "charity not found or not approved")
		case errors.Is(err, services.ErrGatewayUnavailable):
			writeError(w, http.StatusBadGateway, "payment gateway unavailable")
		default:
			h.logger.Errorf("create donation failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type confirmRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// Confirm handles POST /api/donations/confirm
func (h *DonationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.confirm(w, r, req.OrderID, req.PaymentID, req.Signature)
}

// webhookRequest is the shape Razorpay posts after checkout.
type webhookRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// Webhook handles POST /api/donations/webhook. It funnels into the same
// reconciliation path as Confirm; concurrent delivery on both paths is safe.
func (h *DonationHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	h.confirm(w, r, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
}

func (h *DonationHandler) confirm(w http.ResponseWriter, r *http.Request, orderID, paymentID, signature string) {
	result, err := h.service.ConfirmDonation(r.Context(), orderID, paymentID, signature)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrDonationNotFound):
			writeError(w, http.StatusNotFound, "donation not found")
		case errors.Is(err, services.ErrInvalidSignature):
			writeError(w, http.StatusBadRequest, "invalid payment signature")
		case errors.Is(err, services.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "donation cannot be confirmed in its current state")
		default:
			h.logger.Errorf("confirm donation failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// List handles GET /api/donations, scoped to the caller's role.
func (h *DonationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	status := r.URL.Query().Get("status")

	var donations []models.Donation
	switch claims.Role {
	case models.RoleUser:
		donorID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token subject")
			return
		}
		donations, err = h.service.ListDonationsForDonor(r.Context(), donorID, status)
		if err != nil {
			h.listError(w, err)
			return
		}
	case models.RoleCharity:
		charityID, err := primitive.ObjectIDFromHex(claims.CharityID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token subject")
			return
		}
		donations, err = h.service.ListDonationsForCharity(r.Context(), charityID, status)
		if err != nil {
			h.listError(w, err)
			return
		}
	default:
		writeError(w, http.StatusForbidden, "no donation listing for this role")
		return
	}

	if donations == nil {
		donations = []models.Donation{}
	}
	writeJSON(w, http.StatusOK, donations)
}

func (h *DonationHandler) listError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Errorf("list donations failed: %v", err)
	writeError(w, http.StatusInternalServerError, "failed to fetch donations")
}

// Receipt handles GET /api/donations/{donationID}/receipt
func (h *DonationHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	requesterID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token subject")
		return
	}

	donationID, err := primitive.ObjectIDFromHex(mux.Vars(r)["donationID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid donation id")
		return
	}

	receipt, err := h.service.GetReceipt(r.Context(), donationID, requesterID, claims.Role == models.RoleAdmin)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDonationNotFound):
			writeError(w, http.StatusNotFound, "donation not found")
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "not allowed to view this receipt")
		case errors.Is(err, services.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "donation has no receipt yet")
		default:
			h.logger.Errorf("get receipt failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// Refund handles POST /api/donations/{donationID}/refund (admin only).
func (h *DonationHandler) Refund(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if claims.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	donationID, err := primitive.ObjectIDFromHex(mux.Vars(r)["donationID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid donation id")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	donation, err := h.service.RefundDonation(r.Context(), donationID, body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDonationNotFound):
			writeError(w, http.StatusNotFound, "donation not found")
		case errors.Is(err, services.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "only completed donations can be refunded")
		default:
			h.logger.Errorf("refund donation failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, donation)
}
