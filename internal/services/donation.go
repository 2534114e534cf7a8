package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/givehub/donation-backend/internal/gateway"
	"github.com/givehub/donation-backend/internal/models"
	"github.com/givehub/donation-backend/internal/notify"
	"github.com/givehub/donation-backend/internal/store"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrDonationNotFound   = errors.New("donation not found")
	ErrCharityUnavailable = errors.New("charity not found or not approved")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidSignature   = errors.New("invalid payment signature")
	ErrInvalidTransition  = errors.New("donation is not in a state that allows this operation")
	ErrForbidden          = errors.New("not allowed to access this resource")
)

// DonationService owns the donation payment lifecycle: issuing gateway orders,
// reconciling gateway callbacks, applying aggregate totals and refunds.
type DonationService struct {
	store    store.DonationStore
	orders   gateway.OrderCreator
	verifier gateway.SignatureVerifier
	mailer   notify.Mailer
	logger   *logrus.Logger
	validate *validator.Validate
}

func NewDonationService(st store.DonationStore, orders gateway.OrderCreator, verifier gateway.SignatureVerifier, mailer notify.Mailer, logger *logrus.Logger) *DonationService {
	return &DonationService{
		store:    st,
		orders:   orders,
		verifier: verifier,
		mailer:   mailer,
		logger:   logger,
		validate: validator.New(),
	}
}

type CreateDonationRequest struct {
	CharityID     string `json:"charity_id" validate:"required,len=24,hexadecimal"`
	Amount        string `json:"amount" validate:"required"`
	Currency      string `json:"currency" validate:"required,oneof=USD INR EUR GBP"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=razorpay stripe"`
	IsAnonymous   bool   `json:"is_anonymous"`
	Message       string `json:"message" validate:"max=500"`
	DedicatedTo   string `json:"dedicated_to" validate:"max=100"`
}

type CreateDonationResult struct {
	DonationID    string         `json:"donation_id"`
	ReceiptNumber string         `json:"receipt_number"`
	Order         *gateway.Order `json:"order"`
}

// CreateDonationOrder creates a gateway order for the donor's amount and, once
// the gateway has confirmed it, persists the pending donation row. The order
// comes first so a gateway timeout never leaves a pending row pointing at a
// nonexistent order.
func (s *DonationService) CreateDonationOrder(ctx context.Context, donorID primitive.ObjectID, req CreateDonationRequest) (*CreateDonationResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	}
	amountMinor := models.ToMinorUnits(amount)
	if amountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount is below the minimum unit", ErrValidation)
	}

	charityID, err := primitive.ObjectIDFromHex(req.CharityID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid charity id", ErrValidation)
	}

	charity, err := s.store.GetCharity(ctx, charityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCharityUnavailable
		}
		return nil, fmt.Errorf("failed to fetch charity: %w", err)
	}
	if !charity.IsApproved {
		return nil, ErrCharityUnavailable
	}

	donor, err := s.store.GetUser(ctx, donorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: donor account not found", ErrValidation)
		}
		return nil, fmt.Errorf("failed to fetch donor: %w", err)
	}

	order, err := s.orders.CreateOrder(ctx, amountMinor, req.Currency, gateway.OrderMetadata{
		CharityID:   charity.ID.Hex(),
		DonorID:     donor.ID.Hex(),
		IsAnonymous: fmt.Sprintf("%t", req.IsAnonymous),
		Message:     req.Message,
		DedicatedTo: req.DedicatedTo,
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"donor_id":   donor.ID.Hex(),
			"charity_id": charity.ID.Hex(),
		}).Errorf("gateway order creation failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	method := req.PaymentMethod
	if method == "" {
		method = models.MethodRazorpay
	}

	donation := &models.Donation{
		ID:            primitive.NewObjectID(),
		DonorID:       donor.ID,
		CharityID:     charity.ID,
		AmountMinor:   amountMinor,
		Currency:      req.Currency,
		PaymentMethod: method,
		OrderID:       order.ID,
		Status:        models.StatusPending,
		IsAnonymous:   req.IsAnonymous,
		Message:       req.Message,
		DedicatedTo:   req.DedicatedTo,
		ReceiptNumber: models.NewReceiptNumber(),
		TaxDeductible: true,
		CreatedAt:     time.Now(),
	}
	if err := s.store.CreateDonation(ctx, donation); err != nil {
		return nil, fmt.Errorf("failed to save donation: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"donation_id": donation.ID.Hex(),
		"order_id":    order.ID,
		"charity_id":  charity.ID.Hex(),
	}).Info("donation order created")

	return &CreateDonationResult{
		DonationID:    donation.ID.Hex(),
		ReceiptNumber: donation.ReceiptNumber,
		Order:         order,
	}, nil
}

type ConfirmDonationResult struct {
	DonationID    string     `json:"donation_id"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	TransactionID string     `json:"transaction_id"`
	ReceiptNumber string     `json:"receipt_number"`
	Status        string     `json:"status"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

// ConfirmDonation reconciles a gateway callback. Repeated deliveries of the
// same confirmation are safe: a donation that is already completed returns
// success without touching anything, and the completed transition itself is a
// status-guarded write that can only apply once. A donation that an earlier
// bad callback marked failed may still complete on a later valid signature,
// since gateways retry after transient failures.
func (s *DonationService) ConfirmDonation(ctx context.Context, orderID, paymentID, signature string) (*ConfirmDonationResult, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, fmt.Errorf("%w: order id, payment id and signature are required", ErrValidation)
	}

	donation, err := s.store.FindDonationByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDonationNotFound
		}
		return nil, fmt.Errorf("failed to fetch donation: %w", err)
	}

	// Idempotency check before any mutation.
	if donation.Status == models.StatusCompleted {
		s.logger.WithField("order_id", orderID).Info("donation already confirmed, replay ignored")
		return confirmResult(donation), nil
	}

	if !s.verifier.VerifySignature(orderID, paymentID, signature) {
		if _, err := s.store.MarkFailed(ctx, donation.ID); err != nil {
			s.logger.WithField("order_id", orderID).Errorf("failed to mark donation failed: %v", err)
		}
		s.logger.WithFields(logrus.Fields{
			"donation_id": donation.ID.Hex(),
			"order_id":    orderID,
		}).Warn("payment signature verification failed")
		return nil, ErrInvalidSignature
	}

	now := time.Now()
	applied, err := s.store.MarkCompleted(ctx, donation.ID,
		[]string{models.StatusPending, models.StatusFailed}, paymentID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to update donation: %w", err)
	}
	if !applied {
		// A concurrent delivery won the race; report whatever state it left.
		current, err := s.store.FindDonationByID(ctx, donation.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-fetch donation: %w", err)
		}
		if current.Status == models.StatusCompleted {
			return confirmResult(current), nil
		}
		return nil, ErrInvalidTransition
	}

	donation.Status = models.StatusCompleted
	donation.TransactionID = paymentID
	donation.ConfirmedAt = &now

	// The payment is confirmed at this point; aggregate failures only make the
	// denormalized totals lag, so they are logged and never surfaced.
	s.applyAggregates(ctx, donation)
	s.sendConfirmationEmails(ctx, donation)

	s.logger.WithFields(logrus.Fields{
		"donation_id":    donation.ID.Hex(),
		"order_id":       orderID,
		"transaction_id": paymentID,
	}).Info("donation confirmed")

	return confirmResult(donation), nil
}

func confirmResult(d *models.Donation) *ConfirmDonationResult {
	return &ConfirmDonationResult{
		DonationID:    d.ID.Hex(),
		Amount:        d.Amount().StringFixed(2),
		Currency:      d.Currency,
		TransactionID: d.TransactionID,
		ReceiptNumber: d.ReceiptNumber,
		Status:        d.Status,
		ConfirmedAt:   d.ConfirmedAt,
	}
}

// applyAggregates runs exactly once per donation, on the transition into
// completed. Distinct-donor detection rides on the unique (charity, donor)
// record rather than a query, so two concurrent first donations cannot both
// count as new.
func (s *DonationService) applyAggregates(ctx context.Context, d *models.Donation) {
	newDonor, err := s.store.RecordCharityDonor(ctx, d.CharityID, d.DonorID)
	if err != nil {
		s.logger.WithField("donation_id", d.ID.Hex()).Errorf("reconciliation discrepancy: donor-uniqueness record failed: %v", err)
		newDonor = false
	}

	if err := s.store.IncrementDonorTotals(ctx, d.DonorID, d.ID, d.AmountMinor); err != nil {
		s.logger.WithField("donation_id", d.ID.Hex()).Errorf("reconciliation discrepancy: donor totals not updated: %v", err)
	}
	if err := s.store.IncrementCharityTotals(ctx, d.CharityID, d.AmountMinor, newDonor); err != nil {
		s.logger.WithField("donation_id", d.ID.Hex()).Errorf("reconciliation discrepancy: charity totals not updated: %v", err)
	}
}

func (s *DonationService) sendConfirmationEmails(ctx context.Context, d *models.Donation) {
	donor, derr := s.store.GetUser(ctx, d.DonorID)
	charity, cerr := s.store.GetCharity(ctx, d.CharityID)
	if derr != nil || cerr != nil {
		s.logger.WithField("donation_id", d.ID.Hex()).Warnf("skipping confirmation emails: donor err=%v charity err=%v", derr, cerr)
		return
	}

	amount := d.Amount().StringFixed(2)
	if err := s.mailer.Send(ctx, donor.Email, "Donation Confirmation - Thank You!",
		notify.DonationConfirmationBody(donor.Name, charity.Name, amount, d.Currency, d.ReceiptNumber, d.TransactionID)); err != nil {
		s.logger.WithField("donation_id", d.ID.Hex()).Warnf("donor confirmation email failed: %v", err)
	}
	if err := s.mailer.Send(ctx, charity.Email, "New Donation Received",
		notify.DonationReceivedBody(charity.Name, donor.Name, amount, d.Currency, d.ReceiptNumber, d.IsAnonymous)); err != nil {
		s.logger.WithField("donation_id", d.ID.Hex()).Warnf("charity notification email failed: %v", err)
	}
}

// RefundDonation moves a completed donation to refunded and backs the amount
// out of the lifetime totals. Donor-uniqueness counts are left as they are.
func (s *DonationService) RefundDonation(ctx context.Context, donationID primitive.ObjectID, reason string) (*models.Donation, error) {
	donation, err := s.store.FindDonationByID(ctx, donationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDonationNotFound
		}
		return nil, fmt.Errorf("failed to fetch donation: %w", err)
	}

	now := time.Now()
	applied, err := s.store.MarkRefunded(ctx, donation.ID, reason, now)
	if err != nil {
		return nil, fmt.Errorf("failed to update donation: %w", err)
	}
	if !applied {
		return nil, ErrInvalidTransition
	}

	if err := s.store.ReverseTotals(ctx, donation.DonorID, donation.CharityID, donation.AmountMinor); err != nil {
		s.logger.WithField("donation_id", donation.ID.Hex()).Errorf("reconciliation discrepancy: refund totals not reversed: %v", err)
	}

	donation.Status = models.StatusRefunded
	donation.RefundReason = reason
	donation.RefundedAt = &now

	s.logger.WithField("donation_id", donation.ID.Hex()).Info("donation refunded")
	return donation, nil
}

// GetReceipt returns the receipt fields of a donation. Only the donor who made
// the donation (or an admin) may fetch it, and only completed or refunded
// donations carry a usable receipt.
func (s *DonationService) GetReceipt(ctx context.Context, donationID, requesterID primitive.ObjectID, admin bool) (*ConfirmDonationResult, error) {
	donation, err := s.store.FindDonationByID(ctx, donationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDonationNotFound
		}
		return nil, fmt.Errorf("failed to fetch donation: %w", err)
	}
	if !admin && donation.DonorID != requesterID {
		return nil, ErrForbidden
	}
	if donation.Status != models.StatusCompleted && donation.Status != models.StatusRefunded {
		return nil, ErrInvalidTransition
	}
	return confirmResult(donation), nil
}

// ListDonationsForDonor returns a donor's donations, newest first, optionally
// filtered by status.
func (s *DonationService) ListDonationsForDonor(ctx context.Context, donorID primitive.ObjectID, status string) ([]models.Donation, error) {
	if err := validStatusFilter(status); err != nil {
		return nil, err
	}
	return s.store.ListDonationsByDonor(ctx, donorID, status)
}

// ListDonationsForCharity returns a charity's donations, newest first,
// optionally filtered by status.
func (s *DonationService) ListDonationsForCharity(ctx context.Context, charityID primitive.ObjectID, status string) ([]models.Donation, error) {
	if err := validStatusFilter(status); err != nil {
		return nil, err
	}
	return s.store.ListDonationsByCharity(ctx, charityID, status)
}

func validStatusFilter(status string) error {
	switch status {
	case "", models.StatusPending, models.StatusCompleted, models.StatusFailed, models.StatusRefunded:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
}
