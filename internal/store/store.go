package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/givehub/donation-backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("store: not found")

// DonationStore is the persistence contract the donation core depends on.
// Status transitions are conditional writes: they only apply when the stored
// status matches the expected one, and report whether they applied. Correctness
// of the reconciliation engine relies on that guard, not on in-process locks.
type DonationStore interface {
	CreateDonation(ctx context.Context, d *models.Donation) error
	FindDonationByOrderID(ctx context.Context, orderID string) (*models.Donation, error)
	FindDonationByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error)
	// List methods return newest first; an empty status means all statuses.
	ListDonationsByDonor(ctx context.Context, donorID primitive.ObjectID, status string) ([]models.Donation, error)
	ListDonationsByCharity(ctx context.Context, charityID primitive.ObjectID, status string) ([]models.Donation, error)

	// MarkCompleted transitions a donation into completed, recording the gateway
	// transaction id and confirmation time. It applies only while the stored
	// status is one of fromStatuses and returns true iff the write matched.
	MarkCompleted(ctx context.Context, id primitive.ObjectID, fromStatuses []string, transactionID string, at time.Time) (bool, error)
	// MarkFailed transitions pending -> failed.
	MarkFailed(ctx context.Context, id primitive.ObjectID) (bool, error)
	// MarkRefunded transitions completed -> refunded.
	MarkRefunded(ctx context.Context, id primitive.ObjectID, reason string, at time.Time) (bool, error)

	// RecordCharityDonor durably marks that donorID has a completed donation to
	// charityID. Returns true the first time the pair is seen; the uniqueness
	// decision is atomic across concurrent confirmations.
	RecordCharityDonor(ctx context.Context, charityID, donorID primitive.ObjectID) (bool, error)
	IncrementDonorTotals(ctx context.Context, donorID, donationID primitive.ObjectID, amountMinor int64) error
	IncrementCharityTotals(ctx context.Context, charityID primitive.ObjectID, amountMinor int64, newDonor bool) error
	// ReverseTotals backs a refund out of both lifetime totals. Donor-uniqueness
	// counts are left untouched.
	ReverseTotals(ctx context.Context, donorID, charityID primitive.ObjectID, amountMinor int64) error

	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetCharity(ctx context.Context, id primitive.ObjectID) (*models.Charity, error)
}
