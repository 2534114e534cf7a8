package models

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Donation statuses. A donation moves pending -> completed or pending -> failed
// during reconciliation; completed -> refunded is a separate admin operation.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// Payment methods
const (
	MethodRazorpay = "razorpay"
	MethodStripe   = "stripe"
)

// SupportedCurrencies is the closed set of accepted ISO currency codes.
var SupportedCurrencies = map[string]bool{
	"USD": true,
	"INR": true,
	"EUR": true,
	"GBP": true,
}

type Donation struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DonorID       primitive.ObjectID `bson:"donor_id" json:"donor_id"`
	CharityID     primitive.ObjectID `bson:"charity_id" json:"charity_id"`
	AmountMinor   int64              `bson:"amount_minor" json:"amount_minor"` // minor units, e.g. paise/cents
	Currency      string             `bson:"currency" json:"currency"`
	PaymentMethod string             `bson:"payment_method" json:"payment_method"`
	OrderID       string             `bson:"order_id" json:"order_id"`                               // gateway order id, unique
	TransactionID string             `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"` // gateway payment id, set on completion
	Status        string             `bson:"status" json:"status"`
	IsAnonymous   bool               `bson:"is_anonymous" json:"is_anonymous"`
	Message       string             `bson:"message,omitempty" json:"message,omitempty"`
	DedicatedTo   string             `bson:"dedicated_to,omitempty" json:"dedicated_to,omitempty"`
	ReceiptNumber string             `bson:"receipt_number" json:"receipt_number"`
	TaxDeductible bool               `bson:"tax_deductible" json:"tax_deductible"`
	RefundReason  string             `bson:"refund_reason,omitempty" json:"refund_reason,omitempty"`
	RefundedAt    *time.Time         `bson:"refunded_at,omitempty" json:"refunded_at,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	ConfirmedAt   *time.Time         `bson:"confirmed_at,omitempty" json:"confirmed_at,omitempty"`
}

// Amount returns the donation amount in major units.
func (d *Donation) Amount() decimal.Decimal {
	return decimal.NewFromInt(d.AmountMinor).Div(decimal.NewFromInt(100))
}

const receiptAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReceiptNumber generates a human-readable receipt number of the form
// RCP-<epoch-millis>-<6-char-uppercase-alnum>. Not cryptographically secure.
func NewReceiptNumber() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = receiptAlphabet[rand.Intn(len(receiptAlphabet))]
	}
	return fmt.Sprintf("RCP-%d-%s", time.Now().UnixMilli(), suffix)
}

// ToMinorUnits converts a major-unit amount to minor units, rounding half up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
