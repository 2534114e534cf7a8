package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/givehub/donation-backend/internal/gateway"
	"github.com/givehub/donation-backend/internal/models"
)

const testSecret = "test_secret"

func signFor(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(t *testing.T) (*DonationService, *fakeStore, *fakeOrderCreator, *fakeMailer) {
	t.Helper()
	st := newFakeStore()
	orders := &fakeOrderCreator{}
	mailer := &fakeMailer{}
	verifier := gateway.NewRazorpayClient("key_id", testSecret, "", quietLogger())
	svc := NewDonationService(st, orders, verifier, mailer, quietLogger())
	return svc, st, orders, mailer
}

func createPending(t *testing.T, svc *DonationService, st *fakeStore, donor *models.User, charity *models.Charity, amount string) *CreateDonationResult {
	t.Helper()
	res, err := svc.CreateDonationOrder(context.Background(), donor.ID, CreateDonationRequest{
		CharityID: charity.ID.Hex(),
		Amount:    amount,
		Currency:  "INR",
	})
	if err != nil {
		t.Fatalf("CreateDonationOrder: %v", err)
	}
	return res
}

func TestCreateDonationOrder_InvalidAmountNeverReachesGateway(t *testing.T) {
	svc, st, orders, _ := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)

	for _, amount := range []string{"", "abc", "0", "-5", "0.001"} {
		_, err := svc.CreateDonationOrder(context.Background(), donor.ID, CreateDonationRequest{
			CharityID: charity.ID.Hex(),
			Amount:    amount,
			Currency:  "INR",
		})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("amount %q: got %v, want ErrValidation", amount, err)
		}
	}
	if orders.calls != 0 {
		t.Errorf("gateway was called %d times for invalid amounts", orders.calls)
	}
	if st.createCalls != 0 {
		t.Errorf("donation rows were written for invalid amounts")
	}
}

func TestCreateDonationOrder_UnapprovedCharity(t *testing.T) {
	svc, st, orders, _ := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	charity := st.addCharity("Pending Org", "pending@example.com", false)

	_, err := svc.CreateDonationOrder(context.Background(), donor.ID, CreateDonationRequest{
		CharityID: charity.ID.Hex(),
		Amount:    "500",
		Currency:  "INR",
	})
	if !errors.Is(err, ErrCharityUnavailable) {
		t.Fatalf("got %v, want ErrCharityUnavailable", err)
	}
	if orders.calls != 0 {
		t.Error("gateway must not be contacted for an unapproved charity")
	}
}

func TestCreateDonationOrder_GatewayFailureLeavesNoRow(t *testing.T) {
	svc, st, orders, _ := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)
	orders.err = errors.New("gateway down")

	_, err := svc.CreateDonationOrder(context.Background(), donor.ID, CreateDonationRequest{
		CharityID: charity.ID.Hex(),
		Amount:    "500",
		Currency:  "INR",
	})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("got %v, want ErrGatewayUnavailable", err)
	}
	if st.createCalls != 0 {
		t.Error("no donation row may exist when the gateway order was never created")
	}
}

func TestCreateDonationOrder_PersistsPendingDonation(t *testing.T) {
	svc, st, orders, _ := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)

	res := createPending(t, svc, st, donor, charity, "500")

	if res.Order.AmountMinor != 50000 {
		t.Errorf("order amount = %d minor units, want 50000", res.Order.AmountMinor)
	}
	d, err := st.FindDonationByOrderID(context.Background(), res.Order.ID)
	if err != nil {
		t.Fatalf("pending donation not persisted: %v", err)
	}
	if d.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", d.Status)
	}
	if d.AmountMinor != 50000 || d.Currency != "INR" {
		t.Errorf("persisted %d %s, want 50000 INR", d.AmountMinor, d.Currency)
	}
	if d.ReceiptNumber == "" {
		t.Error("receipt number must be assigned at creation")
	}
	if orders.lastMeta.CharityID != charity.ID.Hex() || orders.lastMeta.DonorID != donor.ID.Hex() {
		t.Error("gateway order metadata must carry the charity and donor ids")
	}
}

func TestConfirmDonation_ValidSignatureCompletesAndIsIdempotent(t *testing.T) {
	svc, st, _, mailer := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)
	res := createPending(t, svc, st, donor, charity, "500")
	orderID := res.Order.ID

	out, err := svc.ConfirmDonation(context.Background(), orderID, "pay_1", signFor(orderID, "pay_1"))
	if err != nil {
		t.Fatalf("ConfirmDonation: %v", err)
	}
	if out.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", out.Status)
	}
	if out.TransactionID != "pay_1" {
		t.Errorf("transaction id = %q, want pay_1", out.TransactionID)
	}
	if out.Amount != "500.00" || out.Currency != "INR" {
		t.Errorf("result amount = %s %s, want 500.00 INR", out.Amount, out.Currency)
	}
	if out.ConfirmedAt == nil {
		t.Error("confirmed_at must be set")
	}

	u, _ := st.GetUser(context.Background(), donor.ID)
	c, _ := st.GetCharity(context.Background(), charity.ID)
	if u.TotalDonatedMinor != 50000 {
		t.Errorf("donor total = %d, want 50000", u.TotalDonatedMinor)
	}
	if len(u.DonationHistory) != 1 {
		t.Errorf("donation history length = %d, want 1", len(u.DonationHistory))
	}
	if c.TotalReceivedMinor != 50000 || c.DonorCount != 1 {
		t.Errorf("charity totals = %d/%d donors, want 50000/1", c.TotalReceivedMinor, c.DonorCount)
	}
	if len(mailer.sends) != 2 {
		t.Errorf("confirmation emails sent = %d, want 2 (donor and charity)", len(mailer.sends))
	}

	// Replayed delivery: same success payload, nothing incremented again.
	again, err := svc.ConfirmDonation(context.Background(), orderID, "pay_1", signFor(orderID, "pay_1"))
	if err != nil {
		t.Fatalf("replayed ConfirmDonation: %v", err)
	}
	if again.Status != models.StatusCompleted || again.TransactionID != "pay_1" {
		t.Errorf("replay result = %q/%q, want completed/pay_1", again.Status, again.TransactionID)
	}
	u, _ = st.GetUser(context.Background(), donor.ID)
	c, _ = st.GetCharity(context.Background(), charity.ID)
	if u.TotalDonatedMinor != 50000 || c.TotalReceivedMinor != 50000 || c.DonorCount != 1 {
		t.Error("replayed confirmation must not change any totals")
	}
	if len(mailer.sends) != 2 {
		t.Errorf("replayed confirmation sent more emails: %d", len(mailer.sends))
	}
}

func TestConfirmDonation_ForgedSignatureMarksFailed(t *testing.T) {
	svc, st, _, mailer := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)
	res := createPending(t, svc, st, donor, charity, "500")
	orderID := res.Order.ID

	_, err := svc.ConfirmDonation(context.Background(), orderID, "pay_1", signFor(orderID, "pay_other"))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}

	d, _ := st.FindDonationByOrderID(context.Background(), orderID)
	if d.Status != models.StatusFailed {
		t.Errorf("status = %q, want failed", d.Status)
	}
	u, _ := st.GetUser(context.Background(), donor.ID)
	c, _ := st.GetCharity(context.Background(), charity.ID)
	if u.TotalDonatedMinor != 0 || c.TotalReceivedMinor != 0 || c.DonorCount != 0 {
		t.Error("a forged signature must not change any totals")
	}
	if len(mailer.sends) != 0 {
		t.Error("no emails may be sent for a failed verification")
	}
}

func TestConfirmDonation_FailedThenValidSignatureCompletes(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)
	res := createPending(t, svc, st, donor, charity, "500")
	orderID := res.Order.ID

	if _, err := svc.ConfirmDonation(context.Background(), orderID, "pay_1", "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("bad first delivery: got %v, want ErrInvalidSignature", err)
	}

	// Gateways retry; a later delivery with a valid signature still completes.
	out, err := svc.ConfirmDonation(context.Background(), orderID, "pay_1", signFor(orderID, "pay_1"))
	if err != nil {
		t.Fatalf("retry after failed: %v", err)
	}
	if out.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", out.Status)
	}
	c, _ := st.GetCharity(context.Background(), charity.ID)
	if c.TotalReceivedMinor != 50000 {
		t.Errorf("charity total = %d, want 50000", c.TotalReceivedMinor)
	}
}

func TestConfirmDonation_UnknownOrder(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	st.addUser("Asha", "asha@example.com")

	_, err := svc.ConfirmDonation(context.Background(), "order_missing", "pay_1", signFor("order_missing", "pay_1"))
	if !errors.Is(err, ErrDonationNotFound) {
		t.Fatalf("got %v, want ErrDonationNotFound", err)
	}
}

func TestConfirmDonation_MissingFields(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	for _, c := range []struct{ order, payment, sig string }{
		{"", "pay_1", "sig"},
		{"order_1", "", "sig"},
		{"order_1", "pay_1", ""},
	} {
		if _, err := svc.ConfirmDonation(context.Background(), c.order, c.payment, c.sig); !errors.Is(err, ErrValidation) {
			t.Errorf("(%q,%q,%q): got %v, want ErrValidation", c.order, c.payment, c.sig, err)
		}
	}
}

func TestConfirmDonation_TotalsAccumulateAcrossDonations(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	other := st.addUser("Ben", "ben@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)

	amounts := []struct {
		donor  *models.User
		amount string
		minor  int64
	}{
		{donor, "500", 50000},
		{donor, "250.50", 25050},
		{other, "100", 10000},
	}
	var wantTotal int64
	for i, a := range amounts {
		res := createPending(t, svc, st, a.donor, charity, a.amount)
		payID := "pay_" + string(rune('a'+i))
		if _, err := svc.ConfirmDonation(context.Background(), res.Order.ID, payID, signFor(res.Order.ID, payID)); err != nil {
			t.Fatalf("confirm %s: %v", a.amount, err)
		}
		wantTotal += a.minor
	}

	c, _ := st.GetCharity(context.Background(), charity.ID)
	if c.TotalReceivedMinor != wantTotal {
		t.Errorf("charity total = %d, want %d", c.TotalReceivedMinor, wantTotal)
	}
	if c.DonorCount != 2 {
		t.Errorf("donor count = %d, want 2 (repeat donor counted once)", c.DonorCount)
	}
	u, _ := st.GetUser(context.Background(), donor.ID)
	if u.TotalDonatedMinor != 75050 {
		t.Errorf("donor total = %d, want 75050", u.TotalDonatedMinor)
	}
}

func TestConfirmDonation_AggregateFailureStillSucceeds(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)
	res := createPending(t, svc, st, donor, charity, "500")
	st.donorIncErr = errors.New("write concern timeout")

	out, err := svc.ConfirmDonation(context.Background(), res.Order.ID, "pay_1", signFor(res.Order.ID, "pay_1"))
	if err != nil {
		t.Fatalf("confirmation must not fail when only aggregates lag: %v", err)
	}
	if out.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", out.Status)
	}
	d, _ := st.FindDonationByOrderID(context.Background(), res.Order.ID)
	if d.Status != models.StatusCompleted {
		t.Errorf("stored status = %q, want completed", d.Status)
	}
}

func TestConfirmDonation_MailerFailureStillSucceeds(t *testing.T) {
	svc, st, _, mailer := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)
	res := createPending(t, svc, st, donor, charity, "500")
	mailer.err = errors.New("resend 503")

	out, err := svc.ConfirmDonation(context.Background(), res.Order.ID, "pay_1", signFor(res.Order.ID, "pay_1"))
	if err != nil {
		t.Fatalf("confirmation must not fail on email errors: %v", err)
	}
	if out.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", out.Status)
	}
}

func TestRefundDonation(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)
	res := createPending(t, svc, st, donor, charity, "500")
	donationID, _ := primitive.ObjectIDFromHex(res.DonationID)

	// Pending donations cannot be refunded.
	if _, err := svc.RefundDonation(context.Background(), donationID, "duplicate charge"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("refund of pending: got %v, want ErrInvalidTransition", err)
	}

	if _, err := svc.ConfirmDonation(context.Background(), res.Order.ID, "pay_1", signFor(res.Order.ID, "pay_1")); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	refunded, err := svc.RefundDonation(context.Background(), donationID, "duplicate charge")
	if err != nil {
		t.Fatalf("RefundDonation: %v", err)
	}
	if refunded.Status != models.StatusRefunded || refunded.RefundReason != "duplicate charge" {
		t.Errorf("refunded = %q/%q, want refunded/duplicate charge", refunded.Status, refunded.RefundReason)
	}

	u, _ := st.GetUser(context.Background(), donor.ID)
	c, _ := st.GetCharity(context.Background(), charity.ID)
	if u.TotalDonatedMinor != 0 || c.TotalReceivedMinor != 0 {
		t.Errorf("totals after refund = %d/%d, want 0/0", u.TotalDonatedMinor, c.TotalReceivedMinor)
	}
	if c.DonorCount != 1 {
		t.Errorf("donor count = %d, want 1 (refunds keep the donor relationship)", c.DonorCount)
	}

	// Refunding twice is rejected.
	if _, err := svc.RefundDonation(context.Background(), donationID, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second refund: got %v, want ErrInvalidTransition", err)
	}
}

func TestListDonationsForDonor_StatusFilter(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)

	first := createPending(t, svc, st, donor, charity, "100")
	createPending(t, svc, st, donor, charity, "200")
	if _, err := svc.ConfirmDonation(context.Background(), first.Order.ID, "pay_1", signFor(first.Order.ID, "pay_1")); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	all, err := svc.ListDonationsForDonor(context.Background(), donor.ID, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all donations = %d, want 2", len(all))
	}

	completed, err := svc.ListDonationsForDonor(context.Background(), donor.ID, models.StatusCompleted)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(completed) != 1 || completed[0].OrderID != first.Order.ID {
		t.Errorf("completed filter returned %d donations", len(completed))
	}

	if _, err := svc.ListDonationsForDonor(context.Background(), donor.ID, "bogus"); !errors.Is(err, ErrValidation) {
		t.Errorf("bogus status: got %v, want ErrValidation", err)
	}
}

func TestGetReceipt(t *testing.T) {
	svc, st, _, _ := newTestService(t)
	donor := st.addUser("Asha", "asha@example.com")
	stranger := st.addUser("Ben", "ben@example.com")
	charity := st.addCharity("Clean Water", "cw@example.com", true)
	res := createPending(t, svc, st, donor, charity, "500")
	donationID, _ := primitive.ObjectIDFromHex(res.DonationID)

	// No receipt before the payment completes.
	if _, err := svc.GetReceipt(context.Background(), donationID, donor.ID, false); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending receipt: got %v, want ErrInvalidTransition", err)
	}

	if _, err := svc.ConfirmDonation(context.Background(), res.Order.ID, "pay_1", signFor(res.Order.ID, "pay_1")); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	receipt, err := svc.GetReceipt(context.Background(), donationID, donor.ID, false)
	if err != nil {
		t.Fatalf("GetReceipt: %v", err)
	}
	if receipt.ReceiptNumber != res.ReceiptNumber {
		t.Errorf("receipt number = %q, want %q", receipt.ReceiptNumber, res.ReceiptNumber)
	}

	if _, err := svc.GetReceipt(context.Background(), donationID, stranger.ID, false); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger receipt: got %v, want ErrForbidden", err)
	}
	if _, err := svc.GetReceipt(context.Background(), donationID, stranger.ID, true); err != nil {
		t.Errorf("admin receipt: %v", err)
	}
	if _, err := svc.GetReceipt(context.Background(), primitive.NewObjectID(), donor.ID, false); !errors.Is(err, ErrDonationNotFound) {
		t.Errorf("missing donation: got %v, want ErrDonationNotFound", err)
	}
}
