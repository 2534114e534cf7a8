package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/givehub/donation-backend/internal/gateway"
	"github.com/givehub/donation-backend/internal/models"
	"github.com/givehub/donation-backend/internal/store"
)

// fakeStore is an in-memory DonationStore with the same conditional-write
// semantics as the Mongo implementation.
type fakeStore struct {
	mu            sync.Mutex
	donations     map[primitive.ObjectID]*models.Donation
	users         map[primitive.ObjectID]*models.User
	charities     map[primitive.ObjectID]*models.Charity
	charityDonors map[string]bool

	createCalls   int
	aggregateErr  error
	donorIncErr   error
	charityIncErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		donations:     make(map[primitive.ObjectID]*models.Donation),
		users:         make(map[primitive.ObjectID]*models.User),
		charities:     make(map[primitive.ObjectID]*models.Charity),
		charityDonors: make(map[string]bool),
	}
}

func (f *fakeStore) addUser(name, email string) *models.User {
	u := &models.User{ID: primitive.NewObjectID(), Name: name, Email: email, Role: models.RoleUser}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addCharity(name, email string, approved bool) *models.Charity {
	c := &models.Charity{ID: primitive.NewObjectID(), Name: name, Email: email, IsApproved: approved}
	f.charities[c.ID] = c
	return c
}

func (f *fakeStore) CreateDonation(_ context.Context, d *models.Donation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	for _, existing := range f.donations {
		if existing.OrderID == d.OrderID {
			return errors.New("duplicate order id")
		}
	}
	cp := *d
	f.donations[d.ID] = &cp
	return nil
}

func (f *fakeStore) FindDonationByOrderID(_ context.Context, orderID string) (*models.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.donations {
		if d.OrderID == orderID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) FindDonationByID(_ context.Context, id primitive.ObjectID) (*models.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.donations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) ListDonationsByDonor(_ context.Context, donorID primitive.ObjectID, status string) ([]models.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Donation
	for _, d := range f.donations {
		if d.DonorID == donorID && (status == "" || d.Status == status) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDonationsByCharity(_ context.Context, charityID primitive.ObjectID, status string) ([]models.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Donation
	for _, d := range f.donations {
		if d.CharityID == charityID && (status == "" || d.Status == status) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkCompleted(_ context.Context, id primitive.ObjectID, fromStatuses []string, transactionID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.donations[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range fromStatuses {
		if d.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	d.Status = models.StatusCompleted
	d.TransactionID = transactionID
	confirmed := at
	d.ConfirmedAt = &confirmed
	return true, nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.donations[id]
	if !ok || d.Status != models.StatusPending {
		return false, nil
	}
	d.Status = models.StatusFailed
	return true, nil
}

func (f *fakeStore) MarkRefunded(_ context.Context, id primitive.ObjectID, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.donations[id]
	if !ok || d.Status != models.StatusCompleted {
		return false, nil
	}
	d.Status = models.StatusRefunded
	d.RefundReason = reason
	refunded := at
	d.RefundedAt = &refunded
	return true, nil
}

func (f *fakeStore) RecordCharityDonor(_ context.Context, charityID, donorID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.aggregateErr != nil {
		return false, f.aggregateErr
	}
	key := charityID.Hex() + "|" + donorID.Hex()
	if f.charityDonors[key] {
		return false, nil
	}
	f.charityDonors[key] = true
	return true, nil
}

func (f *fakeStore) IncrementDonorTotals(_ context.Context, donorID, donationID primitive.ObjectID, amountMinor int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.donorIncErr != nil {
		return f.donorIncErr
	}
	u, ok := f.users[donorID]
	if !ok {
		return errors.New("donor not found")
	}
	u.TotalDonatedMinor += amountMinor
	u.DonationHistory = append(u.DonationHistory, donationID)
	return nil
}

func (f *fakeStore) IncrementCharityTotals(_ context.Context, charityID primitive.ObjectID, amountMinor int64, newDonor bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.charityIncErr != nil {
		return f.charityIncErr
	}
	c, ok := f.charities[charityID]
	if !ok {
		return errors.New("charity not found")
	}
	c.TotalReceivedMinor += amountMinor
	if newDonor {
		c.DonorCount++
	}
	return nil
}

func (f *fakeStore) ReverseTotals(_ context.Context, donorID, charityID primitive.ObjectID, amountMinor int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[donorID]; ok {
		u.TotalDonatedMinor -= amountMinor
	}
	if c, ok := f.charities[charityID]; ok {
		c.TotalReceivedMinor -= amountMinor
	}
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetCharity(_ context.Context, id primitive.ObjectID) (*models.Charity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.charities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// fakeOrderCreator issues sequential order ids without hitting a gateway.
type fakeOrderCreator struct {
	mu       sync.Mutex
	calls    int
	nextID   int
	err      error
	lastMeta gateway.OrderMetadata
}

func (f *fakeOrderCreator) CreateOrder(_ context.Context, amountMinor int64, currency string, meta gateway.OrderMetadata) (*gateway.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	f.lastMeta = meta
	return &gateway.Order{
		ID:          orderID(f.nextID),
		AmountMinor: amountMinor,
		Currency:    currency,
		Status:      "created",
	}, nil
}

func orderID(n int) string {
	return "order_" + string(rune('0'+n))
}

// fakeMailer records sends and can be told to fail.
type fakeMailer struct {
	mu    sync.Mutex
	sends []string
	err   error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, to)
	return nil
}
