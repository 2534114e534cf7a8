package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/givehub/donation-backend/internal/models"
)

// Mongo implements DonationStore on top of a mongo database.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) donations() *mongo.Collection {
	return m.db.Collection("donations")
}

// EnsureIndexes creates the indexes the store's guarantees depend on. The
// unique order_id index gives one donation row per gateway order; the unique
// (charity_id, donor_id) index on charity_donors makes the distinct-donor
// decision atomic.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.donations().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "receipt_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "donor_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "charity_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = m.db.Collection("charity_donors").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "charity_id", Value: 1}, {Key: "donor_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = m.db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = m.db.Collection("charities").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "registration_number", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

func (m *Mongo) CreateDonation(ctx context.Context, d *models.Donation) error {
	_, err := m.donations().InsertOne(ctx, d)
	return err
}

func (m *Mongo) FindDonationByOrderID(ctx context.Context, orderID string) (*models.Donation, error) {
	var d models.Donation
	err := m.donations().FindOne(ctx, bson.M{"order_id": orderID}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (m *Mongo) FindDonationByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	var d models.Donation
	err := m.donations().FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (m *Mongo) ListDonationsByDonor(ctx context.Context, donorID primitive.ObjectID, status string) ([]models.Donation, error) {
	filter := bson.M{"donor_id": donorID}
	if status != "" {
		filter["status"] = status
	}
	return m.listDonations(ctx, filter)
}

func (m *Mongo) ListDonationsByCharity(ctx context.Context, charityID primitive.ObjectID, status string) ([]models.Donation, error) {
	filter := bson.M{"charity_id": charityID}
	if status != "" {
		filter["status"] = status
	}
	return m.listDonations(ctx, filter)
}

func (m *Mongo) listDonations(ctx context.Context, filter bson.M) ([]models.Donation, error) {
	cur, err := m.donations().Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var donations []models.Donation
	if err := cur.All(ctx, &donations); err != nil {
		return nil, err
	}
	return donations, nil
}

func (m *Mongo) MarkCompleted(ctx context.Context, id primitive.ObjectID, fromStatuses []string, transactionID string, at time.Time) (bool, error) {
	res, err := m.donations().UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": fromStatuses}},
		bson.M{"$set": bson.M{
			"status":         models.StatusCompleted,
			"transaction_id": transactionID,
			"confirmed_at":   at,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (m *Mongo) MarkFailed(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := m.donations().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.StatusPending},
		bson.M{"$set": bson.M{"status": models.StatusFailed}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (m *Mongo) MarkRefunded(ctx context.Context, id primitive.ObjectID, reason string, at time.Time) (bool, error) {
	res, err := m.donations().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.StatusCompleted},
		bson.M{"$set": bson.M{
			"status":        models.StatusRefunded,
			"refund_reason": reason,
			"refunded_at":   at,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (m *Mongo) RecordCharityDonor(ctx context.Context, charityID, donorID primitive.ObjectID) (bool, error) {
	_, err := m.db.Collection("charity_donors").InsertOne(ctx, bson.M{
		"charity_id": charityID,
		"donor_id":   donorID,
		"created_at": time.Now(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Mongo) IncrementDonorTotals(ctx context.Context, donorID, donationID primitive.ObjectID, amountMinor int64) error {
	_, err := m.db.Collection("users").UpdateOne(ctx,
		bson.M{"_id": donorID},
		bson.M{
			"$inc":  bson.M{"total_donated_minor": amountMinor},
			"$push": bson.M{"donation_history": donationID},
		},
	)
	return err
}

func (m *Mongo) IncrementCharityTotals(ctx context.Context, charityID primitive.ObjectID, amountMinor int64, newDonor bool) error {
	inc := bson.M{"total_received_minor": amountMinor}
	if newDonor {
		inc["donor_count"] = 1
	}
	_, err := m.db.Collection("charities").UpdateOne(ctx,
		bson.M{"_id": charityID},
		bson.M{"$inc": inc},
	)
	return err
}

func (m *Mongo) ReverseTotals(ctx context.Context, donorID, charityID primitive.ObjectID, amountMinor int64) error {
	_, err := m.db.Collection("users").UpdateOne(ctx,
		bson.M{"_id": donorID},
		bson.M{"$inc": bson.M{"total_donated_minor": -amountMinor}},
	)
	if err != nil {
		return err
	}
	_, err = m.db.Collection("charities").UpdateOne(ctx,
		bson.M{"_id": charityID},
		bson.M{"$inc": bson.M{"total_received_minor": -amountMinor}},
	)
	return err
}

func (m *Mongo) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := m.db.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *Mongo) GetCharity(ctx context.Context, id primitive.ObjectID) (*models.Charity, error) {
	var c models.Charity
	err := m.db.Collection("charities").FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
