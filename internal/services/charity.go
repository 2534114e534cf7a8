package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/givehub/donation-backend/internal/models"
	"github.com/givehub/donation-backend/internal/notify"
)

var ErrCharityNotFound = errors.New("charity not found")

// CharityService manages charity accounts and the admin approval workflow.
type CharityService struct {
	collection *mongo.Collection
	mailer     notify.Mailer
	logger     *logrus.Logger
}

func NewCharityService(db *mongo.Database, mailer notify.Mailer, logger *logrus.Logger) *CharityService {
	return &CharityService{
		collection: db.Collection("charities"),
		mailer:     mailer,
		logger:     logger,
	}
}

type RegisterCharityRequest struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Password           string `json:"password"`
	RegistrationNumber string `json:"registration_number"`
	Phone              string `json:"phone"`
	Website            string `json:"website"`
	Description        string `json:"description"`
	Mission            string `json:"mission"`
	Category           string `json:"category"`
}

// Register creates a charity application. The account starts unapproved and is
// invisible to donors until an admin approves it.
func (s *CharityService) Register(ctx context.Context, req RegisterCharityRequest) (*models.Charity, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.RegistrationNumber = strings.TrimSpace(req.RegistrationNumber)
	if req.Name == "" || req.Email == "" || req.RegistrationNumber == "" || req.Description == "" {
		return nil, fmt.Errorf("%w: name, email, registration number and description are required", ErrValidation)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	charity := &models.Charity{
		ID:                 primitive.NewObjectID(),
		Name:               req.Name,
		Email:              req.Email,
		HPassword:          string(hash),
		RegistrationNumber: req.RegistrationNumber,
		Phone:              req.Phone,
		Website:            req.Website,
		Description:        req.Description,
		Mission:            req.Mission,
		Category:           req.Category,
		IsApproved:         false,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := s.collection.InsertOne(ctx, charity); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return charity, nil
}

// Login checks the password for the given charity email.
func (s *CharityService) Login(ctx context.Context, email, password string) (*models.Charity, error) {
	var charity models.Charity
	err := s.collection.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&charity)
	if err == mongo.ErrNoDocuments {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(charity.HPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &charity, nil
}

func (s *CharityService) GetCharity(ctx context.Context, id primitive.ObjectID) (*models.Charity, error) {
	var charity models.Charity
	err := s.collection.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(bson.D{{Key: "password", Value: 0}})).Decode(&charity)
	if err == mongo.ErrNoDocuments {
		return nil, ErrCharityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &charity, nil
}

// ListApproved returns charities visible to donors.
func (s *CharityService) ListApproved(ctx context.Context) ([]models.Charity, error) {
	return s.list(ctx, bson.M{"is_approved": true})
}

// ListPending returns charity applications awaiting admin review.
func (s *CharityService) ListPending(ctx context.Context) ([]models.Charity, error) {
	return s.list(ctx, bson.M{"is_approved": false, "rejection_reason": bson.M{"$exists": false}})
}

func (s *CharityService) list(ctx context.Context, filter bson.M) ([]models.Charity, error) {
	cur, err := s.collection.Find(ctx, filter,
		options.Find().SetProjection(bson.D{{Key: "password", Value: 0}}).SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var charities []models.Charity
	if err := cur.All(ctx, &charities); err != nil {
		return nil, err
	}
	return charities, nil
}

// Approve marks a charity as approved and notifies it by email. The email is
// best-effort; approval stands even if the send fails.
func (s *CharityService) Approve(ctx context.Context, charityID, adminID primitive.ObjectID) (*models.Charity, error) {
	now := time.Now()
	res := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": charityID, "is_approved": false},
		bson.M{"$set": bson.M{
			"is_approved": true,
			"approved_by": adminID,
			"approved_at": now,
			"updated_at":  now,
		}, "$unset": bson.M{"rejection_reason": ""}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var charity models.Charity
	if err := res.Decode(&charity); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrCharityNotFound
		}
		return nil, err
	}

	if err := s.mailer.Send(ctx, charity.Email, "Your charity has been approved",
		notify.CharityApprovalBody(charity.Name)); err != nil {
		s.logger.WithField("charity_id", charity.ID.Hex()).Warnf("approval email failed: %v", err)
	}

	return &charity, nil
}

// Reject records a rejection reason and notifies the charity.
func (s *CharityService) Reject(ctx context.Context, charityID primitive.ObjectID, reason string) (*models.Charity, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	res := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": charityID, "is_approved": false},
		bson.M{"$set": bson.M{
			"rejection_reason": reason,
			"updated_at":       time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var charity models.Charity
	if err := res.Decode(&charity); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrCharityNotFound
		}
		return nil, err
	}

	if err := s.mailer.Send(ctx, charity.Email, "Charity Registration Update",
		notify.CharityRejectionBody(charity.Name, reason)); err != nil {
		s.logger.WithField("charity_id", charity.ID.Hex()).Warnf("rejection email failed: %v", err)
	}

	return &charity, nil
}
