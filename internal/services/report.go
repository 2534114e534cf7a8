package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/givehub/donation-backend/internal/models"
)

var ErrReportNotFound = errors.New("impact report not found")

// ReportService manages charity-published impact reports.
type ReportService struct {
	collection *mongo.Collection
}

func NewReportService(db *mongo.Database) *ReportService {
	return &ReportService{collection: db.Collection("impact_reports")}
}

func (s *ReportService) Create(ctx context.Context, charityID primitive.ObjectID, title, content, period string, publish bool) (*models.ImpactReport, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: title and content are required", ErrValidation)
	}

	now := time.Now()
	report := &models.ImpactReport{
		ID:          primitive.NewObjectID(),
		CharityID:   charityID,
		Title:       title,
		Content:     content,
		Period:      period,
		IsPublished: publish,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.collection.InsertOne(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListPublished returns reports visible to donors, newest first.
func (s *ReportService) ListPublished(ctx context.Context) ([]models.ImpactReport, error) {
	cur, err := s.collection.Find(ctx, bson.M{"is_published": true},
		options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var reports []models.ImpactReport
	if err := cur.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// Update edits a report's fields. Only the owning charity may update it.
func (s *ReportService) Update(ctx context.Context, reportID, charityID primitive.ObjectID, title, content, period string, publish *bool) (*models.ImpactReport, error) {
	set := bson.M{"updated_at": time.Now()}
	if strings.TrimSpace(title) != "" {
		set["title"] = strings.TrimSpace(title)
	}
	if strings.TrimSpace(content) != "" {
		set["content"] = content
	}
	if period != "" {
		set["period"] = period
	}
	if publish != nil {
		set["is_published"] = *publish
	}

	res := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": reportID, "charity_id": charityID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var report models.ImpactReport
	if err := res.Decode(&report); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

// Delete removes a report. Only the owning charity may delete it.
func (s *ReportService) Delete(ctx context.Context, reportID, charityID primitive.ObjectID) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": reportID, "charity_id": charityID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrReportNotFound
	}
	return nil
}
