package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ImpactReport is a charity-published update on how donated funds were used.
type ImpactReport struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CharityID   primitive.ObjectID `bson:"charity_id" json:"charity_id"`
	Title       string             `bson:"title" json:"title"`
	Content     string             `bson:"content" json:"content"`
	Period      string             `bson:"period,omitempty" json:"period,omitempty"` // e.g. "2026-Q2"
	IsPublished bool               `bson:"is_published" json:"is_published"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
