package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Charity is an organization account. Charities register in an unapproved
// state and only accept donations once an admin approves them.
type Charity struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string             `bson:"name" json:"name"`
	Email              string             `bson:"email" json:"email"`
	HPassword          string             `bson:"password" json:"-"`
	RegistrationNumber string             `bson:"registration_number" json:"registration_number"`
	Phone              string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Website            string             `bson:"website,omitempty" json:"website,omitempty"`
	Description        string             `bson:"description" json:"description"`
	Mission            string             `bson:"mission,omitempty" json:"mission,omitempty"`
	Category           string             `bson:"category,omitempty" json:"category,omitempty"`
	IsApproved         bool               `bson:"is_approved" json:"is_approved"`
	ApprovedBy         primitive.ObjectID `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
	ApprovedAt         *time.Time         `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	RejectionReason    string             `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	TotalReceivedMinor int64              `bson:"total_received_minor" json:"total_received_minor"`
	DonorCount         int64              `bson:"donor_count" json:"donor_count"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}
