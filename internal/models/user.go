package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles carried in auth claims
const (
	RoleUser    = "user"
	RoleCharity = "charity"
	RoleAdmin   = "admin"
)

// User is a donor (or platform admin) account.
type User struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name              string               `bson:"name" json:"name"`
	Email             string               `bson:"email" json:"email"`
	HPassword         string               `bson:"password" json:"-"`
	Phone             string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Role              string               `bson:"role" json:"role"` // user, admin
	TotalDonatedMinor int64                `bson:"total_donated_minor" json:"total_donated_minor"`
	DonationHistory   []primitive.ObjectID `bson:"donation_history,omitempty" json:"donation_history,omitempty"`
	CreatedAt         time.Time            `bson:"created_at" json:"created_at"`
}
