package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ValidRole reports whether s is one of the three known roles.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

type UserSettings struct {
	Theme         string `json:"theme" bson:"theme"`
	Notifications bool   `json:"notifications" bson:"notifications"`
}

type User struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username          string             `json:"username" bson:"username"`
	Email             string             `json:"email" bson:"email"`
	DisplayName       string             `json:"display_name" bson:"display_name"`
	PasswordHash      string             `json:"-" bson:"password_hash"`
	Role              Role               `json:"role" bson:"role"`
	IsVerified        bool               `json:"is_verified" bson:"is_verified"`
	VerificationToken string             `json:"-" bson:"verification_token,omitempty"`
	LastLoginAt       time.Time          `json:"last_login_at,omitempty" bson:"last_login_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
	Settings          UserSettings       `json:"settings" bson:"settings"`
}
