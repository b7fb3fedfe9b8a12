package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClassStatus follows enrollment: a class is open while there is room left
// and full once the enrolled count reaches capacity.
type ClassStatus string

const (
	StatusOpen ClassStatus = "open"
	StatusFull ClassStatus = "full"
)

type Class struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	OwnerID   primitive.ObjectID `json:"owner_id" bson:"owner_id"`
	Capacity  int                `json:"capacity" bson:"capacity"`
	Archived  bool               `json:"archived" bson:"archived"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// Status derives the class state from an enrolled count.
func (c Class) Status(enrolled int) ClassStatus {
	if enrolled >= c.Capacity {
		return StatusFull
	}
	return StatusOpen
}
