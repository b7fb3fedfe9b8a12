package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Principal is the resolved identity for one request: user id plus the role
// held at authentication time. It is never persisted; a role change does not
// reach principals minted before it.
type Principal struct {
	UserID primitive.ObjectID `json:"user_id"`
	Role   Role               `json:"role"`
}
