package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Enrollment links one student to one class. The (student, class) pair is
// unique; a student never appears twice in the same class.
type Enrollment struct {
	StudentID  primitive.ObjectID `json:"student_id" bson:"student_id"`
	ClassID    primitive.ObjectID `json:"class_id" bson:"class_id"`
	EnrolledAt time.Time          `json:"enrolled_at" bson:"enrolled_at"`
}
