package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mkaur-dev/school-backend/internal/models"
)

// MongoClassStore keeps classes and enrollments in their own collections and
// backs the registry's write-through persistence.
type MongoClassStore struct {
	client      *mongo.Client
	classes     *mongo.Collection
	enrollments *mongo.Collection
}

func NewMongoClassStore(client *mongo.Client, dbName string) *MongoClassStore {
	db := client.Database(dbName)
	return &MongoClassStore{
		client:      client,
		classes:     db.Collection("classes"),
		enrollments: db.Collection("enrollments"),
	}
}

func (s *MongoClassStore) Load(ctx context.Context) ([]models.Class, []models.Enrollment, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	cursor, err := s.classes.Find(ctx, bson.M{})
	if err != nil {
		return nil, nil, convertError(err, "classes")
	}
	var classes []models.Class
	if err := cursor.All(ctx, &classes); err != nil {
		return nil, nil, convertError(err, "classes")
	}

	cursor, err = s.enrollments.Find(ctx, bson.M{})
	if err != nil {
		return nil, nil, convertError(err, "enrollments")
	}
	var enrollments []models.Enrollment
	if err := cursor.All(ctx, &enrollments); err != nil {
		return nil, nil, convertError(err, "enrollments")
	}
	return classes, enrollments, nil
}

func (s *MongoClassStore) InsertClass(ctx context.Context, class models.Class) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	_, err := s.classes.InsertOne(ctx, class)
	return convertError(err, "class")
}

func (s *MongoClassStore) UpdateClass(ctx context.Context, class models.Class) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	_, err := s.classes.ReplaceOne(ctx, bson.M{"_id": class.ID}, class)
	return convertError(err, "class")
}

// DeleteClass removes the class record. With cascade set it also removes the
// class's enrollments, inside one transaction so a failure partway through
// leaves nothing half-deleted.
func (s *MongoClassStore) DeleteClass(ctx context.Context, classID primitive.ObjectID, cascade bool) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if !cascade {
		_, err := s.classes.DeleteOne(ctx, bson.M{"_id": classID})
		return convertError(err, "class")
	}

	session, err := s.client.StartSession()
	if err != nil {
		return convertError(err, "class")
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.enrollments.DeleteMany(sc, bson.M{"class_id": classID}); err != nil {
			return nil, err
		}
		if _, err := s.classes.DeleteOne(sc, bson.M{"_id": classID}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return convertError(err, "class")
}

func (s *MongoClassStore) InsertEnrollment(ctx context.Context, enrollment models.Enrollment) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	_, err := s.enrollments.InsertOne(ctx, enrollment)
	return convertError(err, "enrollment")
}

func (s *MongoClassStore) RemoveEnrollment(ctx context.Context, classID, studentID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	_, err := s.enrollments.DeleteOne(ctx, bson.M{"class_id": classID, "student_id": studentID})
	return convertError(err, "enrollment")
}
