package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"herway/database"
	"herway/models"
)

var (
	ErrGuardianNotFound = errors.New("guardian not found")
	ErrInvalidID        = errors.New("invalid ID")
)

type GuardianRepository struct {
	collection *mongo.Collection
}

func NewGuardianRepository(db *mongo.Database) *GuardianRepository {
	return &GuardianRepository{
		collection: db.Collection(database.CollectionGuardians),
	}
}

func (gr *GuardianRepository) Create(ctx context.Context, guardian *models.Guardian) error {
	now := time.Now()
	guardian.ID = primitive.NewObjectID()
	guardian.CreatedAt = now
	guardian.UpdatedAt = now

	if _, err := gr.collection.InsertOne(ctx, guardian); err != nil {
		logrus.Errorf("Failed to create guardian: %v", err)
		return err
	}
	return nil
}

// ListByUser returns the guardians of the given protected user.
func (gr *GuardianRepository) ListByUser(ctx context.Context, userID string) ([]models.Guardian, error) {
	return gr.find(ctx, bson.M{"userId": userID})
}

// ListProtectedBy returns the guardian entries naming guardianUserID,
// i.e. the users this account looks after.
func (gr *GuardianRepository) ListProtectedBy(ctx context.Context, guardianUserID string) ([]models.Guardian, error) {
	return gr.find(ctx, bson.M{"guardianUserId": guardianUserID})
}

// IsGuardianOf reports whether guardianUserID is registered as a guardian of userID.
func (gr *GuardianRepository) IsGuardianOf(ctx context.Context, guardianUserID, userID string) (bool, error) {
	count, err := gr.collection.CountDocuments(ctx, bson.M{
		"userId":         userID,
		"guardianUserId": guardianUserID,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (gr *GuardianRepository) Delete(ctx context.Context, userID, guardianID string) error {
	objectID, err := primitive.ObjectIDFromHex(guardianID)
	if err != nil {
		return ErrInvalidID
	}

	result, err := gr.collection.DeleteOne(ctx, bson.M{"_id": objectID, "userId": userID})
	if err != nil {
		logrus.Errorf("Failed to delete guardian: %v", err)
		return err
	}
	if result.DeletedCount == 0 {
		return ErrGuardianNotFound
	}
	return nil
}

func (gr *GuardianRepository) find(ctx context.Context, filter bson.M) ([]models.Guardian, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := gr.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	guardians := []models.Guardian{}
	if err := cursor.All(ctx, &guardians); err != nil {
		return nil, err
	}
	return guardians, nil
}
