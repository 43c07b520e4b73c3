package repositories

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"herway/database"
	"herway/models"
)

// IncidentRepository persists closed SOS sessions and check-in outcomes.
type IncidentRepository struct {
	incidentCollection *mongo.Collection
	checkInCollection  *mongo.Collection
}

func NewIncidentRepository(db *mongo.Database) *IncidentRepository {
	return &IncidentRepository{
		incidentCollection: db.Collection(database.CollectionIncidents),
		checkInCollection:  db.Collection(database.CollectionCheckInLog),
	}
}

func (ir *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	incident.ID = primitive.NewObjectID()
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now()
	}

	_, err := ir.incidentCollection.InsertOne(ctx, incident)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			logrus.Debugf("Incident for session %s already stored", incident.SessionID)
			return nil
		}
		logrus.Errorf("Failed to create incident: %v", err)
		return err
	}
	return nil
}

// ListByUser returns one page of a user's incidents, newest first, with the total count.
func (ir *IncidentRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]models.Incident, int64, error) {
	filter := bson.M{"userId": userID}

	total, err := ir.incidentCollection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "startedAt", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := ir.incidentCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	incidents := make([]models.Incident, 0, pageSize)
	if err := cursor.All(ctx, &incidents); err != nil {
		return nil, 0, err
	}
	return incidents, total, nil
}

func (ir *IncidentRepository) LogCheckIn(ctx context.Context, entry *models.CheckInLog) error {
	entry.ID = primitive.NewObjectID()
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	_, err := ir.checkInCollection.InsertOne(ctx, entry)
	return err
}

func (ir *IncidentRepository) ListCheckIns(ctx context.Context, userID string, limit int) ([]models.CheckInLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := ir.checkInCollection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []models.CheckInLog{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteCheckInsBefore prunes check-in log entries older than cutoff.
func (ir *IncidentRepository) DeleteCheckInsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := ir.checkInCollection.DeleteMany(ctx, bson.M{"at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
