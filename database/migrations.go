package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	CollectionIncidents  = "incidents"
	CollectionGuardians  = "guardians"
	CollectionCheckInLog = "checkin_log"
	collectionMigrations = "migrations"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, db *mongo.Database) error
}

type migrationRecord struct {
	Version   int       `bson:"version"`
	AppliedAt time.Time `bson:"appliedAt"`
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create incidents collection with indexes",
		Up:          createIncidentsCollection,
	},
	{
		Version:     2,
		Description: "Create guardians collection with indexes",
		Up:          createGuardiansCollection,
	},
	{
		Version:     3,
		Description: "Create check-in log collection with indexes",
		Up:          createCheckInLogCollection,
	},
}

// RunMigrations executes all pending migrations
func RunMigrations(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrationsCol := db.Collection(collectionMigrations)

	currentVersion := getCurrentMigrationVersion(ctx, migrationsCol)
	logrus.Infof("Current migration version: %d", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logrus.Infof("Running migration %d: %s", migration.Version, migration.Description)

		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err := migrationsCol.InsertOne(ctx, migrationRecord{
			Version:   migration.Version,
			AppliedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func getCurrentMigrationVersion(ctx context.Context, col *mongo.Collection) int {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	var record migrationRecord
	if err := col.FindOne(ctx, bson.D{}, opts).Decode(&record); err != nil {
		return 0
	}
	return record.Version
}

func createIncidentsCollection(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "startedAt", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := db.Collection(CollectionIncidents).Indexes().CreateMany(ctx, indexes)
	return err
}

func createGuardiansCollection(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "guardianUserId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := db.Collection(CollectionGuardians).Indexes().CreateMany(ctx, indexes)
	return err
}

func createCheckInLogCollection(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "at", Value: 1}},
		},
	}

	_, err := db.Collection(CollectionCheckInLog).Indexes().CreateMany(ctx, indexes)
	return err
}
