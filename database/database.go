// database/database.go
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	UsersCollection        = "users"
	AffiliationsCollection = "employeeAffiliations"
	AssetsCollection       = "assets"
	RequestsCollection     = "requests"
	AssignedCollection     = "assignedAssets"
	PackagesCollection     = "packages"
	PaymentsCollection     = "payments"
)

type Options struct {
	URI      string
	Username string
	Password string
}

// Connect dials MongoDB and verifies the connection with a primary ping.
func Connect(ctx context.Context, opts Options, lg *zap.SugaredLogger) (*mongo.Client, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}

	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(20 * time.Second).
		SetServerSelectionTimeout(15 * time.Second).
		SetSocketTimeout(20 * time.Second).
		SetMaxPoolSize(50)
	if opts.Username != "" {
		clientOptions.SetAuth(options.Credential{Username: opts.Username, Password: opts.Password})
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 10*time.Second)
	defer cancelPing()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	lg.Infow("connected to MongoDB")
	return client, nil
}

func Disconnect(client *mongo.Client, lg *zap.SugaredLogger) {
	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		lg.Warnw("MongoDB disconnect", "error", err)
	}
}

// EnsureIndexes creates the unique indexes the workflows rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		AffiliationsCollection: {
			{Keys: bson.D{{Key: "employeeEmail", Value: 1}, {Key: "companyName", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "companyName", Value: 1}}},
		},
		AssetsCollection: {
			{Keys: bson.D{{Key: "companyName", Value: 1}, {Key: "dateAdded", Value: -1}}},
		},
		RequestsCollection: {
			{
				Keys: bson.D{{Key: "assetId", Value: 1}, {Key: "requesterEmail", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"requestStatus": "pending"}),
			},
			{Keys: bson.D{{Key: "companyName", Value: 1}, {Key: "requestDate", Value: -1}}},
		},
		AssignedCollection: {
			{
				Keys: bson.D{{Key: "assetId", Value: 1}, {Key: "employeeEmail", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "assigned"}),
			},
			{Keys: bson.D{{Key: "employeeEmail", Value: 1}, {Key: "companyName", Value: 1}}},
		},
		PackagesCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		PaymentsCollection: {
			{Keys: bson.D{{Key: "transactionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
