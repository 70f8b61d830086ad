// internal/repository/mongo/client.go
// MongoDB 連線與索引建立

package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	deliveriesCollection   = "delivery_records"
	templatesCollection    = "email_templates"
	clientTokensCollection = "client_tokens"
)

// Connect 建立連線並確認可用
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	client, err := mongo.Connect(
		options.Client().
			ApplyURI(uri).
			SetConnectTimeout(timeout).
			SetRetryWrites(true).
			SetRetryReads(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// EnsureIndexes 建立查詢與唯一性所需索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	deliveryIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "trackingToken", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "sentAt", Value: -1}}},
		{Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "sentAt", Value: -1}}},
		{Keys: bson.D{{Key: "contactId", Value: 1}}},
		{Keys: bson.D{{Key: "dealId", Value: 1}}},
		{Keys: bson.D{{Key: "campaignId", Value: 1}}},
	}
	if _, err := db.Collection(deliveriesCollection).Indexes().CreateMany(ctx, deliveryIndexes); err != nil {
		return fmt.Errorf("failed to create delivery indexes: %w", err)
	}

	tokenIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "clientId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := db.Collection(clientTokensCollection).Indexes().CreateOne(ctx, tokenIndex); err != nil {
		return fmt.Errorf("failed to create client token index: %w", err)
	}

	return nil
}
