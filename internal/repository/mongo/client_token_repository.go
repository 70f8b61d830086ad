// internal/repository/mongo/client_token_repository.go
// Client Token MongoDB 實作

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

// ClientTokenRepository Client Token 儲存
type ClientTokenRepository struct {
	coll *mongo.Collection
}

// NewClientTokenRepository 建立 Client Token 儲存
func NewClientTokenRepository(db *mongo.Database) *ClientTokenRepository {
	return &ClientTokenRepository{coll: db.Collection(clientTokensCollection)}
}

// FindByClientID 以 clientId 查詢 (含已撤銷)
func (r *ClientTokenRepository) FindByClientID(ctx context.Context, clientID string) (*models.ClientToken, error) {
	var token models.ClientToken
	if err := r.coll.FindOne(ctx, bson.M{"clientId": clientID}).Decode(&token); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query client token: %w", err)
	}
	return &token, nil
}

// List 依建立時間新到舊列出
func (r *ClientTokenRepository) List(ctx context.Context) ([]models.ClientToken, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list client tokens: %w", err)
	}
	tokens := make([]models.ClientToken, 0)
	if err := cursor.All(ctx, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode client tokens: %w", err)
	}
	return tokens, nil
}

// Save 以 upsert 新增或更新
func (r *ClientTokenRepository) Save(ctx context.Context, token *models.ClientToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": token.ID}, token, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save client token: %w", err)
	}
	return nil
}
