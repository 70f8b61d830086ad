// internal/repository/mongo/template_repository.go
// 郵件範本 MongoDB 實作

package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

// TemplateRepository 範本儲存
type TemplateRepository struct {
	coll *mongo.Collection
}

// NewTemplateRepository 建立範本儲存
func NewTemplateRepository(db *mongo.Database) *TemplateRepository {
	return &TemplateRepository{coll: db.Collection(templatesCollection)}
}

// FindActiveByID 查詢啟用中的範本
func (r *TemplateRepository) FindActiveByID(ctx context.Context, id string) (*models.EmailTemplate, error) {
	var tmpl models.EmailTemplate
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "isActive": true}).Decode(&tmpl)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query template: %w", err)
	}
	return &tmpl, nil
}

// IncrementUsage 原子累加使用次數
func (r *TemplateRepository) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"usageCount": 1},
			"$set": bson.M{"lastUsedAt": at, "updatedAt": at},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to increment template usage: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
