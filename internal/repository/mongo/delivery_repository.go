// internal/repository/mongo/delivery_repository.go
// 發送紀錄 MongoDB 實作 - 點擊紀錄以內嵌陣列儲存

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

// 新網址 $push 與其他請求競爭時的重試上限
const maxClickAttempts = 3

// DeliveryRepository 發送紀錄儲存
type DeliveryRepository struct {
	coll *mongo.Collection
}

// NewDeliveryRepository 建立發送紀錄儲存
func NewDeliveryRepository(db *mongo.Database) *DeliveryRepository {
	return &DeliveryRepository{coll: db.Collection(deliveriesCollection)}
}

// Create 新增發送紀錄
func (r *DeliveryRepository) Create(ctx context.Context, record *models.DeliveryRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	// $push 需要既有陣列
	if record.ClickedLinks == nil {
		record.ClickedLinks = []models.ClickedLink{}
	}
	if record.Attachments == nil {
		record.Attachments = []models.DeliveryAttachment{}
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to create delivery record: %w", err)
	}
	return nil
}

// FindByID 以 ID 查詢
func (r *DeliveryRepository) FindByID(ctx context.Context, id string) (*models.DeliveryRecord, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByToken 以追蹤 token 查詢
func (r *DeliveryRepository) FindByToken(ctx context.Context, token string) (*models.DeliveryRecord, error) {
	return r.findOne(ctx, bson.M{"trackingToken": token})
}

func (r *DeliveryRepository) findOne(ctx context.Context, filter bson.M) (*models.DeliveryRecord, error) {
	var record models.DeliveryRecord
	if err := r.coll.FindOne(ctx, filter).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query delivery record: %w", err)
	}
	return &record, nil
}

// List 依關聯條件分頁查詢，依 sentAt 由新到舊
func (r *DeliveryRepository) List(ctx context.Context, filter repository.DeliveryFilter) ([]models.DeliveryRecord, int64, error) {
	query := listFilter(filter)

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count delivery records: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "sentAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list delivery records: %w", err)
	}

	records := []models.DeliveryRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("failed to decode delivery records: %w", err)
	}
	return records, total, nil
}

func listFilter(filter repository.DeliveryFilter) bson.M {
	query := bson.M{}
	if filter.ClientID != nil {
		query["clientId"] = *filter.ClientID
	}
	if filter.ContactID != nil {
		query["contactId"] = *filter.ContactID
	}
	if filter.DealID != nil {
		query["dealId"] = *filter.DealID
	}
	if filter.ProjectID != nil {
		query["projectId"] = *filter.ProjectID
	}
	if filter.CampaignID != nil {
		query["campaignId"] = *filter.CampaignID
	}
	return query
}

// RecordOpen 以 pipeline update 在單一文件操作內累加並保留首次開信時間
func (r *DeliveryRepository) RecordOpen(ctx context.Context, token string, at time.Time) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "openCount", Value: bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$openCount", 0}}}, 1}}}},
			{Key: "lastOpenedAt", Value: at},
			{Key: "readStatus", Value: true},
			{Key: "readAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$readAt", at}}}},
			{Key: "updatedAt", Value: at},
		}}},
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"trackingToken": token}, update)
	if err != nil {
		return fmt.Errorf("failed to record open: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RecordClick 已存在的網址以位置運算子累加，新網址以 $ne 條件 $push
func (r *DeliveryRepository) RecordClick(ctx context.Context, token, url string, at time.Time) error {
	for attempt := 0; attempt < maxClickAttempts; attempt++ {
		result, err := r.coll.UpdateOne(ctx,
			bson.M{"trackingToken": token, "clickedLinks.url": url},
			bson.M{
				"$inc": bson.M{"clickedLinks.$.clickCount": 1},
				"$set": bson.M{"clickedLinks.$.clickedAt": at, "updatedAt": at},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to record click: %w", err)
		}
		if result.MatchedCount > 0 {
			return nil
		}

		result, err = r.coll.UpdateOne(ctx,
			bson.M{"trackingToken": token, "clickedLinks.url": bson.M{"$ne": url}},
			bson.M{
				"$push": bson.M{"clickedLinks": bson.M{"url": url, "clickedAt": at, "clickCount": 1}},
				"$set":  bson.M{"updatedAt": at},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to record click: %w", err)
		}
		if result.MatchedCount > 0 {
			return nil
		}

		// 兩次都沒有命中: token 不存在，或另一個請求剛好 push 了同一網址
		count, err := r.coll.CountDocuments(ctx, bson.M{"trackingToken": token})
		if err != nil {
			return fmt.Errorf("failed to resolve tracking token: %w", err)
		}
		if count == 0 {
			return repository.ErrNotFound
		}
	}

	return fmt.Errorf("failed to record click after %d attempts", maxClickAttempts)
}

// RecordReply 標記已回覆，repliedAt 只寫入第一次
func (r *DeliveryRepository) RecordReply(ctx context.Context, token string, at time.Time) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "replyStatus", Value: true},
			{Key: "repliedAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$repliedAt", at}}}},
			{Key: "updatedAt", Value: at},
		}}},
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"trackingToken": token}, update)
	if err != nil {
		return fmt.Errorf("failed to record reply: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountEngagement 以 $group 一次取得所有統計計數
func (r *DeliveryRepository) CountEngagement(ctx context.Context, filter repository.StatsFilter) (*models.EngagementCounts, error) {
	cursor, err := r.coll.Aggregate(ctx, statsPipeline(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate engagement: %w", err)
	}

	var rows []models.EngagementCounts
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode engagement: %w", err)
	}
	if len(rows) == 0 {
		return &models.EngagementCounts{}, nil
	}
	return &rows[0], nil
}

func statsPipeline(filter repository.StatsFilter) mongo.Pipeline {
	match := bson.D{}
	if filter.ClientID != nil {
		match = append(match, bson.E{Key: "clientId", Value: *filter.ClientID})
	}
	if filter.From != nil || filter.To != nil {
		sentAt := bson.D{}
		if filter.From != nil {
			sentAt = append(sentAt, bson.E{Key: "$gte", Value: *filter.From})
		}
		if filter.To != nil {
			sentAt = append(sentAt, bson.E{Key: "$lte", Value: *filter.To})
		}
		match = append(match, bson.E{Key: "sentAt", Value: sentAt})
	}

	countIf := func(cond any) bson.D {
		return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{cond, 1, 0}}}}}
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalSent", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "totalOpened", Value: countIf("$readStatus")},
			{Key: "totalReplied", Value: countIf("$replyStatus")},
			{Key: "totalBounced", Value: countIf(bson.D{{Key: "$ne", Value: bson.A{"$bounceStatus", string(models.BounceStatusNone)}}})},
		}}},
	}
}
