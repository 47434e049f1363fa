package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nursemate/internal/model"
)

// MessageRepo 消息仓库，只追加
type MessageRepo struct {
	collection *mongo.Collection
}

// NewMessageRepo 创建消息仓库
func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{
		collection: db.Collection((&model.Message{}).Collection()),
	}
}

// Create 写入消息
func (r *MessageRepo) Create(ctx context.Context, msg *model.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		return err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}
	return nil
}

// ListRecent 返回最新 limit 条消息，按时间升序
func (r *MessageRepo) ListRecent(ctx context.Context, conversationID string, limit int64) ([]*model.Message, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: -1}, bson.E{Key: "_id", Value: -1}}).
		SetLimit(limit)

	msgs, err := r.find(ctx, conversationID, opts)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListByConversation 返回全部消息，按时间升序
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: 1}, bson.E{Key: "_id", Value: 1}})
	return r.find(ctx, conversationID, opts)
}

func (r *MessageRepo) find(ctx context.Context, conversationID string, opts *options.FindOptions) ([]*model.Message, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := make([]*model.Message, 0)
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
