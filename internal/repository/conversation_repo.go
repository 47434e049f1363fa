package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nursemate/internal/model"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("not found")
	// ErrNotOwner conversation_id 已被其他用户占用
	ErrNotOwner = errors.New("conversation belongs to another user")
)

// ConversationRepo 对话仓库
type ConversationRepo struct {
	collection *mongo.Collection
}

// NewConversationRepo 创建对话仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{
		collection: db.Collection((&model.Conversation{}).Collection()),
	}
}

// FindOrCreate 按 conversation_id 查找对话，不存在时原子创建
// 依赖 conversation_id 唯一索引；并发 upsert 冲突时重试一次普通查询
func (r *ConversationRepo) FindOrCreate(ctx context.Context, conversationID, userID, title string) (*model.Conversation, error) {
	now := time.Now().UTC()
	filter := bson.M{"conversation_id": conversationID}
	update := bson.M{"$setOnInsert": bson.M{
		"conversation_id": conversationID,
		"user_id":         userID,
		"title":           title,
		"created_at":      now,
		"updated_at":      now,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var conv model.Conversation
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if mongo.IsDuplicateKeyError(err) {
		err = r.collection.FindOne(ctx, filter).Decode(&conv)
	}
	if err != nil {
		return nil, err
	}

	if conv.UserID != userID {
		return nil, ErrNotOwner
	}
	return &conv, nil
}

// FindByConversationID 按 conversation_id 查询
func (r *ConversationRepo) FindByConversationID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.collection.FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// UpdateTitle 更新标题
func (r *ConversationRepo) UpdateTitle(ctx context.Context, conversationID, title string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$set": bson.M{"title": title, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUserID 查询用户对话列表，按创建时间倒序
func (r *ConversationRepo) ListByUserID(ctx context.Context, userID string, limit, offset int64) ([]*model.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: -1}}).
		SetSkip(offset)
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	convs := make([]*model.Conversation, 0)
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}
