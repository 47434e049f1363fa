package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"nursemate/internal/model"
)

// EnsureIndexes 启动时创建所有集合索引
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	return EnsureAllIndexes(ctx, db,
		&model.Conversation{},
		&model.Message{},
	)
}
