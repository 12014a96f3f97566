package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pribylovaa/mylist-service/internal/cursor"
	"github.com/pribylovaa/mylist-service/internal/models"
	"github.com/pribylovaa/mylist-service/internal/storage"
)

// itemDoc — BSON-представление элемента списка.
type itemDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	UserID      string             `bson:"user_id"`
	ContentID   string             `bson:"content_id"`
	ContentType string             `bson:"content_type"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func (d itemDoc) toModel() models.ListItem {
	return models.ListItem{
		ID:          d.ID.Hex(),
		UserID:      d.UserID,
		ContentID:   d.ContentID,
		ContentType: models.ContentType(d.ContentType),
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

// UpsertItem — вставка через findOneAndUpdate + $setOnInsert.
// _id генерируем сами: по нему отличаем «вставили» от «уже было».
// Дубликат ключа при гонке апсертов -> storage.ErrConflict.
func (m *Mongo) UpsertItem(ctx context.Context, item models.ListItem) (*models.ListItem, bool, error) {
	const op = "storage/mongo/UpsertItem"

	// MongoDB DateTime хранит миллисекунды.
	now := time.Now().UTC().Truncate(time.Millisecond)
	oid := primitive.NewObjectID()

	filter := bson.D{
		{Key: "user_id", Value: item.UserID},
		{Key: "content_id", Value: item.ContentID},
	}

	update := bson.D{
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: oid},
			{Key: "content_type", Value: string(item.ContentType)},
			{Key: "created_at", Value: now},
		}},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc itemDoc
	if err := m.items.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, false, fmt.Errorf("%s: %w", op, storage.ErrConflict)
		}

		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	out := doc.toModel()
	return &out, doc.ID == oid, nil
}

// ListItems возвращает страницу элементов пользователя.
// Сортировка: created_at DESC, _id DESC.
func (m *Mongo) ListItems(ctx context.Context, userID string, after *cursor.Cursor, limit int64) ([]models.ListItem, error) {
	const op = "storage/mongo/ListItems"

	filter := bson.D{{Key: "user_id", Value: userID}}

	// Курсор "меньше" для DESC сортировки.
	if after != nil {
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "created_at", Value: bson.D{{Key: "$lt", Value: after.CreatedAt}}}},
			bson.D{
				{Key: "created_at", Value: after.CreatedAt},
				{Key: "_id", Value: bson.D{{Key: "$lt", Value: after.ID}}},
			},
		}})
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cur, err := m.items.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	items := make([]models.ListItem, 0, limit)
	for cur.Next(ctx) {
		var doc itemDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		items = append(items, doc.toModel())
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return items, nil
}

// DeleteItem удаляет элемент по (user_id, content_id).
func (m *Mongo) DeleteItem(ctx context.Context, userID, contentID string) (bool, error) {
	const op = "storage/mongo/DeleteItem"

	res, err := m.items.DeleteOne(ctx, bson.D{
		{Key: "user_id", Value: userID},
		{Key: "content_id", Value: contentID},
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return res.DeletedCount > 0, nil
}

// CountItems — число элементов в списке пользователя.
func (m *Mongo) CountItems(ctx context.Context, userID string) (int64, error) {
	const op = "storage/mongo/CountItems"

	n, err := m.items.CountDocuments(ctx, bson.D{{Key: "user_id", Value: userID}})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}
