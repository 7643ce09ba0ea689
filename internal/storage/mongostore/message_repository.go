package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"dm-go/internal/models"
	"dm-go/internal/storage"
)

type messageRepository struct {
	collection *mongo.Collection
}

var _ storage.MessageRepository = (*messageRepository)(nil)

// NewMessageRepository returns a MessageRepository backed by the messages collection.
func NewMessageRepository(db *mongo.Database) storage.MessageRepository {
	return &messageRepository{collection: db.Collection(messagesCollection)}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	message.EnsureID()
	now := time.Now().UTC()
	if message.Timestamp.IsZero() {
		message.Timestamp = now
	}
	message.CreatedAt, message.UpdatedAt = now, now

	// Expanded relations are never persisted on the message document.
	doc := *message
	doc.Sender, doc.Receiver, doc.Post = nil, nil, nil

	_, err := r.collection.InsertOne(ctx, &doc)
	return err
}

func (r *messageRepository) FindPair(ctx context.Context, a, b string) ([]*models.Message, error) {
	return r.aggregate(ctx, pairPipeline(a, b))
}

func (r *messageRepository) FindAllForParticipant(ctx context.Context, userID string) ([]*models.Message, error) {
	return r.aggregate(ctx, participantPipeline(userID))
}

func (r *messageRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]*models.Message, error) {
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	messages := []*models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func pairPipeline(a, b string) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"senderId": a, "receiverId": b},
			bson.M{"senderId": b, "receiverId": a},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}}},
	}
	pipeline = append(pipeline, lookupOne(usersCollection, "senderId", "sender")...)
	pipeline = append(pipeline, lookupOne(usersCollection, "receiverId", "receiver")...)
	pipeline = append(pipeline, lookupOne(postsCollection, "postId", "post")...)
	return append(pipeline, hideCredentials())
}

func participantPipeline(userID string) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"senderId": userID},
			bson.M{"receiverId": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}}},
	}
	pipeline = append(pipeline, lookupOne(usersCollection, "senderId", "sender")...)
	pipeline = append(pipeline, lookupOne(usersCollection, "receiverId", "receiver")...)
	return append(pipeline, hideCredentials())
}

// lookupOne expands a reference field into a single embedded document, leaving it
// absent when the referenced document does not exist.
func lookupOne(from, localField, as string) []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from":         from,
			"localField":   localField,
			"foreignField": "_id",
			"as":           as,
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$" + as,
			"preserveNullAndEmptyArrays": true,
		}}},
	}
}

func hideCredentials() bson.D {
	return bson.D{{Key: "$project", Value: bson.M{
		"sender.passwordHash":   0,
		"sender.following":      0,
		"sender.followers":      0,
		"receiver.passwordHash": 0,
		"receiver.following":    0,
		"receiver.followers":    0,
	}}}
}
