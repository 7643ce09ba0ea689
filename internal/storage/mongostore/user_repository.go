package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dm-go/internal/models"
	"dm-go/internal/storage"
)

type userRepository struct {
	collection *mongo.Collection
}

var _ storage.UserRepository = (*userRepository)(nil)

// NewUserRepository returns a UserRepository backed by the users collection.
func NewUserRepository(db *mongo.Database) storage.UserRepository {
	return &userRepository{collection: db.Collection(usersCollection)}
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, filter, opts...).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*models.User, error) {
	cursor, err := r.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	users := []*models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *userRepository) GetFollowingIDs(ctx context.Context, userID string) ([]string, error) {
	user, err := r.findOne(ctx, bson.M{"_id": userID}, options.FindOne().SetProjection(bson.M{"following": 1}))
	if err != nil {
		return nil, err
	}
	return nonNil(user.Following), nil
}

func (r *userRepository) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	user, err := r.findOne(ctx, bson.M{"_id": userID}, options.FindOne().SetProjection(bson.M{"followers": 1}))
	if err != nil {
		return nil, err
	}
	return nonNil(user.Followers), nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]*models.User, error) {
	return r.find(ctx, bson.M{"role": models.RoleAdmin}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
