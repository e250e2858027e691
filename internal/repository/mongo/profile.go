package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CollectionName is the collection holding one profile document per user.
const CollectionName = "user_profiles"

// ProfileRepository implements repository.ProfileRepository using MongoDB.
// Interests and browsing history are embedded arrays replaced wholesale on
// each write; concurrent writers to the same user may overwrite each other.
type ProfileRepository struct {
	coll *mongo.Collection
}

// NewProfileRepository creates a new MongoDB-backed profile repository.
func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the index used to find users by interest tag.
func (r *ProfileRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "interests.tag", Value: 1}},
		Options: options.Index().SetName("interests_tag"),
	})
	if err != nil {
		return fmt.Errorf("create interests_tag index: %w", err)
	}
	return nil
}

// Get loads the profile of userID.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (_ *domain.UserProfile, err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemMongo, "profile.get", "find user_profiles")
	defer func() { end(err) }()

	var p domain.UserProfile
	if err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	if p.Interests == nil {
		p.Interests = []domain.Interest{}
	}
	if p.BrowsingHistory == nil {
		p.BrowsingHistory = []domain.HistoryEntry{}
	}
	return &p, nil
}

// SaveInterests replaces the user's interest set.
func (r *ProfileRepository) SaveInterests(ctx context.Context, userID string, interests []domain.Interest) error {
	if interests == nil {
		interests = []domain.Interest{}
	}
	return r.set(ctx, userID, "interests", interests)
}

// SaveHistory replaces the user's browsing history.
func (r *ProfileRepository) SaveHistory(ctx context.Context, userID string, history []domain.HistoryEntry) error {
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	return r.set(ctx, userID, "browsing_history", history)
}

func (r *ProfileRepository) set(ctx context.Context, userID, field string, value any) (err error) {
	ctx, end := database.TraceOperation(ctx, database.SystemMongo, "profile.update", "update user_profiles $set "+field)
	defer func() { end(err) }()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			field:        value,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("update profile %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("user", userID)
	}
	return nil
}
