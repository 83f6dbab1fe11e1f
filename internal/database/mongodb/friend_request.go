package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jason-s-yu/streamify/internal/database"
	"github.com/jason-s-yu/streamify/pkg/models"
)

type friendRequestDoc struct {
	ID          string    `bson:"_id"`
	SenderID    string    `bson:"sender_id"`
	RecipientID string    `bson:"recipient_id"`
	PairKey     string    `bson:"pair_key"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d friendRequestDoc) model() models.FriendRequest {
	return models.FriendRequest{
		ID:          d.ID,
		SenderID:    d.SenderID,
		RecipientID: d.RecipientID,
		Status:      models.FriendRequestStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type friendRequests struct {
	coll  *mongo.Collection
	users *mongo.Collection
}

func (r *friendRequests) CreateFriendRequest(ctx context.Context, fr *models.FriendRequest) error {
	// no foreign keys in a document store
	n, err := r.users.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": []string{fr.SenderID, fr.RecipientID}}})
	if err != nil {
		return err
	}
	if n != 2 {
		return database.ErrNotFound
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	fr.CreatedAt, fr.UpdatedAt = now, now
	_, err = r.coll.InsertOne(ctx, friendRequestDoc{
		ID:          fr.ID,
		SenderID:    fr.SenderID,
		RecipientID: fr.RecipientID,
		PairKey:     models.PairKey(fr.SenderID, fr.RecipientID),
		Status:      string(fr.Status),
		CreatedAt:   fr.CreatedAt,
		UpdatedAt:   fr.UpdatedAt,
	})
	return translate(err)
}

func (r *friendRequests) findOne(ctx context.Context, filter bson.M) (*models.FriendRequest, error) {
	var d friendRequestDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, translate(err)
	}
	fr := d.model()
	return &fr, nil
}

func (r *friendRequests) GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *friendRequests) FindBetween(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	return r.findOne(ctx, bson.M{"pair_key": models.PairKey(a, b)})
}

func (r *friendRequests) AcceptFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	update := bson.M{"$set": bson.M{
		"status":     string(models.FriendRequestAccepted),
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d friendRequestDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(models.FriendRequestPending)},
		update, opts,
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := r.coll.CountDocuments(ctx, bson.M{"_id": id})
		if cerr != nil {
			return nil, cerr
		}
		if n > 0 {
			return nil, database.ErrPrecondition
		}
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	fr := d.model()
	return &fr, nil
}

func (r *friendRequests) ListFriendRequests(ctx context.Context, f database.FriendRequestFilter) ([]models.FriendRequest, error) {
	filter := bson.M{}
	if f.SenderID != "" {
		filter["sender_id"] = f.SenderID
	}
	if f.RecipientID != "" {
		filter["recipient_id"] = f.RecipientID
	}
	if f.Participant != "" {
		filter["$or"] = bson.A{
			bson.M{"sender_id": f.Participant},
			bson.M{"recipient_id": f.Participant},
		}
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []friendRequestDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.FriendRequest, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}
