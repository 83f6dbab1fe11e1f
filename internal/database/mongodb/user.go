package mongodb

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jason-s-yu/streamify/pkg/models"
)

type userDoc struct {
	ID               string    `bson:"_id"`
	Email            string    `bson:"email"`
	Password         string    `bson:"password"`
	FullName         string    `bson:"full_name"`
	Bio              string    `bson:"bio"`
	NativeLanguage   string    `bson:"native_language"`
	LearningLanguage string    `bson:"learning_language"`
	ProfilePic       string    `bson:"profile_pic"`
	Location         string    `bson:"location"`
	IsOnboarded      bool      `bson:"is_onboarded"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func toUserDoc(u *models.User) userDoc {
	return userDoc{
		ID:               u.ID,
		Email:            strings.ToLower(u.Email),
		Password:         u.Password,
		FullName:         u.FullName,
		Bio:              u.Bio,
		NativeLanguage:   u.NativeLanguage,
		LearningLanguage: u.LearningLanguage,
		ProfilePic:       u.ProfilePic,
		Location:         u.Location,
		IsOnboarded:      u.IsOnboarded,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (d userDoc) model() models.User {
	return models.User{
		ID:               d.ID,
		Email:            d.Email,
		Password:         d.Password,
		FullName:         d.FullName,
		Bio:              d.Bio,
		NativeLanguage:   d.NativeLanguage,
		LearningLanguage: d.LearningLanguage,
		ProfilePic:       d.ProfilePic,
		Location:         d.Location,
		IsOnboarded:      d.IsOnboarded,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type users struct {
	coll *mongo.Collection
}

func (r *users) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := r.coll.InsertOne(ctx, toUserDoc(u))
	return translate(err)
}

func (r *users) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var d userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, translate(err)
	}
	u := d.model()
	return &u, nil
}

func (r *users) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *users) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *users) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.User, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (r *users) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *users) CompleteOnboarding(ctx context.Context, id string, p models.Profile) (*models.User, error) {
	set := bson.M{
		"full_name":         p.FullName,
		"bio":               p.Bio,
		"native_language":   p.NativeLanguage,
		"learning_language": p.LearningLanguage,
		"location":          p.Location,
		"is_onboarded":      true,
		"updated_at":        time.Now().UTC().Truncate(time.Millisecond),
	}
	if p.ProfilePic != "" {
		set["profile_pic"] = p.ProfilePic
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d userDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&d)
	if err != nil {
		return nil, translate(err)
	}
	u := d.model()
	return &u, nil
}

func (r *users) ListOnboarded(ctx context.Context, exclude []string) ([]models.User, error) {
	filter := bson.M{"is_onboarded": true}
	if len(exclude) > 0 {
		filter["_id"] = bson.M{"$nin": exclude}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	return r.find(ctx, filter, opts)
}
