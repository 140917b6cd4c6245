package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"getmyguide/internal/domain/guide"
	"getmyguide/internal/domain/shared/daterange"
)

const guidesCollection = "guides"

// GuideRepository keeps each guide's claimed days in one document so a
// reservation is a single conditional update.
type GuideRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewGuideRepository(db *mongo.Database) *GuideRepository {
	return &GuideRepository{col: db.Collection(guidesCollection), now: time.Now}
}

func (r *GuideRepository) ByID(ctx context.Context, id guide.ID) (*guide.Guide, error) {
	var doc guideDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, guide.ErrGuideNotFound
		}
		return nil, classify("guides.find", err)
	}
	return doc.toAggregate(), nil
}

// Save upserts profile fields only; claimed days start empty on insert.
func (r *GuideRepository) Save(ctx context.Context, g *guide.Guide) error {
	update := bson.M{
		"$set": bson.M{
			"name":              g.Name,
			"email":             g.Email,
			"service_locations": g.ServiceLocations,
			"languages":         g.Languages,
			"updated_at":        g.UpdatedAt.UTC(),
		},
		"$setOnInsert": bson.M{
			"created_at":        g.CreatedAt.UTC(),
			"unavailable_dates": []time.Time{},
		},
	}
	_, err := r.col.UpdateByID(ctx, string(g.ID), update, options.Update().SetUpsert(true))
	return classify("guides.save", err)
}

func (r *GuideRepository) IsAvailable(ctx context.Context, id guide.ID, dr daterange.DateRange) (bool, error) {
	g, err := r.ByID(ctx, id)
	if err != nil {
		return false, err
	}
	return g.IsAvailable(dr), nil
}

// Reserve matches the guide only if none of the days is claimed and pushes
// all of them in the same update. No match means either the guide is
// missing or a day is taken; a probe tells the two apart.
func (r *GuideRepository) Reserve(ctx context.Context, id guide.ID, dr daterange.DateRange) error {
	if err := dr.Validate(); err != nil {
		return err
	}
	days := dr.Days()
	filter := bson.M{
		"_id":               string(id),
		"unavailable_dates": bson.M{"$nin": days},
	}
	update := bson.M{
		"$push": bson.M{"unavailable_dates": bson.M{"$each": days, "$sort": 1}},
		"$set":  bson.M{"updated_at": r.now().UTC()},
	}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return classify("guides.reserve", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if err := r.exists(ctx, id); err != nil {
		return err
	}
	return guide.ErrDatesUnavailable
}

// Release pulls every day of dr. Days that are not claimed are ignored.
func (r *GuideRepository) Release(ctx context.Context, id guide.ID, dr daterange.DateRange) error {
	update := bson.M{
		"$pullAll": bson.M{"unavailable_dates": dr.Days()},
		"$set":     bson.M{"updated_at": r.now().UTC()},
	}
	res, err := r.col.UpdateByID(ctx, string(id), update)
	if err != nil {
		return classify("guides.release", err)
	}
	if res.MatchedCount == 0 {
		return guide.ErrGuideNotFound
	}
	return nil
}

func (r *GuideRepository) exists(ctx context.Context, id guide.ID) error {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": string(id)}, options.Count().SetLimit(1))
	if err != nil {
		return classify("guides.exists", err)
	}
	if n == 0 {
		return guide.ErrGuideNotFound
	}
	return nil
}

type guideDocument struct {
	ID               string      `bson:"_id"`
	Name             string      `bson:"name"`
	Email            string      `bson:"email"`
	ServiceLocations []string    `bson:"service_locations"`
	Languages        []string    `bson:"languages"`
	UnavailableDates []time.Time `bson:"unavailable_dates"`
	CreatedAt        time.Time   `bson:"created_at"`
	UpdatedAt        time.Time   `bson:"updated_at"`
}

func (d guideDocument) toAggregate() *guide.Guide {
	days := make([]time.Time, 0, len(d.UnavailableDates))
	for _, day := range d.UnavailableDates {
		days = append(days, daterange.Day(day))
	}
	return &guide.Guide{
		ID:               guide.ID(d.ID),
		Name:             d.Name,
		Email:            d.Email,
		ServiceLocations: d.ServiceLocations,
		Languages:        d.Languages,
		UnavailableDates: days,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}
