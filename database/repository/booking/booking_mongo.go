package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"buildbook/database"
	"buildbook/models"
)

// bookingStateDocument is the persisted shape of a booking flow.
type bookingStateDocument struct {
	BookingID string                  `bson:"id"`
	State     models.BookingState     `bson:"state"`
	StateData models.BookingStateData `bson:"state_data"`
	Version   int64                   `bson:"version"`
	CreatedAt time.Time               `bson:"created_at"`
	UpdatedAt time.Time               `bson:"updated_at"`
}

// MongoBookingStateRepo implements BookingStateRepository using MongoDB.
type MongoBookingStateRepo struct {
	coll *mongo.Collection
}

// NewMongoBookingStateRepo constructs a repo over the bookings collection.
func NewMongoBookingStateRepo() *MongoBookingStateRepo {
	db := database.MongoClient.Database("buildbook")
	return &MongoBookingStateRepo{coll: db.Collection("booking_states")}
}

// Create inserts a fresh booking document at version 1.
func (repo *MongoBookingStateRepo) Create(bc models.BookingContext) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	doc := bookingStateDocument{
		BookingID: bc.BookingID,
		State:     bc.State,
		StateData: bc.StateData,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("error creating booking state for %s: %w", bc.BookingID, err)
	}
	return nil
}

// Load fetches the booking context, including its current version.
func (repo *MongoBookingStateRepo) Load(bookingID string) (*models.BookingContext, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var doc bookingStateDocument
	filter := bson.M{"id": bookingID}
	if err := repo.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching booking state for %s: %w", bookingID, err)
	}
	return &models.BookingContext{
		BookingID: doc.BookingID,
		State:     doc.State,
		StateData: doc.StateData,
		Version:   doc.Version,
	}, nil
}

// Save commits the new state and state data, guarded by the version the
// caller loaded. A filter miss means either the document vanished or another
// writer got there first; both are reported so the caller can reload.
func (repo *MongoBookingStateRepo) Save(bookingID string, state models.BookingState, data models.BookingStateData, version int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{"id": bookingID, "version": version}
	update := bson.M{
		"$set": bson.M{
			"state":      state,
			"state_data": data,
			"updated_at": time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error saving booking state for %s: %w", bookingID, err)
	}
	if res.MatchedCount == 0 {
		count, err := repo.coll.CountDocuments(ctx, bson.M{"id": bookingID})
		if err == nil && count == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// Delete removes the booking document.
func (repo *MongoBookingStateRepo) Delete(bookingID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := repo.coll.DeleteOne(ctx, bson.M{"id": bookingID}); err != nil {
		return fmt.Errorf("error deleting booking state for %s: %w", bookingID, err)
	}
	return nil
}
