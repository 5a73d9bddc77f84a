package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shah-aman/ai-ugc-sub000/models"
)

// ErrStageConflict is returned when a conditional stage advance matched no
// document: either another invocation already advanced the record or the
// record disappeared. The caller re-reads and resumes.
var ErrStageConflict = errors.New("stage marker changed concurrently")

// Store wraps the two collections the pipeline touches. Every operation is a
// single atomic document read or update; there are no cross-call transactions.
type Store struct {
	client     *mongo.Client
	scripts    *mongo.Collection
	presenters *mongo.Collection
}

// Connect dials MongoDB, pings it and prepares indexes.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:     client,
		scripts:    db.Collection("scripts"),
		presenters: db.Collection("presenters"),
	}
	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.scripts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "presenter_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.presenters.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Disconnect closes the underlying client.
func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping reports connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) InsertScript(ctx context.Context, script *models.Script) error {
	script.CreatedAt = time.Now()
	script.UpdatedAt = script.CreatedAt
	result, err := s.scripts.InsertOne(ctx, script)
	if err != nil {
		return err
	}
	script.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Store) GetScript(ctx context.Context, id primitive.ObjectID) (*models.Script, error) {
	var script models.Script
	err := s.scripts.FindOne(ctx, bson.M{"_id": id}).Decode(&script)
	if err != nil {
		return nil, err
	}
	return &script, nil
}

// UpdateScript sets arbitrary fields on one record.
func (s *Store) UpdateScript(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now()
	_, err := s.scripts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// AdvanceStage moves the stage marker from `from` to `to` and writes the
// stage's artifact fields in the same atomic update. The filter includes the
// expected current marker, so a concurrent invocation that already advanced
// the record makes this a no-op and the caller gets ErrStageConflict instead
// of duplicated work.
func (s *Store) AdvanceStage(ctx context.Context, id primitive.ObjectID, from, to models.Stage, set bson.M) error {
	if to <= from {
		return fmt.Errorf("stage marker must increase: %s -> %s", from, to)
	}
	if set == nil {
		set = bson.M{}
	}
	set["status"] = to
	set["updated_at"] = time.Now()

	result, err := s.scripts.UpdateOne(
		ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrStageConflict
	}
	return nil
}

// SetScriptError records a failure message without touching the stage marker.
func (s *Store) SetScriptError(ctx context.Context, id primitive.ObjectID, message string) {
	// best effort; the request already failed
	_, _ = s.scripts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"error_message": message,
		"updated_at":    time.Now(),
	}})
}

func (s *Store) GetPresenter(ctx context.Context, id primitive.ObjectID) (*models.Presenter, error) {
	var presenter models.Presenter
	err := s.presenters.FindOne(ctx, bson.M{"_id": id}).Decode(&presenter)
	if err != nil {
		return nil, err
	}
	return &presenter, nil
}

func (s *Store) ListPresenters(ctx context.Context) ([]models.Presenter, error) {
	cursor, err := s.presenters.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var presenters []models.Presenter
	if err := cursor.All(ctx, &presenters); err != nil {
		return nil, err
	}
	return presenters, nil
}

func (s *Store) InsertPresenter(ctx context.Context, presenter *models.Presenter) error {
	presenter.CreatedAt = time.Now()
	result, err := s.presenters.InsertOne(ctx, presenter)
	if err != nil {
		return err
	}
	presenter.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// IsNotFound reports whether err is the driver's missing-document error.
func IsNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
