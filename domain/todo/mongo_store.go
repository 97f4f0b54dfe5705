package todo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoTodo is the stored document. Its ObjectID never leaves this file.
type mongoTodo struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Status      Status             `bson:"status"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d *mongoTodo) toTodo() Todo {
	return Todo{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Status:      d.Status,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoStore keeps todos in a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// ConnectMongo dials uri and binds the store to database.collection.
func ConnectMongo(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// objectID parses an external id. A malformed id is a store failure, not a miss.
func objectID(id string, op Op) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, &PersistenceError{
			Op:  op,
			Err: fmt.Errorf("Cast to ObjectId failed for value %q: %w", id, err),
		}
	}
	return oid, nil
}

// FindAll returns every todo in the collection.
func (s *MongoStore) FindAll(ctx context.Context) ([]Todo, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, readError("failed to find todos", err)
	}

	var docs []mongoTodo
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, readError("failed to decode todos", err)
	}

	todos := make([]Todo, 0, len(docs))
	for i := range docs {
		todos = append(todos, docs[i].toTodo())
	}
	return todos, nil
}

// FindByID returns the todo with the given id.
func (s *MongoStore) FindByID(ctx context.Context, id string) (*Todo, error) {
	oid, err := objectID(id, OpRead)
	if err != nil {
		return nil, err
	}

	var doc mongoTodo
	if err := s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, readError("failed to find todo", err)
	}
	t := doc.toTodo()
	return &t, nil
}

// Insert stores a new todo built from d.
func (s *MongoStore) Insert(ctx context.Context, d Draft) (*Todo, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := mongoTodo{
		ID:          primitive.NewObjectID(),
		Title:       d.Title,
		Description: d.Description,
		Status:      StatusOngoing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return nil, writeError("failed to create todo", err)
	}
	t := doc.toTodo()
	return &t, nil
}

// UpdateByID applies p and returns the document after the update.
func (s *MongoStore) UpdateByID(ctx context.Context, id string, p Patch) (*Todo, error) {
	oid, err := objectID(id, OpWrite)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now().UTC().Truncate(time.Millisecond)}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Status != nil {
		set["status"] = *p.Status
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc mongoTodo
	err = s.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, writeError("failed to update todo", err)
	}
	t := doc.toTodo()
	return &t, nil
}

// DeleteByID removes the document permanently.
func (s *MongoStore) DeleteByID(ctx context.Context, id string) error {
	oid, err := objectID(id, OpRead)
	if err != nil {
		return err
	}

	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return readError("failed to delete todo", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the server connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongodb: %w", err)
	}
	return nil
}
