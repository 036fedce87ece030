package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PaginationParams holds pagination configuration
type PaginationParams struct {
	Page     int64  `json:"page"`     // Current page (1-based)
	PageSize int64  `json:"pageSize"` // Items per page
	SortBy   string `json:"sortBy"`   // Field to sort by
	SortDesc bool   `json:"sortDesc"` // Sort descending if true
}

// PaginatedResult holds paginated query results
type PaginatedResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int64 `json:"page"`
	PageSize   int64 `json:"pageSize"`
	TotalPages int64 `json:"totalPages"`
}

// Repository provides generic CRUD operations for a MongoDB collection
type Repository[T any] struct {
	collection *mongo.Collection
}

// NewRepository creates a new generic repository
func NewRepository[T any](db *mongo.Database, collectionName string) *Repository[T] {
	return &Repository[T]{
		collection: db.Collection(collectionName),
	}
}

func OpenConnection(uri string, database string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, err
	}

	return client.Database(database), nil
}

// Create inserts a new document
func (r *Repository[T]) Create(ctx context.Context, document T) (*mongo.InsertOneResult, error) {
	return r.collection.InsertOne(ctx, document)
}

// FindByID finds a document by its ObjectID
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var result T
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindOne finds a single document matching the filter
func (r *Repository[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	var result T
	err := r.collection.FindOne(ctx, filter).Decode(&result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindAll finds all documents matching the filter
func (r *Repository[T]) FindAll(ctx context.Context, filter bson.M) ([]T, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []T
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// FindWithPagination finds documents with pagination support
func (r *Repository[T]) FindWithPagination(ctx context.Context, filter bson.M, params PaginationParams) (*PaginatedResult[T], error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 10
	}
	if params.PageSize > 100 {
		params.PageSize = 100 // Max limit
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	skip := (params.Page - 1) * params.PageSize

	findOptions := options.Find()
	findOptions.SetSkip(skip)
	findOptions.SetLimit(params.PageSize)

	if params.SortBy != "" {
		sortOrder := 1
		if params.SortDesc {
			sortOrder = -1
		}
		findOptions.SetSort(bson.D{{Key: params.SortBy, Value: sortOrder}})
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []T
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	totalPages := total / params.PageSize
	if total%params.PageSize > 0 {
		totalPages++
	}

	return &PaginatedResult[T]{
		Data:       results,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

// UpdateOne applies $set fields to the single document matching the
// filter. The caller controls the filter, which is what makes
// conditional (compare-and-set) updates possible: put the expected
// current state in the filter and check MatchedCount on the result.
func (r *Repository[T]) UpdateOne(ctx context.Context, filter bson.M, set bson.M, unset bson.M) (*mongo.UpdateResult, error) {
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return r.collection.UpdateOne(ctx, filter, update)
}

// Exists checks if a document matching the filter exists
func (r *Repository[T]) Exists(ctx context.Context, filter bson.M) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
