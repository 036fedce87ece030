package db

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FilterBuilder helps build MongoDB filters fluently
type FilterBuilder struct {
	filter bson.M
}

// NewFilter creates a new FilterBuilder
func NewFilter() *FilterBuilder {
	return &FilterBuilder{filter: bson.M{}}
}

// Eq adds an equality condition
func (f *FilterBuilder) Eq(field string, value interface{}) *FilterBuilder {
	f.filter[field] = value
	return f
}

// In adds an $in condition (value in array)
func (f *FilterBuilder) In(field string, values interface{}) *FilterBuilder {
	f.filter[field] = bson.M{"$in": values}
	return f
}

// Exists checks if field exists
func (f *FilterBuilder) Exists(field string, exists bool) *FilterBuilder {
	f.filter[field] = bson.M{"$exists": exists}
	return f
}

// ObjectID adds an ObjectID filter
func (f *FilterBuilder) ObjectID(field string, id string) *FilterBuilder {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err == nil {
		f.filter[field] = objectID
	}
	return f
}

// Or combines multiple filters with OR
func (f *FilterBuilder) Or(filters ...bson.M) *FilterBuilder {
	if len(filters) > 0 {
		f.filter["$or"] = filters
	}
	return f
}

// Build returns the final bson.M filter
func (f *FilterBuilder) Build() bson.M {
	return f.filter
}

// Empty returns an empty filter (matches all documents)
func Empty() bson.M {
	return bson.M{}
}
