package util

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a 24-character hex record id. Ids sort roughly by creation
// time and are valid Mongo ObjectId hex strings.
func NewID() string {
	return primitive.NewObjectID().Hex()
}
