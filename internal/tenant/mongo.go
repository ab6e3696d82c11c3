package tenant

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DatasourceCollection = "datasources"

type datasourceDoc struct {
	TeamID any `bson:"teamId"`
}

// MongoLookup reads datasources keyed by ObjectID. Ids that are not valid
// hex ObjectIDs are matched as plain strings.
type MongoLookup struct {
	coll *mongo.Collection
}

func NewMongoLookup(coll *mongo.Collection) *MongoLookup {
	return &MongoLookup{coll: coll}
}

func (l *MongoLookup) TeamID(ctx context.Context, datasourceID string) (string, error) {
	var key any = datasourceID
	if oid, err := primitive.ObjectIDFromHex(datasourceID); err == nil {
		key = oid
	}

	var doc datasourceDoc
	opts := options.FindOne().SetProjection(bson.D{{Key: "teamId", Value: 1}})
	err := l.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find datasource %s: %w", datasourceID, err)
	}

	switch v := doc.TeamID.(type) {
	case primitive.ObjectID:
		return v.Hex(), nil
	case string:
		if v != "" {
			return v, nil
		}
	}
	return "", ErrMissingTeam
}
