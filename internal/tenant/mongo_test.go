package tenant_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"vectorproxy/internal/tenant"
)

func TestMongoLookup_TeamID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	dsID := primitive.NewObjectID()
	teamID := primitive.NewObjectID()

	mt.Run("ObjectIDTeam", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: dsID},
			{Key: "teamId", Value: teamID},
		}))

		got, err := tenant.NewMongoLookup(mt.Coll).TeamID(context.Background(), dsID.Hex())
		assert.NoError(mt, err)
		assert.Equal(mt, teamID.Hex(), got)
	})

	mt.Run("StringTeam", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "legacy-ds"},
			{Key: "teamId", Value: "team-b"},
		}))

		got, err := tenant.NewMongoLookup(mt.Coll).TeamID(context.Background(), "legacy-ds")
		assert.NoError(mt, err)
		assert.Equal(mt, "team-b", got)
	})

	mt.Run("NotFound", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := tenant.NewMongoLookup(mt.Coll).TeamID(context.Background(), dsID.Hex())
		assert.ErrorIs(mt, err, tenant.ErrNotFound)
	})

	mt.Run("MissingTeam", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: dsID},
		}))

		_, err := tenant.NewMongoLookup(mt.Coll).TeamID(context.Background(), dsID.Hex())
		assert.ErrorIs(mt, err, tenant.ErrMissingTeam)
	})

	mt.Run("CommandError", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Message: "interrupted at shutdown",
		}))

		_, err := tenant.NewMongoLookup(mt.Coll).TeamID(context.Background(), dsID.Hex())
		assert.Error(mt, err)
		assert.NotErrorIs(mt, err, mongo.ErrNoDocuments)
	})
}
