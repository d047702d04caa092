package mongo_go_driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/common"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestDocumentEncoding(t *testing.T) {
	fixed := time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC)
	s := &Store{name: "bot1", now: func() time.Time { return fixed }}

	session := common.NewSession(common.SessionTypeCallgrind, 5, 105, "Spawn")
	session.Map.Ensure("f").Calls = 2
	doc, err := s.document(session)
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var decoded sessionDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.Equal(t, "bot1", decoded.Name)
	assert.Equal(t, fixed, decoded.UpdatedAt.UTC())

	back, err := store.Decode([]byte(decoded.Session))
	require.NoError(t, err)
	assert.Equal(t, "Spawn", back.Filter)
	assert.Equal(t, int64(2), back.Map["f"].Calls)

	assert.Equal(t, "bot1", bson.Raw(raw).Lookup("_id").StringValue())
}

// Needs a local mongod; skipped when none answers.
func TestStoreRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://127.0.0.1:27017").SetServerSelectionTimeout(300*time.Millisecond))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())
	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("mongodb not available: %v", err)
	}

	s := NewStore(client.Database("tickprof_test").Collection("sessions"), "bot1")
	require.NoError(t, s.Clear(ctx))
	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, s.Save(ctx, common.NewSession(common.SessionTypeProfile, 1, 2, "")))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, common.SessionTypeProfile, loaded.Type)
	require.NoError(t, s.Clear(ctx))
}
