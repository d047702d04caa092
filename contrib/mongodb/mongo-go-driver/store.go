// Package mongo_go_driver keeps profiler sessions in a mongodb collection, one document per
// bot name.
package mongo_go_driver

import (
	"context"
	"time"

	"github.com/volcengine/apminsight-tick-profiler-go/profiler/common"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type sessionDocument struct {
	Name      string    `bson:"_id"`
	Session   string    `bson:"session"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type Store struct {
	coll *mongo.Collection
	name string
	now  func() time.Time
}

var _ store.SessionStore = (*Store)(nil)

// NewStore stores the session of bot name in coll.
func NewStore(coll *mongo.Collection, name string) *Store {
	return &Store{coll: coll, name: name, now: time.Now}
}

func (s *Store) filter() bson.M {
	return bson.M{"_id": s.name}
}

func (s *Store) Load(ctx context.Context) (*common.Session, error) {
	var doc sessionDocument
	err := s.coll.FindOne(ctx, s.filter()).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return store.Decode([]byte(doc.Session))
}

func (s *Store) Save(ctx context.Context, session *common.Session) error {
	if session == nil {
		return s.Clear(ctx)
	}
	doc, err := s.document(session)
	if err != nil {
		return err
	}
	_, err = s.coll.ReplaceOne(ctx, s.filter(), doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.coll.DeleteOne(ctx, s.filter())
	return err
}

func (s *Store) document(session *common.Session) (*sessionDocument, error) {
	b, err := store.Encode(session)
	if err != nil {
		return nil, err
	}
	return &sessionDocument{Name: s.name, Session: string(b), UpdatedAt: s.now()}, nil
}
