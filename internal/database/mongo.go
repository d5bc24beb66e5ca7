package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"vfm-go/internal/model"
	"vfm-go/internal/vfm"
)

const mongoConnectTimeout = 5 * time.Second

// MongoStore implements vfm.MetadataStore on MongoDB. Records are stored
// as BSON documents with their id in _id.
type MongoStore struct {
	uri    string
	dbName string
	clock  vfm.Clock
	logger vfm.Logger

	mu          sync.Mutex
	client      *mongo.Client
	db          *mongo.Database
	initialized bool
	unavailable bool

	users    *mongoCollection[*model.User]
	files    *mongoCollection[*model.File]
	folders  *mongoCollection[*model.Folder]
	sessions *mongoCollection[*model.Session]
	shares   *mongoCollection[*model.Share]
}

var _ vfm.MetadataStore = (*MongoStore)(nil)

// NewMongoStore returns a store for database dbName on the server at uri.
// Nothing is opened until Init.
func NewMongoStore(uri, dbName string, clock vfm.Clock, logger vfm.Logger) *MongoStore {
	if clock == nil {
		clock = vfm.RealClock{}
	}
	if logger == nil {
		logger = vfm.NewNopLogger()
	}

	s := &MongoStore{uri: uri, dbName: dbName, clock: clock, logger: logger}
	s.users = &mongoCollection[*model.User]{store: s, layout: usersLayout}
	s.files = &mongoCollection[*model.File]{store: s, layout: filesLayout}
	s.folders = &mongoCollection[*model.Folder]{store: s, layout: foldersLayout}
	s.sessions = &mongoCollection[*model.Session]{store: s, layout: sessionsLayout}
	s.shares = &mongoCollection[*model.Share]{store: s, layout: sharesLayout}
	return s
}

// Init connects to the server and ensures every collection's indexes
// exist. An unreachable server marks the store unavailable.
func (s *MongoStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	client, err := s.connect(ctx)
	if err != nil {
		s.logger.Warn("metadata store unavailable", "database", s.dbName, "error", err)
		s.unavailable = true
		s.initialized = true
		return nil
	}

	db := client.Database(s.dbName)
	for _, l := range layouts {
		if err := ensureIndexes(ctx, db.Collection(l.name), l); err != nil {
			client.Disconnect(context.Background())
			return err
		}
	}

	s.client = client
	s.db = db
	s.initialized = true
	s.logger.Debug("metadata store ready", "database", s.dbName)
	return nil
}

func (s *MongoStore) connect(ctx context.Context) (*mongo.Client, error) {
	if s.uri == "" {
		return nil, fmt.Errorf("no mongo uri")
	}

	opts := options.Client().ApplyURI(s.uri).SetServerSelectionTimeout(mongoConnectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	return client, nil
}

func ensureIndexes(ctx context.Context, coll *mongo.Collection, l layout) error {
	models := make([]mongo.IndexModel, 0, len(l.indexes))
	for _, ix := range l.indexes {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: ix, Value: 1}},
			Options: options.Index().SetName("idx_" + l.name + "_" + ix).SetUnique(l.isUnique(ix)),
		})
	}
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating %s indexes: %w", l.name, err)
	}
	return nil
}

func (s *MongoStore) database(ctx context.Context) (*mongo.Database, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable || s.db == nil {
		return nil, vfm.ErrStorageUnavailable
	}
	return s.db, nil
}

func (s *MongoStore) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized && !s.unavailable
}

func (s *MongoStore) Users() vfm.Collection[*model.User]       { return s.users }
func (s *MongoStore) Files() vfm.Collection[*model.File]       { return s.files }
func (s *MongoStore) Folders() vfm.Collection[*model.Folder]   { return s.folders }
func (s *MongoStore) Sessions() vfm.Collection[*model.Session] { return s.sessions }
func (s *MongoStore) Shares() vfm.Collection[*model.Share]     { return s.shares }

// Close disconnects from the server.
func (s *MongoStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(context.Background())
	s.client = nil
	s.db = nil
	s.initialized = false
	return err
}

// mongoCollection stores records of type T in one mongo collection.
type mongoCollection[T vfm.Record] struct {
	store  *MongoStore
	layout layout
}

func (c *mongoCollection[T]) coll(ctx context.Context) (*mongo.Collection, error) {
	db, err := c.store.database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(c.layout.name), nil
}

func (c *mongoCollection[T]) Add(ctx context.Context, rec T) error {
	coll, err := c.coll(ctx)
	if err != nil {
		return err
	}
	rec.Stamp(c.store.clock.Now(), true)
	if _, err := coll.InsertOne(ctx, rec); err != nil {
		return c.writeError("inserting", rec.RecordID(), err)
	}
	return nil
}

func (c *mongoCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	coll, err := c.coll(ctx)
	if err != nil {
		return rec, err
	}
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec); err != nil {
		var zero T
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, nil // Not found
		}
		return zero, fmt.Errorf("getting %s %s: %w", c.layout.name, id, err)
	}
	return rec, nil
}

func (c *mongoCollection[T]) GetAll(ctx context.Context) ([]T, error) {
	return c.find(ctx, bson.M{})
}

func (c *mongoCollection[T]) GetByIndex(ctx context.Context, index string, value string) ([]T, error) {
	if !c.layout.hasIndex(index) {
		return nil, fmt.Errorf("%s has no index %q", c.layout.name, index)
	}
	return c.find(ctx, bson.M{index: value})
}

func (c *mongoCollection[T]) Update(ctx context.Context, rec T) error {
	coll, err := c.coll(ctx)
	if err != nil {
		return err
	}
	rec.Stamp(c.store.clock.Now(), false)
	opts := options.Replace().SetUpsert(true)
	if _, err := coll.ReplaceOne(ctx, bson.M{"_id": rec.RecordID()}, rec, opts); err != nil {
		return c.writeError("updating", rec.RecordID(), err)
	}
	return nil
}

func (c *mongoCollection[T]) Delete(ctx context.Context, id string) error {
	coll, err := c.coll(ctx)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("deleting %s %s: %w", c.layout.name, id, err)
	}
	return nil
}

func (c *mongoCollection[T]) find(ctx context.Context, filter bson.M) ([]T, error) {
	coll, err := c.coll(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", c.layout.name, err)
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.layout.name, err)
	}
	return out, nil
}

func (c *mongoCollection[T]) writeError(op, id string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %s %s: %w", op, c.layout.name, id, vfm.ErrDuplicateKey)
	}
	return fmt.Errorf("%s %s %s: %w", op, c.layout.name, id, err)
}
