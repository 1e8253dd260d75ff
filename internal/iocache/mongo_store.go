package iocache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// Mongo defaults.
const (
	defaultMongoDatabase = "reposcout"
	defaultMongoTimeout  = 10 * time.Second
	mongoReadAttempts    = 3
)

// snapshotDocument is the current generation pointer and payload for a key.
type snapshotDocument struct {
	Key           string    `bson:"_id"`
	Owner         string    `bson:"owner"`
	Repo          string    `bson:"repo"`
	Payload       string    `bson:"payload"`
	FileCount     int       `bson:"file_count"`
	Generation    int64     `bson:"generation"`
	CreatedAt     time.Time `bson:"created_at"`
	LastCheckedAt time.Time `bson:"last_checked_at"`
}

// fingerprintDocument is one path of one snapshot generation.
type fingerprintDocument struct {
	SnapshotKey string `bson:"snapshot_key"`
	Generation  int64  `bson:"generation"`
	Path        string `bson:"path"`
	Hash        string `bson:"hash"`
	Size        int64  `bson:"size"`
}

// MongoSnapshotStore stores snapshots in MongoDB. Save writes the fingerprints of a new
// generation first and then swaps the snapshot's generation pointer, so readers never
// pair a payload with another analysis's fingerprints.
type MongoSnapshotStore struct {
	client       *mongo.Client
	db           *mongo.Database
	snapshots    *mongo.Collection
	fingerprints *mongo.Collection
	timeout      time.Duration
}

var _ contract.SnapshotStore = &MongoSnapshotStore{} // Compile-time check

// NewMongoSnapshotStore connects to MongoDB and ensures the collection indexes exist.
// The database comes from the URI path and defaults to "reposcout".
func NewMongoSnapshotStore(uri string) (*MongoSnapshotStore, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid MongoDB connection string: %w. Expected mongodb://host:port/dbname", err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = defaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultMongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to mongodb database: %w. Check that MongoDB is running and the connection string is correct", err)
	}

	db := client.Database(dbName)
	store := &MongoSnapshotStore{
		client:       client,
		db:           db,
		snapshots:    db.Collection(snapshotsTable),
		fingerprints: db.Collection(fingerprintsTable),
		timeout:      defaultMongoTimeout,
	}
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

// ensureIndexes creates the lookup and retention indexes.
func (s *MongoSnapshotStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.fingerprints.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "snapshot_key", Value: 1}, {Key: "generation", Value: 1}, {Key: "path", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create fingerprint index: %w", err)
	}
	if _, err := s.snapshots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create snapshot index: %w", err)
	}
	return nil
}

// ctx returns a context bounded by the store timeout.
func (s *MongoSnapshotStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get returns the snapshot for key, or nil when none is stored.
func (s *MongoSnapshotStore) Get(key schema.RepositoryKey) (*schema.AnalysisSnapshot, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	for range mongoReadAttempts {
		var doc snapshotDocument
		err := s.snapshots.FindOne(ctx, bson.M{"_id": key.String()}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot %s: %w", key, err)
		}

		fps, err := s.readGeneration(ctx, doc.Key, doc.Generation)
		if err != nil {
			return nil, err
		}
		// A concurrent save may have retired this generation between the two reads.
		if len(fps) != doc.FileCount {
			continue
		}
		snap := doc.toSnapshot(fps)
		return &snap, nil
	}
	return nil, fmt.Errorf("snapshot %s changed during read; retry later", key)
}

// readGeneration loads the fingerprints of one generation.
func (s *MongoSnapshotStore) readGeneration(ctx context.Context, snapshotKey string, generation int64) (schema.FingerprintMap, error) {
	cur, err := s.fingerprints.Find(ctx, bson.M{"snapshot_key": snapshotKey, "generation": generation})
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints for %s: %w", snapshotKey, err)
	}
	var docs []fingerprintDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode fingerprints for %s: %w", snapshotKey, err)
	}

	fps := make(schema.FingerprintMap, len(docs))
	for _, d := range docs {
		fps.Add(schema.FileFingerprint{Path: d.Path, Hash: d.Hash, Size: d.Size})
	}
	return fps, nil
}

// toSnapshot converts the stored document to the domain type.
func (d snapshotDocument) toSnapshot(fps schema.FingerprintMap) schema.AnalysisSnapshot {
	return schema.AnalysisSnapshot{
		Key:           schema.RepositoryKey{Owner: d.Owner, Repo: d.Repo},
		Payload:       json.RawMessage(d.Payload),
		Fingerprints:  fps,
		CreatedAt:     d.CreatedAt.UTC(),
		LastCheckedAt: d.LastCheckedAt.UTC(),
	}
}

// nextGeneration returns a generation number newer than the current one.
func (s *MongoSnapshotStore) nextGeneration(ctx context.Context, key string) (int64, error) {
	gen := time.Now().UnixNano()
	var doc snapshotDocument
	err := s.snapshots.FindOne(ctx, bson.M{"_id": key}, options.FindOne().SetProjection(bson.M{"generation": 1})).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return gen, nil
	case err != nil:
		return 0, err
	}
	return max(gen, doc.Generation+1), nil
}

// Save writes a new fingerprint generation, points the snapshot at it and retires older generations.
func (s *MongoSnapshotStore) Save(key schema.RepositoryKey, payload json.RawMessage, fingerprints schema.FingerprintMap, createdAt time.Time) error {
	ctx, cancel := s.ctx()
	defer cancel()

	id := key.String()
	gen, err := s.nextGeneration(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: failed to read generation for %s: %v", contract.ErrStoreWrite, key, err)
	}

	if len(fingerprints) > 0 {
		docs := make([]any, 0, len(fingerprints))
		for _, path := range sortedPaths(fingerprints) {
			fp := fingerprints[path]
			docs = append(docs, fingerprintDocument{SnapshotKey: id, Generation: gen, Path: path, Hash: fp.Hash, Size: fp.Size})
		}
		if _, err := s.fingerprints.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
			s.discardGeneration(id, gen)
			return fmt.Errorf("%w: failed to insert fingerprints for %s: %v", contract.ErrStoreWrite, key, err)
		}
	}

	doc := snapshotDocument{
		Key:           id,
		Owner:         key.Owner,
		Repo:          key.Repo,
		Payload:       string(payload),
		FileCount:     len(fingerprints),
		Generation:    gen,
		CreatedAt:     createdAt.UTC(),
		LastCheckedAt: createdAt.UTC(),
	}
	if _, err := s.snapshots.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true)); err != nil {
		s.discardGeneration(id, gen)
		return fmt.Errorf("%w: failed to swap snapshot %s: %v", contract.ErrStoreWrite, key, err)
	}

	// Older generations are unreachable now; a failure here only leaves garbage for the next save.
	_, _ = s.fingerprints.DeleteMany(ctx, bson.M{"snapshot_key": id, "generation": bson.M{"$ne": gen}})
	return nil
}

// discardGeneration removes a generation that never became current.
func (s *MongoSnapshotStore) discardGeneration(id string, gen int64) {
	ctx, cancel := s.ctx()
	defer cancel()
	_, _ = s.fingerprints.DeleteMany(ctx, bson.M{"snapshot_key": id, "generation": gen})
}

// TouchLastChecked updates only the last-checked timestamp.
func (s *MongoSnapshotStore) TouchLastChecked(key schema.RepositoryKey, checkedAt time.Time) error {
	ctx, cancel := s.ctx()
	defer cancel()
	_, err := s.snapshots.UpdateOne(ctx, bson.M{"_id": key.String()}, bson.M{"$set": bson.M{"last_checked_at": checkedAt.UTC()}})
	if err != nil {
		return fmt.Errorf("%w: failed to touch snapshot %s: %v", contract.ErrStoreWrite, key, err)
	}
	return nil
}

// Delete removes the snapshot and every fingerprint generation for key.
func (s *MongoSnapshotStore) Delete(key schema.RepositoryKey) error {
	ctx, cancel := s.ctx()
	defer cancel()
	id := key.String()
	if _, err := s.snapshots.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("%w: failed to delete snapshot %s: %v", contract.ErrStoreWrite, key, err)
	}
	if _, err := s.fingerprints.DeleteMany(ctx, bson.M{"snapshot_key": id}); err != nil {
		return fmt.Errorf("%w: failed to delete fingerprints for %s: %v", contract.ErrStoreWrite, key, err)
	}
	return nil
}

// Cleanup deletes snapshots created before cutoff, with their fingerprints.
func (s *MongoSnapshotStore) Cleanup(cutoff time.Time) (int64, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	filter := bson.M{"created_at": bson.M{"$lt": cutoff.UTC()}}
	cur, err := s.snapshots.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, fmt.Errorf("failed to find old snapshots: %w", err)
	}
	var docs []snapshotDocument
	if err := cur.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("failed to decode old snapshots: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.Key)
	}
	res, err := s.snapshots.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete old snapshots: %v", contract.ErrStoreWrite, err)
	}
	if _, err := s.fingerprints.DeleteMany(ctx, bson.M{"snapshot_key": bson.M{"$in": keys}}); err != nil {
		return res.DeletedCount, fmt.Errorf("%w: failed to delete old fingerprints: %v", contract.ErrStoreWrite, err)
	}
	return res.DeletedCount, nil
}

// ListSnapshots returns all stored snapshots with their current fingerprints, ordered by key.
func (s *MongoSnapshotStore) ListSnapshots() ([]schema.AnalysisSnapshot, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	cur, err := s.snapshots.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	var docs []snapshotDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode snapshots: %w", err)
	}

	results := make([]schema.AnalysisSnapshot, 0, len(docs))
	for _, d := range docs {
		fps, err := s.readGeneration(ctx, d.Key, d.Generation)
		if err != nil {
			return nil, err
		}
		results = append(results, d.toSnapshot(fps))
	}
	return results, nil
}

// GetStatus returns status information about the snapshot store.
func (s *MongoSnapshotStore) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(schema.MongoDBBackend),
		Connected:  s.client != nil,
		TableSizes: make(map[string]int64),
	}

	ctx, cancel := s.ctx()
	defer cancel()

	snapCount, err := s.snapshots.CountDocuments(ctx, bson.M{})
	if err != nil {
		return status, fmt.Errorf("failed to count snapshots: %w", err)
	}
	fpCount, err := s.fingerprints.CountDocuments(ctx, bson.M{})
	if err != nil {
		return status, fmt.Errorf("failed to count fingerprints: %w", err)
	}
	status.TotalSnapshots = int(snapCount)
	status.TotalFingerprints = int(fpCount)
	status.TableSizes[snapshotsTable] = snapCount
	status.TableSizes[fingerprintsTable] = fpCount

	if snapCount > 0 {
		newest, err := s.edgeSnapshot(ctx, -1)
		if err != nil {
			return status, err
		}
		oldest, err := s.edgeSnapshot(ctx, 1)
		if err != nil {
			return status, err
		}
		status.NewestSnapshot = newest.CreatedAt.UTC()
		status.OldestSnapshot = oldest.CreatedAt.UTC()
	}

	var stats struct {
		DataSize float64 `bson:"dataSize"`
	}
	if err := s.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&stats); err == nil {
		status.SizeBytes = int64(stats.DataSize)
	} else {
		status.SizeBytes = (snapCount + fpCount) * 200
	}
	return status, nil
}

// edgeSnapshot returns the oldest (order 1) or newest (order -1) snapshot by creation time.
func (s *MongoSnapshotStore) edgeSnapshot(ctx context.Context, order int) (snapshotDocument, error) {
	var doc snapshotDocument
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: order}})
	if err := s.snapshots.FindOne(ctx, bson.M{}, opts).Decode(&doc); err != nil {
		return doc, fmt.Errorf("failed to read snapshot age range: %w", err)
	}
	return doc, nil
}

// Clear drops both collections.
func (s *MongoSnapshotStore) Clear() error {
	ctx, cancel := s.ctx()
	defer cancel()
	for _, coll := range []*mongo.Collection{s.fingerprints, s.snapshots} {
		if err := coll.Drop(ctx); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client.
func (s *MongoSnapshotStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.Disconnect(ctx)
}
