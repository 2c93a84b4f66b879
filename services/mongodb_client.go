package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"market_scanner_backend/services/universe"
)

// Collection names
const (
	IndexListCollection   = "index_lists"
	ScanSummaryCollection = "scan_summaries"
)

// MongoDBClient handles MongoDB persistence for index constituent lists
// and scan summaries. The client is optional; every method degrades to
// an error the caller absorbs when Mongo is not configured.
type MongoDBClient struct {
	client      *mongo.Client
	db          *mongo.Database
	uri         string
	dbName      string
	mu          sync.RWMutex
	connected   bool
	lastError   string
	connectedAt *time.Time
}

// NewMongoDBClient creates a client for the given URI. An empty URI
// yields a disabled client.
func NewMongoDBClient(uri, dbName string) *MongoDBClient {
	return &MongoDBClient{uri: uri, dbName: dbName}
}

// Connect establishes the MongoDB connection
func (m *MongoDBClient) Connect() error {
	if m.uri == "" {
		return fmt.Errorf("MONGODB_URI not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.uri))
	if err != nil {
		m.setError(err)
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		m.setError(err)
		return fmt.Errorf("MongoDB ping failed: %w", err)
	}

	now := time.Now()
	m.mu.Lock()
	m.client = client
	m.db = client.Database(m.dbName)
	m.connected = true
	m.lastError = ""
	m.connectedAt = &now
	m.mu.Unlock()

	log.Printf("MongoDB connected: database=%s", m.dbName)
	return nil
}

// IsConfigured returns true when a URI is set and the client connected
func (m *MongoDBClient) IsConfigured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected && m.db != nil
}

func (m *MongoDBClient) setError(err error) {
	m.mu.Lock()
	m.lastError = err.Error()
	m.connected = false
	m.mu.Unlock()
}

// GetConnectionStatus returns connection status info for diagnostics
func (m *MongoDBClient) GetConnectionStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := map[string]interface{}{
		"configured": m.uri != "",
		"connected":  m.connected,
		"database":   m.dbName,
	}
	if m.lastError != "" {
		status["last_error"] = m.lastError
	}
	if m.connectedAt != nil {
		status["connected_at"] = m.connectedAt
	}
	return status
}

// Close disconnects the client
func (m *MongoDBClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.client.Disconnect(ctx)
	m.client = nil
	m.db = nil
	m.connected = false
	return err
}

// indexListDocument is the stored shape of one constituent list
type indexListDocument struct {
	Kind        string    `bson:"kind"`
	Symbols     []string  `bson:"symbols"`
	LastUpdated time.Time `bson:"last_updated"`
	SavedAt     time.Time `bson:"saved_at"`
}

// SaveIndexLists upserts every index constituent list
func (m *MongoDBClient) SaveIndexLists(indices []universe.Index) error {
	if !m.IsConfigured() {
		return fmt.Errorf("MongoDB not connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coll := m.db.Collection(IndexListCollection)
	now := time.Now()
	for _, idx := range indices {
		doc := indexListDocument{
			Kind:        string(idx.Kind),
			Symbols:     idx.Symbols,
			LastUpdated: idx.LastUpdated,
			SavedAt:     now,
		}
		_, err := coll.ReplaceOne(ctx,
			bson.M{"kind": doc.Kind},
			doc,
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("failed to save index list %s: %w", doc.Kind, err)
		}
	}

	log.Printf("Saved %d index lists to MongoDB", len(indices))
	return nil
}

// LoadIndexLists loads all stored index constituent lists
func (m *MongoDBClient) LoadIndexLists() ([]universe.Index, error) {
	if !m.IsConfigured() {
		return nil, fmt.Errorf("MongoDB not connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cursor, err := m.db.Collection(IndexListCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to load index lists: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []indexListDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode index lists: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no index lists stored in MongoDB")
	}

	indices := make([]universe.Index, 0, len(docs))
	for _, doc := range docs {
		indices = append(indices, universe.Index{
			Kind:        universe.IndexKind(doc.Kind),
			Symbols:     doc.Symbols,
			LastUpdated: doc.LastUpdated,
		})
	}

	log.Printf("Loaded %d index lists from MongoDB", len(indices))
	return indices, nil
}

// SaveScanSummary appends one scan cycle summary document
func (m *MongoDBClient) SaveScanSummary(summary map[string]interface{}) error {
	if !m.IsConfigured() {
		return fmt.Errorf("MongoDB not connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summary["saved_at"] = time.Now()
	_, err := m.db.Collection(ScanSummaryCollection).InsertOne(ctx, summary)
	if err != nil {
		return fmt.Errorf("failed to save scan summary: %w", err)
	}
	return nil
}
