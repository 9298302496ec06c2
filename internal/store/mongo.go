package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kmch/dictation-gateway/internal/config"
	"github.com/kmch/dictation-gateway/internal/resilience"
)

const recordsCollection = "records"

// MongoStore implements Store backed by MongoDB (local or Atlas)
type MongoStore struct {
	client      *mongo.Client
	records     *mongo.Collection
	retryConfig *resilience.RetryConfig
	logger      zerolog.Logger
}

// NewMongoStore connects to MongoDB using the configured URI. Atlas URIs
// (mongodb+srv://) must not use direct connection; local deployments do.
func NewMongoStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerSelectionTimeout(cfg.MongoTimeout())

	if !strings.HasPrefix(cfg.MongoURI, "mongodb+srv://") {
		opts.SetDirect(true)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	retryConfig := &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}

	return &MongoStore{
		client:      client,
		records:     client.Database(cfg.MongoDatabase).Collection(recordsCollection),
		retryConfig: retryConfig,
		logger:      logger,
	}, nil
}

// SaveRecord inserts one final result document. Transient network errors
// are retried with backoff; persistent failure is returned to the caller
// so the computed result is not silently lost.
func (s *MongoStore) SaveRecord(ctx context.Context, rec *Record) (string, error) {
	var insertedID string

	err := resilience.Retry(func() error {
		res, err := s.records.InsertOne(ctx, rec)
		if err != nil {
			return err
		}
		if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
			insertedID = oid.Hex()
		} else {
			insertedID = fmt.Sprintf("%v", res.InsertedID)
		}
		return nil
	}, s.retryConfig, resilience.IsRetryableNetworkError)

	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.Debug().
		Str("patient_id", rec.PatientID).
		Str("record_id", insertedID).
		Msg("Record saved")
	return insertedID, nil
}

// PatientRecords returns a patient's records sorted newest first
func (s *MongoStore) PatientRecords(ctx context.Context, patientID string) ([]Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetProjection(bson.D{{Key: "_id", Value: 0}})

	cursor, err := s.records.Find(ctx, bson.D{{Key: "patient_id", Value: patientID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	return records, nil
}

// PatientIDs returns the distinct patient identifiers in the collection
func (s *MongoStore) PatientIDs(ctx context.Context) ([]string, error) {
	values, err := s.records.Distinct(ctx, "patient_id", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Stats returns patient and record counts
func (s *MongoStore) Stats(ctx context.Context) (PatientStats, error) {
	ids, err := s.PatientIDs(ctx)
	if err != nil {
		return PatientStats{}, err
	}

	total, err := s.records.CountDocuments(ctx, bson.D{})
	if err != nil {
		return PatientStats{}, fmt.Errorf("failed to count records: %w", err)
	}

	return PatientStats{
		TotalPatients: len(ids),
		TotalRecords:  total,
	}, nil
}

// Ping verifies connectivity to the deployment
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the underlying client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
