package repository

import (
	"context"
	"time"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/internal/domain/repository"
	"tkgm-sync-service/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoArchiveRepository implements the ArchiveRepository interface. Raw XML
// pages are large and write-once, which fits a document store better than a
// text column next to the audit log.
type MongoArchiveRepository struct {
	collection *mongo.Collection
	logger     logger.Logger
}

// NewMongoArchiveRepository creates a new MongoDB response archive repository
func NewMongoArchiveRepository(client *mongo.Client, dbName string, logger logger.Logger) repository.ArchiveRepository {
	return &MongoArchiveRepository{
		collection: client.Database(dbName).Collection("wfs_responses"),
		logger:     logger,
	}
}

// StoreResponse archives one raw response page with its fetch metadata.
func (r *MongoArchiveRepository) StoreResponse(ctx context.Context, typeName string, body []byte, meta entity.FetchMeta) error {
	doc := bson.M{
		"type_name":     typeName,
		"url":           meta.URL,
		"http_status":   meta.HTTPStatus,
		"response_size": meta.ResponseSize,
		"duration_ms":   meta.Duration.Milliseconds(),
		"feature_count": meta.FeatureCount,
		"body":          string(body),
		"fetched_at":    time.Now(),
	}
	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		r.logger.Warn("Failed to archive response", "typeName", typeName, "error", err)
	}
	return err
}

// NoopArchiveRepository is used when no MongoDB connection is configured.
type NoopArchiveRepository struct{}

// NewNoopArchiveRepository creates an archive repository that discards responses
func NewNoopArchiveRepository() repository.ArchiveRepository {
	return &NoopArchiveRepository{}
}

// StoreResponse discards the response body.
func (r *NoopArchiveRepository) StoreResponse(ctx context.Context, typeName string, body []byte, meta entity.FetchMeta) error {
	return nil
}
