// Package index provides the optional Elasticsearch sink that makes completed
// result sets searchable across campaigns.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/creatorpulse/discovery/internal/domain"
	"github.com/creatorpulse/discovery/internal/logger"
)

// CreatorIndexer indexes discovered creators into one shared index. The
// worker calls it after a job completes; indexing failures are logged, never
// fatal, since the durable result set remains the source of truth.
type CreatorIndexer struct {
	client *es.Client
	index  string
	log    logger.Logger
}

// NewCreatorIndexer creates a CreatorIndexer writing to the given index.
func NewCreatorIndexer(client *es.Client, index string, log logger.Logger) *CreatorIndexer {
	return &CreatorIndexer{client: client, index: index, log: log}
}

// creatorDocument is the indexed shape: the canonical record plus the owning
// job for per-campaign filtering.
type creatorDocument struct {
	domain.CreatorRecord
	JobID     string    `json:"job_id"`
	IndexedAt time.Time `json:"indexed_at"`
}

// IndexResultSet indexes every record of a completed job. Document ids are
// deterministic (platform, creator id, job id) so re-indexing after a
// duplicate delivery overwrites instead of duplicating.
func (ci *CreatorIndexer) IndexResultSet(ctx context.Context, jobID string, records []domain.CreatorRecord) error {
	for i := range records {
		if err := ci.indexRecord(ctx, jobID, &records[i]); err != nil {
			return err
		}
	}
	ci.log.Info("result set indexed",
		logger.String("job_id", jobID),
		logger.String("index", ci.index),
		logger.Int("records", len(records)))
	return nil
}

func (ci *CreatorIndexer) indexRecord(ctx context.Context, jobID string, rec *domain.CreatorRecord) error {
	doc := creatorDocument{
		CreatorRecord: *rec,
		JobID:         jobID,
		IndexedAt:     time.Now().UTC(),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal creator document: %w", err)
	}

	docID := fmt.Sprintf("%s:%s:%s", rec.Platform, rec.CreatorID, jobID)
	res, err := ci.client.Index(
		ci.index,
		bytes.NewReader(body),
		ci.client.Index.WithContext(ctx),
		ci.client.Index.WithDocumentID(docID),
	)
	if err != nil {
		return fmt.Errorf("index creator: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creator: %s", res.String())
	}
	return nil
}

// NewClient builds an Elasticsearch client.
func NewClient(url, username, password string) (*es.Client, error) {
	client, err := es.NewClient(es.Config{
		Addresses: []string{url},
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}
