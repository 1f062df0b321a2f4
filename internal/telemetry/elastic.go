package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"loan-assistant/internal/models"
)

// TurnEventMapping is the index body used when the turn-event index is
// created on startup.
const TurnEventMapping = `{
  "mappings": {
    "properties": {
      "id":                    {"type": "keyword"},
      "session_id":            {"type": "keyword"},
      "turn_index":            {"type": "integer"},
      "intent_guess":          {"type": "keyword"},
      "entities_extracted":    {"type": "integer"},
      "completeness_fraction": {"type": "float"},
      "error_flag":            {"type": "boolean"},
      "decision_status":       {"type": "keyword"},
      "latency_ms":            {"type": "long"},
      "timestamp":             {"type": "date"}
    }
  }
}`

// ElasticRecorder indexes events for ad-hoc search, one document per event
// keyed by the event id.
type ElasticRecorder struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticRecorder(client *elasticsearch.Client, index string) *ElasticRecorder {
	if index == "" {
		index = "loan-turn-events"
	}
	return &ElasticRecorder{client: client, index: index}
}

func (r *ElasticRecorder) Record(ctx context.Context, e models.TurnEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      r.index,
		DocumentID: e.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("index turn event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index turn event: %s", res.Status())
	}
	return nil
}
