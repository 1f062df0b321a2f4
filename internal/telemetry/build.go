package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/database"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/common/observability"
)

// Sinks is the assembled set of recorders. JSONL and Postgres are kept
// separately so callers can run daily aggregations against them.
type Sinks struct {
	*MultiRecorder
	JSONL    *JSONLRecorder
	Postgres *PostgresRecorder
	closers  []func() error
}

func (s *Sinks) Close() {
	for _, c := range s.closers {
		_ = c()
	}
}

// FromConfig builds every sink listed in cfg.Metrics.Sinks. obs may be nil.
func FromConfig(ctx context.Context, cfg *config.Config, fs afero.Fs, obs *observability.Observability, log logger.Logger) (*Sinks, error) {
	s := &Sinks{MultiRecorder: NewMulti(log)}

	for _, name := range cfg.Metrics.Sinks {
		switch name {
		case "jsonl":
			r, err := NewJSONLRecorder(fs, cfg.Metrics.Dir)
			if err != nil {
				s.Close()
				return nil, err
			}
			s.JSONL = r
			s.Add(name, r)

		case "postgres":
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				s.Close()
				return nil, err
			}
			s.closers = append(s.closers, pg.Close)
			if err := pg.Ping(ctx); err != nil {
				s.Close()
				return nil, err
			}
			if err := pg.RegisterStats(prometheus.DefaultRegisterer); err != nil {
				log.Warn("postgres pool stats not exported", map[string]interface{}{"error": err.Error()})
			}
			r := NewPostgresRecorder(pg.DB)
			if err := r.EnsureSchema(ctx); err != nil {
				s.Close()
				return nil, err
			}
			s.Postgres = r
			s.Add(name, r)

		case "elasticsearch":
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				s.Close()
				return nil, err
			}
			r := NewElasticRecorder(es.Client, cfg.Database.Elasticsearch.Index)
			created, err := es.EnsureIndex(ctx, r.index, TurnEventMapping)
			if err != nil {
				s.Close()
				return nil, err
			}
			if created {
				log.Info("created turn event index", map[string]interface{}{"index": r.index})
			}
			s.Add(name, r)

		case "prometheus":
			s.Add(name, NewPrometheusRecorder(obs))

		default:
			s.Close()
			return nil, fmt.Errorf("unknown metrics sink %q", name)
		}
	}
	return s, nil
}
