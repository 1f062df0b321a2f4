package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"loan-assistant/internal/models"
)

const (
	EventsFile     = "metrics.jsonl"
	DailyStatsFile = "daily_stats.json"
)

// JSONLRecorder appends events to dir/metrics.jsonl and keeps the daily
// rollups in dir/daily_stats.json.
type JSONLRecorder struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

func NewJSONLRecorder(fs afero.Fs, dir string) (*JSONLRecorder, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create metrics dir: %w", err)
	}
	return &JSONLRecorder{fs: fs, dir: dir}, nil
}

func (r *JSONLRecorder) path(name string) string { return filepath.Join(r.dir, name) }

func (r *JSONLRecorder) Record(_ context.Context, e models.TurnEvent) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.fs.OpenFile(r.path(EventsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(line, '\n'))
	return err
}

// Events reads every event in the log. Lines that do not decode are skipped
// and counted.
func (r *JSONLRecorder) Events() ([]models.TurnEvent, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.fs.Open(r.path(EventsFile))
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var events []models.TurnEvent
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e models.TurnEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			skipped++
			continue
		}
		events = append(events, e)
	}
	return events, skipped, sc.Err()
}

// Summary aggregates the log for day without writing anything.
func (r *JSONLRecorder) Summary(day time.Time) (models.DailySummary, error) {
	events, _, err := r.Events()
	if err != nil {
		return models.DailySummary{}, err
	}
	return Aggregate(events, day), nil
}

// RollupDaily aggregates day and upserts it into daily_stats.json, which is
// kept sorted by date.
func (r *JSONLRecorder) RollupDaily(day time.Time) (models.DailySummary, error) {
	summary, err := r.Summary(day)
	if err != nil {
		return summary, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.readDaily()
	if err != nil {
		return summary, err
	}
	replaced := false
	for i := range all {
		if all[i].Date == summary.Date {
			all[i] = summary
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, summary)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date < all[j].Date })

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return summary, err
	}
	return summary, afero.WriteFile(r.fs, r.path(DailyStatsFile), data, 0o644)
}

// History returns up to the last days rollups, oldest first.
func (r *JSONLRecorder) History(days int) ([]models.DailySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.readDaily()
	if err != nil {
		return nil, err
	}
	if days > 0 && len(all) > days {
		all = all[len(all)-days:]
	}
	return all, nil
}

func (r *JSONLRecorder) readDaily() ([]models.DailySummary, error) {
	data, err := afero.ReadFile(r.fs, r.path(DailyStatsFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var all []models.DailySummary
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode %s: %w", DailyStatsFile, err)
	}
	return all, nil
}
