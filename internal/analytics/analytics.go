// Package analytics records search queries and aggregates usage
// statistics per instance.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aischolar/scholar/internal/instance"
)

// MaxQueryLength bounds stored query text; longer queries are truncated,
// not rejected, so logging never fails a search.
const MaxQueryLength = 1024

// Entry is one recorded search.
type Entry struct {
	InstanceName string
	UserID       string
	Query        string
	Latency      time.Duration
	ResultCount  int
}

// DayUsage aggregates one day of queries for an instance.
type DayUsage struct {
	Day          time.Time `json:"day"`
	Queries      int       `json:"queries"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	AvgResults   float64   `json:"avg_results"`
}

// TopQuery is one popular query with its popularity score.
type TopQuery struct {
	Query        string    `json:"query"`
	Count        int       `json:"count"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	LastSeen     time.Time `json:"last_seen"`
	Score        float64   `json:"score"`
}

// Service writes and reads the query log.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// New creates an analytics service.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Service, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: logger.With("component", "analytics"),
		now:    time.Now,
	}, nil
}

// Record logs one search. Errors are returned for the caller to log;
// recording failures must never fail the search itself.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if err := instance.ValidateName(e.InstanceName); err != nil {
		return err
	}
	query := strings.TrimSpace(e.Query)
	if query == "" {
		return fmt.Errorf("query is required")
	}
	query = truncate(query, MaxQueryLength)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO query_log (instance_name, user_id, query, latency_ms, result_count)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.InstanceName, e.UserID, query, e.Latency.Milliseconds(), e.ResultCount)
	if err != nil {
		return fmt.Errorf("recording query: %w", err)
	}
	return nil
}

// truncate caps s at max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// Usage returns per-day aggregates for the trailing window, oldest day
// first. Days without queries are absent.
func (s *Service) Usage(ctx context.Context, instanceName string, days int) ([]DayUsage, error) {
	if err := instance.ValidateName(instanceName); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}
	since := s.now().AddDate(0, 0, -days)

	rows, err := s.pool.Query(ctx,
		`SELECT date_trunc('day', created_at) AS day,
		        COUNT(*),
		        AVG(latency_ms),
		        AVG(result_count)
		 FROM query_log
		 WHERE instance_name = $1 AND created_at >= $2
		 GROUP BY day
		 ORDER BY day`, instanceName, since)
	if err != nil {
		return nil, fmt.Errorf("aggregating usage: %w", err)
	}
	defer rows.Close()

	var usage []DayUsage
	for rows.Next() {
		var u DayUsage
		if err := rows.Scan(&u.Day, &u.Queries, &u.AvgLatencyMs, &u.AvgResults); err != nil {
			return nil, fmt.Errorf("scanning usage row: %w", err)
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

// TopQueries returns the most popular queries in the trailing window,
// scored by frequency with a recency tilt. Queries are grouped
// case-insensitively.
func (s *Service) TopQueries(ctx context.Context, instanceName string, limit, days int) ([]TopQuery, error) {
	if err := instance.ValidateName(instanceName); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if days <= 0 {
		days = 30
	}
	now := s.now()
	since := now.AddDate(0, 0, -days)

	rows, err := s.pool.Query(ctx,
		`SELECT MIN(query), COUNT(*), AVG(latency_ms), MAX(created_at)
		 FROM query_log
		 WHERE instance_name = $1 AND created_at >= $2
		 GROUP BY lower(query)
		 ORDER BY COUNT(*) DESC, MAX(created_at) DESC
		 LIMIT $3`, instanceName, since, limit)
	if err != nil {
		return nil, fmt.Errorf("aggregating top queries: %w", err)
	}
	defer rows.Close()

	var top []TopQuery
	for rows.Next() {
		var q TopQuery
		if err := rows.Scan(&q.Query, &q.Count, &q.AvgLatencyMs, &q.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning top query: %w", err)
		}
		top = append(top, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	scoreQueries(top, now, days)
	return top, nil
}

// scoreQueries assigns each query a popularity score in [0, 1]:
// frequency relative to the most frequent query, decayed linearly by
// how long ago it was last seen within the window.
func scoreQueries(queries []TopQuery, now time.Time, windowDays int) {
	var maxCount int
	for _, q := range queries {
		if q.Count > maxCount {
			maxCount = q.Count
		}
	}
	if maxCount == 0 {
		return
	}
	window := time.Duration(windowDays) * 24 * time.Hour

	for i := range queries {
		freq := float64(queries[i].Count) / float64(maxCount)

		age := now.Sub(queries[i].LastSeen)
		if age < 0 {
			age = 0
		}
		recency := 1 - age.Seconds()/window.Seconds()
		if recency < 0 {
			recency = 0
		}

		score := freq * (0.5 + 0.5*recency)
		if score > 1 {
			score = 1
		}
		queries[i].Score = score
	}
}

// Purge removes log entries older than the retention window.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive")
	}
	cutoff := s.now().Add(-retention)

	tag, err := s.pool.Exec(ctx, `DELETE FROM query_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging query log: %w", err)
	}
	removed := tag.RowsAffected()
	if removed > 0 {
		s.logger.Info("query log purged", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
