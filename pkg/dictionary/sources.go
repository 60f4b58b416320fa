package dictionary

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Source yields a vocabulary from somewhere other than the ingestion API.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*Vocabulary, error)
}

// FileSource reads a dictionary file through Open.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Fetch(ctx context.Context) (*Vocabulary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Open(s.Path)
}

// DefaultPostgresQuery selects the vocabulary from a terms table.
const DefaultPostgresQuery = "SELECT term, score FROM terms"

// PostgresSource runs a query whose first two columns are term text and score.
type PostgresSource struct {
	DB    *sql.DB
	Query string
}

// OpenPostgres opens a lib/pq connection and verifies it with a ping.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}

func (s PostgresSource) Name() string { return "postgres" }

func (s PostgresSource) Fetch(ctx context.Context) (*Vocabulary, error) {
	query := s.Query
	if query == "" {
		query = DefaultPostgresQuery
	}
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying vocabulary: %w", err)
	}
	defer rows.Close()

	vocab := &Vocabulary{}
	row := 0
	for rows.Next() {
		row++
		var term string
		var score float64
		if err := rows.Scan(&term, &score); err != nil {
			vocab.Skipped = append(vocab.Skipped, LineError{Line: row, Err: fmt.Errorf("scanning row: %w", err)})
			continue
		}
		vocab.Entries = append(vocab.Entries, suggest.Entry{Term: term, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vocabulary rows: %w", err)
	}
	log.Debugf("Fetched %d terms from postgres", len(vocab.Entries))
	return vocab, nil
}

// RedisSource reads a sorted set whose members are terms and whose scores are term scores.
type RedisSource struct {
	Client redis.UniversalClient
	Key    string
}

// OpenRedis creates a go-redis client and checks it with a PING.
func OpenRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func (s RedisSource) Name() string { return "redis:" + s.Key }

func (s RedisSource) Fetch(ctx context.Context) (*Vocabulary, error) {
	members, err := s.Client.ZRangeWithScores(ctx, s.Key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading sorted set %s: %w", s.Key, err)
	}

	vocab := &Vocabulary{Entries: make([]suggest.Entry, 0, len(members))}
	for i, z := range members {
		term, ok := z.Member.(string)
		if !ok {
			vocab.Skipped = append(vocab.Skipped, LineError{Line: i + 1, Err: fmt.Errorf("member is %T, not a string", z.Member)})
			continue
		}
		vocab.Entries = append(vocab.Entries, suggest.Entry{Term: term, Score: z.Score})
	}
	log.Debugf("Fetched %d terms from redis key %s", len(vocab.Entries), s.Key)
	return vocab, nil
}

// LoadSources fetches each source in order and loads its entries into sink.
// A failing source is logged and skipped; the joined reports are returned.
func LoadSources(ctx context.Context, sink Sink, sources ...Source) []*suggest.LoadReport {
	reports := make([]*suggest.LoadReport, 0, len(sources))
	for _, src := range sources {
		vocab, err := src.Fetch(ctx)
		if err != nil {
			log.Errorf("Failed to fetch vocabulary from %s: %v", src.Name(), err)
			continue
		}
		for _, skipped := range vocab.Skipped {
			log.Warnf("%s: skipped %v", src.Name(), skipped)
		}
		report := sink.Load(vocab.Entries)
		log.Infof("Loaded %d/%d terms from %s", report.Applied, report.Total, src.Name())
		reports = append(reports, report)
	}
	return reports
}
