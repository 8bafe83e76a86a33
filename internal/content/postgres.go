// Package content looks up study documents and the text excerpts used to ground
// question generation and answer scoring.
package content

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/victornm/docquiz/internal/errors"
)

const (
	defaultMaxChunks      = 10
	defaultMinChunkLength = 50
	defaultChunkLimit     = 200
)

// DefaultSearchTerms rank the chunks that best describe a document's subject.
var DefaultSearchTerms = []string{"definition", "concept", "principle", "method", "example"}

//go:embed schema.sql
var schema string

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Config struct {
	DB          DB
	SearchTerms []string
	// MaxChunks bounds the number of chunks joined into an excerpt.
	MaxChunks int
	// MinChunkLength drops chunks too short to carry content, such as headings.
	MinChunkLength int
	// ChunkLimit clips every chunk to this many characters.
	ChunkLimit int
}

type Store struct {
	db         DB
	query      string
	maxChunks  int
	minLength  int
	chunkLimit int
}

func NewStore(c Config) *Store {
	terms := c.SearchTerms
	if len(terms) == 0 {
		terms = DefaultSearchTerms
	}

	return &Store{
		db:         c.DB,
		query:      strings.Join(terms, " or "),
		maxChunks:  positive(c.MaxChunks, defaultMaxChunks),
		minLength:  positive(c.MinChunkLength, defaultMinChunkLength),
		chunkLimit: positive(c.ChunkLimit, defaultChunkLimit),
	}
}

// Migrate creates the document tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate content schema: %w", err)
	}
	return nil
}

// Exists reports whether documentRef names a stored document.
func (s *Store) Exists(ctx context.Context, documentRef string) (bool, error) {
	const stmt = `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1);`

	var ok bool
	if err := s.db.QueryRow(ctx, stmt, documentRef).Scan(&ok); err != nil {
		return false, fmt.Errorf("check document %s: %w", documentRef, err)
	}
	return ok, nil
}

// Excerpt returns the best matching chunks of the document, clipped and joined by
// newlines. A document without matching chunks yields an empty excerpt.
func (s *Store) Excerpt(ctx context.Context, documentRef string) (string, error) {
	const stmt = `
SELECT content
FROM document_chunks
WHERE document_id = $1 AND char_length(content) > $2
ORDER BY ts_rank(to_tsvector('simple', content), websearch_to_tsquery('simple', $3)) DESC, chunk_index
LIMIT $4;`

	rows, err := s.db.Query(ctx, stmt, documentRef, s.minLength, s.query, s.maxChunks)
	if err != nil {
		return "", errors.Upstream(fmt.Errorf("query chunks of %s: %w", documentRef, err))
	}

	chunks, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (string, error) {
		var content string
		err := r.Scan(&content)
		return clip(strings.TrimSpace(content), s.chunkLimit), err
	})
	if err != nil {
		return "", errors.Upstream(fmt.Errorf("scan chunks of %s: %w", documentRef, err))
	}

	return strings.Join(chunks, "\n"), nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func positive(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
