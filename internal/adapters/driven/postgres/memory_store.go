package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.MemoryStore = (*MemoryStore)(nil)

const memoryColumns = `id, owner_id, organization_id, agent_id, conversation_id, content, errors, lessons,
	metadata, feedback_score, retrieval_count, visibility, created_at, updated_at, archived_at, embedding`

// tsQuery parses user input the way a web search box does: terms are ANDed,
// quoted phrases and "or" are honoured, and syntax errors never occur
const tsQuery = "websearch_to_tsquery('english', %s)"

// Postgres error codes returned when pgvector is missing
const (
	codeUndefinedObject   = "42704"
	codeUndefinedFunction = "42883"
)

// MemoryStore implements driven.MemoryStore using PostgreSQL. Full-text rank
// comes from ts_rank_cd over a weighted tsvector; vector distance from
// pgvector's cosine operator.
type MemoryStore struct {
	db *DB

	vectorOnce      sync.Once
	vectorSupported bool
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// Dialect returns "postgres"
func (s *MemoryStore) Dialect() string {
	return "postgres"
}

// SupportsVectorSearch reports whether pgvector is installed. The probe runs
// once per process.
func (s *MemoryStore) SupportsVectorSearch(ctx context.Context) bool {
	s.vectorOnce.Do(func() {
		ok, err := s.db.HasExtension(ctx, "vector")
		s.vectorSupported = err == nil && ok
	})
	return s.vectorSupported
}

// SearchFulltext ranks matching memories with ts_rank_cd. Normalization
// flag 32 maps the rank into [0,1).
func (s *MemoryStore) SearchFulltext(ctx context.Context, query string, q domain.StoreQuery) ([]*domain.MemoryHit, error) {
	sqlText, args := buildFulltextQuery(query, q)
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("fulltext query: %w", err)
	}
	defer rows.Close()

	var hits []*domain.MemoryHit
	for rows.Next() {
		var rank float64
		var inContent, inLessons, inErrors bool
		m, err := scanMemory(rows, &rank, &inContent, &inLessons, &inErrors)
		if err != nil {
			return nil, err
		}
		hits = append(hits, &domain.MemoryHit{
			Memory:        m,
			Score:         rank,
			MatchedFields: matchedFields(inContent, inLessons, inErrors),
		})
	}
	return hits, rows.Err()
}

// SearchVector returns memories ordered by cosine distance to embedding.
// Rows embedded with a different dimension are skipped.
func (s *MemoryStore) SearchVector(ctx context.Context, embedding []float32, q domain.StoreQuery) ([]*domain.MemoryHit, error) {
	if !s.SupportsVectorSearch(ctx) {
		return nil, domain.ErrVectorUnsupported
	}

	sqlText, args := buildVectorQuery(embedding, q)
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && (pqErr.Code == codeUndefinedObject || pqErr.Code == codeUndefinedFunction) {
			return nil, fmt.Errorf("%w: %s", domain.ErrVectorUnsupported, pqErr.Message)
		}
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	var hits []*domain.MemoryHit
	for rows.Next() {
		var distance float64
		m, err := scanMemory(rows, &distance)
		if err != nil {
			return nil, err
		}
		hits = append(hits, &domain.MemoryHit{Memory: m, Score: distance})
	}
	return hits, rows.Err()
}

// SearchBasic matches the query as a case-insensitive substring of any
// searchable field, newest first
func (s *MemoryStore) SearchBasic(ctx context.Context, query string, q domain.StoreQuery) ([]*domain.MemoryHit, error) {
	sqlText, args := buildBasicQuery(query, q)
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("basic query: %w", err)
	}
	defer rows.Close()

	var hits []*domain.MemoryHit
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, &domain.MemoryHit{Memory: m})
	}
	return hits, rows.Err()
}

// Get retrieves a memory by ID
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE id = $1`

	m, err := scanMemory(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return m, err
}

// Save creates or updates a memory
func (s *MemoryStore) Save(ctx context.Context, m *domain.Memory) error {
	metadataJSON, err := marshalMetadata(m.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO memories (id, owner_id, organization_id, agent_id, conversation_id, content, errors, lessons,
			metadata, feedback_score, retrieval_count, visibility, created_at, updated_at, archived_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			agent_id = EXCLUDED.agent_id,
			conversation_id = EXCLUDED.conversation_id,
			content = EXCLUDED.content,
			errors = EXCLUDED.errors,
			lessons = EXCLUDED.lessons,
			metadata = EXCLUDED.metadata,
			feedback_score = EXCLUDED.feedback_score,
			visibility = EXCLUDED.visibility,
			updated_at = EXCLUDED.updated_at,
			archived_at = EXCLUDED.archived_at,
			embedding = EXCLUDED.embedding
	`

	_, err = s.db.ExecContext(ctx, query,
		m.ID,
		m.OwnerID,
		m.OrganizationID,
		m.AgentID,
		m.ConversationID,
		m.Content,
		m.Errors,
		m.Lessons,
		metadataJSON,
		m.FeedbackScore,
		m.RetrievalCount,
		string(m.Visibility),
		m.CreatedAt,
		m.UpdatedAt,
		NullTime(m.ArchivedAt),
		pq.Array(m.Embedding),
	)
	return err
}

// Archive marks a memory archived
func (s *MemoryStore) Archive(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memories SET archived_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// UpdateEmbedding replaces a memory's vector; nil clears it
func (s *MemoryStore) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memories SET embedding = $2 WHERE id = $1`, id, pq.Array(embedding))
	if err != nil {
		return err
	}
	return requireRow(result)
}

// AdjustFeedback adds delta to the feedback score in one statement
func (s *MemoryStore) AdjustFeedback(ctx context.Context, id string, delta int) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx,
		`UPDATE memories SET feedback_score = feedback_score + $2 WHERE id = $1 RETURNING feedback_score`,
		id, delta).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return score, nil
}

// ListMissingEmbeddings pages through unarchived memories without a vector
// in ID order, starting after afterID
func (s *MemoryStore) ListMissingEmbeddings(ctx context.Context, afterID string, limit int) ([]*domain.Memory, error) {
	query := `
		SELECT ` + memoryColumns + `
		FROM memories
		WHERE embedding IS NULL AND archived_at IS NULL AND id > $1
		ORDER BY id
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// IncrementRetrievalCount bumps the retrieval counter of each memory
func (s *MemoryStore) IncrementRetrievalCount(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET retrieval_count = retrieval_count + 1 WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

// HealthCheck verifies the database is reachable
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// queryBuilder collects positional arguments for one statement
type queryBuilder struct {
	args []any
}

func (b *queryBuilder) bind(arg any) string {
	b.args = append(b.args, arg)
	return fmt.Sprintf("$%d", len(b.args))
}

// filters renders the conditions shared by every search query
func (b *queryBuilder) filters(f domain.SearchFilters) []string {
	var clauses []string
	if !f.IncludeArchived {
		clauses = append(clauses, "archived_at IS NULL")
	}
	if f.AgentID != "" {
		clauses = append(clauses, "agent_id = "+b.bind(f.AgentID))
	}
	if f.ConversationID != "" {
		clauses = append(clauses, "conversation_id = "+b.bind(f.ConversationID))
	}
	if f.Visibility != nil {
		clauses = append(clauses, f.Visibility.Where(b.bind))
	}
	return clauses
}

func buildFulltextQuery(query string, q domain.StoreQuery) (string, []any) {
	b := &queryBuilder{}
	tsq := fmt.Sprintf(tsQuery, b.bind(query))
	where := append([]string{"search_vector @@ " + tsq}, b.filters(q.Filters)...)

	sqlText := `SELECT ` + memoryColumns + `,
		ts_rank_cd(search_vector, ` + tsq + `, 32) AS rank,
		to_tsvector('english', content) @@ ` + tsq + ` AS in_content,
		to_tsvector('english', lessons) @@ ` + tsq + ` AS in_lessons,
		to_tsvector('english', errors) @@ ` + tsq + ` AS in_errors
	FROM memories
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY rank DESC, created_at DESC, id
	LIMIT ` + b.bind(q.Limit)
	return sqlText, b.args
}

func buildVectorQuery(embedding []float32, q domain.StoreQuery) (string, []any) {
	b := &queryBuilder{}
	vec := b.bind(pq.Array(embedding)) + "::real[]::vector"
	where := append([]string{
		"embedding IS NOT NULL",
		"cardinality(embedding) = " + b.bind(len(embedding)),
	}, b.filters(q.Filters)...)

	sqlText := `SELECT ` + memoryColumns + `,
		embedding::vector <=> ` + vec + ` AS distance
	FROM memories
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY distance, id
	LIMIT ` + b.bind(q.Limit)
	return sqlText, b.args
}

func buildBasicQuery(query string, q domain.StoreQuery) (string, []any) {
	b := &queryBuilder{}
	pattern := b.bind("%" + escapeLike(strings.TrimSpace(query)) + "%")
	match := fmt.Sprintf("(content ILIKE %[1]s ESCAPE '\\' OR lessons ILIKE %[1]s ESCAPE '\\' OR errors ILIKE %[1]s ESCAPE '\\')", pattern)
	where := append([]string{match}, b.filters(q.Filters)...)

	sqlText := `SELECT ` + memoryColumns + `
	FROM memories
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY created_at DESC, id
	LIMIT ` + b.bind(q.Limit)
	return sqlText, b.args
}

// escapeLike escapes LIKE wildcards so user input matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func matchedFields(content, lessons, errs bool) []string {
	var fields []string
	if content {
		fields = append(fields, domain.FieldContent)
	}
	if lessons {
		fields = append(fields, domain.FieldLessons)
	}
	if errs {
		fields = append(fields, domain.FieldErrors)
	}
	return fields
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanMemory scans memoryColumns followed by any extra columns
func scanMemory(row rowScanner, extra ...any) (*domain.Memory, error) {
	var m domain.Memory
	var metadataJSON []byte
	var visibility string
	var archivedAt sql.NullTime
	var embedding pq.Float32Array

	dest := append([]any{
		&m.ID,
		&m.OwnerID,
		&m.OrganizationID,
		&m.AgentID,
		&m.ConversationID,
		&m.Content,
		&m.Errors,
		&m.Lessons,
		&metadataJSON,
		&m.FeedbackScore,
		&m.RetrievalCount,
		&visibility,
		&m.CreatedAt,
		&m.UpdatedAt,
		&archivedAt,
		&embedding,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	m.Visibility = domain.Visibility(visibility)
	m.ArchivedAt = TimePtr(archivedAt)
	if len(embedding) > 0 {
		m.Embedding = []float32(embedding)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", m.ID, err)
		}
		if len(m.Metadata) == 0 {
			m.Metadata = nil
		}
	}
	return &m, nil
}

func marshalMetadata(md map[string]any) ([]byte, error) {
	if md == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(md)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
