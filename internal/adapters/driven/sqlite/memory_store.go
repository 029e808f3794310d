package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.MemoryStore = (*MemoryStore)(nil)

const memoryColumns = `m.id, m.owner_id, m.organization_id, m.agent_id, m.conversation_id, m.content, m.errors,
	m.lessons, m.metadata, m.feedback_score, m.retrieval_count, m.visibility, m.created_at, m.updated_at,
	m.archived_at, m.embedding`

// bm25Weights ranks content above lessons above errors
const bm25Weights = "10.0, 5.0, 1.0"

// MemoryStore implements driven.MemoryStore on SQLite. Full-text rank comes
// from FTS5 bm25; SQLite has no vector operators, so semantic search always
// degrades to basic search on this dialect.
type MemoryStore struct {
	db *DB
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// Dialect returns "sqlite"
func (s *MemoryStore) Dialect() string {
	return "sqlite"
}

// SupportsVectorSearch always returns false
func (s *MemoryStore) SupportsVectorSearch(ctx context.Context) bool {
	return false
}

// SearchFulltext ranks memories with bm25. The raw bm25 value is negative,
// lower is better; it is mapped to s/(s+1) so scores land in [0,1).
func (s *MemoryStore) SearchFulltext(ctx context.Context, query string, q domain.StoreQuery) ([]*domain.MemoryHit, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	sqlText, args := buildFulltextQuery(matchExpression(tokens), q)
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("fulltext query: %w", err)
	}
	defer rows.Close()

	var hits []*domain.MemoryHit
	for rows.Next() {
		var rank float64
		m, err := scanMemory(rows, &rank)
		if err != nil {
			return nil, err
		}
		score := -rank
		if score < 0 {
			score = 0
		}
		hits = append(hits, &domain.MemoryHit{
			Memory:        m,
			Score:         score / (score + 1),
			MatchedFields: m.MatchedFields(tokens),
		})
	}
	return hits, rows.Err()
}

// SearchVector is not supported on SQLite
func (s *MemoryStore) SearchVector(ctx context.Context, embedding []float32, q domain.StoreQuery) ([]*domain.MemoryHit, error) {
	return nil, domain.ErrVectorUnsupported
}

// SearchBasic matches the query as a substring of any searchable field,
// newest first. LIKE is case-insensitive for ASCII.
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
	query := `SELECT ` + memoryColumns + ` FROM memories m WHERE m.id = ?1`

	m, err := scanMemory(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return m, err
}

// Save creates or updates a memory
func (s *MemoryStore) Save(ctx context.Context, m *domain.Memory) error {
	metadataJSON := []byte("{}")
	if m.Metadata != nil {
		var err error
		if metadataJSON, err = json.Marshal(m.Metadata); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO memories (id, owner_id, organization_id, agent_id, conversation_id, content, errors, lessons,
			metadata, feedback_score, retrieval_count, visibility, created_at, updated_at, archived_at, embedding)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12, ?13, ?14, ?15, ?16)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = excluded.organization_id,
			agent_id = excluded.agent_id,
			conversation_id = excluded.conversation_id,
			content = excluded.content,
			errors = excluded.errors,
			lessons = excluded.lessons,
			metadata = excluded.metadata,
			feedback_score = excluded.feedback_score,
			visibility = excluded.visibility,
			updated_at = excluded.updated_at,
			archived_at = excluded.archived_at,
			embedding = excluded.embedding
	`

	_, err := s.db.ExecContext(ctx, query,
		m.ID,
		m.OwnerID,
		m.OrganizationID,
		m.AgentID,
		m.ConversationID,
		m.Content,
		m.Errors,
		m.Lessons,
		string(metadataJSON),
		m.FeedbackScore,
		m.RetrievalCount,
		string(m.Visibility),
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
		nullTime(m.ArchivedAt),
		encodeVector(m.Embedding),
	)
	return err
}

// Archive marks a memory archived
func (s *MemoryStore) Archive(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memories SET archived_at = ?2, updated_at = ?2 WHERE id = ?1`, id, at.UTC())
	if err != nil {
		return err
	}
	return requireRow(result)
}

// UpdateEmbedding replaces a memory's vector; nil clears it
func (s *MemoryStore) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memories SET embedding = ?2 WHERE id = ?1`, id, encodeVector(embedding))
	if err != nil {
		return err
	}
	return requireRow(result)
}

// AdjustFeedback adds delta to the feedback score in one statement
func (s *MemoryStore) AdjustFeedback(ctx context.Context, id string, delta int) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx,
		`UPDATE memories SET feedback_score = feedback_score + ?2 WHERE id = ?1 RETURNING feedback_score`,
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
		FROM memories m
		WHERE m.embedding IS NULL AND m.archived_at IS NULL AND m.id > ?1
		ORDER BY m.id
		LIMIT ?2
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
	b := &queryBuilder{}
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		placeholders[i] = b.bind(id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET retrieval_count = retrieval_count + 1 WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		b.args...)
	return err
}

// HealthCheck verifies the database is reachable
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// queryBuilder collects numbered arguments for one statement. Numbered
// placeholders keep arguments aligned however a predicate orders its binds.
type queryBuilder struct {
	args []any
}

func (b *queryBuilder) bind(arg any) string {
	b.args = append(b.args, arg)
	return fmt.Sprintf("?%d", len(b.args))
}

// filters renders the conditions shared by every search query
func (b *queryBuilder) filters(f domain.SearchFilters) []string {
	var clauses []string
	if !f.IncludeArchived {
		clauses = append(clauses, "m.archived_at IS NULL")
	}
	if f.AgentID != "" {
		clauses = append(clauses, "m.agent_id = "+b.bind(f.AgentID))
	}
	if f.ConversationID != "" {
		clauses = append(clauses, "m.conversation_id = "+b.bind(f.ConversationID))
	}
	if f.Visibility != nil {
		clauses = append(clauses, f.Visibility.Where(b.bind))
	}
	return clauses
}

func buildFulltextQuery(match string, q domain.StoreQuery) (string, []any) {
	b := &queryBuilder{}
	where := append([]string{"memories_fts MATCH " + b.bind(match)}, b.filters(q.Filters)...)

	sqlText := `SELECT ` + memoryColumns + `, bm25(memories_fts, ` + bm25Weights + `) AS bm25_rank
	FROM memories_fts
	JOIN memories m ON m.rowid = memories_fts.rowid
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY bm25_rank, m.created_at DESC, m.id
	LIMIT ` + b.bind(q.Limit)
	return sqlText, b.args
}

func buildBasicQuery(query string, q domain.StoreQuery) (string, []any) {
	b := &queryBuilder{}
	needle := b.bind(foldCase(strings.TrimSpace(query)))
	match := fmt.Sprintf("(instr(%[2]s(m.content), %[1]s) > 0 OR instr(%[2]s(m.lessons), %[1]s) > 0 OR instr(%[2]s(m.errors), %[1]s) > 0)", needle, foldFunc)
	where := append([]string{match}, b.filters(q.Filters)...)

	sqlText := `SELECT ` + memoryColumns + `
	FROM memories m
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY m.created_at DESC, m.id
	LIMIT ` + b.bind(q.Limit)
	return sqlText, b.args
}

// tokenize splits a query into words, dropping FTS5 operators and
// punctuation
func tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// matchExpression quotes each token so user input is never parsed as FTS5
// syntax. Adjacent strings are ANDed.
func matchExpression(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// encodeVector packs a vector as little-endian float32s; nil stays NULL
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanMemory scans memoryColumns followed by any extra columns
func scanMemory(row rowScanner, extra ...any) (*domain.Memory, error) {
	var m domain.Memory
	var metadataJSON, visibility string
	var archivedAt sql.NullTime
	var embedding []byte

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
	if archivedAt.Valid {
		t := archivedAt.Time
		m.ArchivedAt = &t
	}
	m.Embedding = decodeVector(embedding)
	if metadataJSON != "" && metadataJSON != "{}" {
		if err := json.Unmarshal([]byte(metadataJSON), &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
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
