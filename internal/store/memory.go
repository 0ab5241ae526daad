package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation for tests and
// single-binary development. It deliberately does not implement
// SimilaritySearcher so the client-side cosine fallback path is exercised.
type MemoryStore struct {
	mu sync.RWMutex

	documents          map[string]DocumentRow
	embeddings         map[string]EmbeddingRow
	tableExtractions   []TableExtractionRow
	lineItems          []LineItemRow
	consensusResults   []ConsensusResultRow
	trainingSamples    []TrainingSampleRow
	fieldProvenance    []FieldProvenanceRow
	lineItemProvenance []LineItemProvenanceRow
	consensusMetadata  []ConsensusMetadataRow
	queryLogs          []QueryLogRow
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents:  make(map[string]DocumentRow),
		embeddings: make(map[string]EmbeddingRow),
	}
}

func key(tenantID, documentID string) string {
	return tenantID + "/" + documentID
}

func (s *MemoryStore) GetDocument(_ context.Context, tenantID, documentID string) (*DocumentRow, error) {
	if tenantID == "" || documentID == "" {
		return nil, ErrInvalidKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.documents[key(tenantID, documentID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (s *MemoryStore) SaveDocument(_ context.Context, row *DocumentRow) error {
	if row.TenantID == "" || row.DocumentID == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	s.documents[key(row.TenantID, row.DocumentID)] = *row
	return nil
}

func (s *MemoryStore) UpsertEmbedding(_ context.Context, row *EmbeddingRow) error {
	if row.TenantID == "" || row.DocumentID == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[key(row.TenantID, row.DocumentID)] = *row
	return nil
}

func (s *MemoryStore) GetEmbedding(_ context.Context, tenantID, documentID string) (*EmbeddingRow, error) {
	if tenantID == "" || documentID == "" {
		return nil, ErrInvalidKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.embeddings[key(tenantID, documentID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (s *MemoryStore) ListEmbeddings(_ context.Context, tenantID string) ([]EmbeddingRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []EmbeddingRow
	for _, row := range s.embeddings {
		if row.TenantID == tenantID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *MemoryStore) DeleteEmbedding(_ context.Context, tenantID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.embeddings, key(tenantID, documentID))
	return nil
}

func (s *MemoryStore) SaveTableExtraction(_ context.Context, row *TableExtractionRow) error {
	if row.TenantID == "" || row.DocumentID == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tableExtractions = append(s.tableExtractions, *row)
	return nil
}

func (s *MemoryStore) SaveLineItems(_ context.Context, rows []LineItemRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineItems = append(s.lineItems, rows...)
	return nil
}

func (s *MemoryStore) SaveConsensusResult(_ context.Context, row *ConsensusResultRow) error {
	if row.TenantID == "" || row.DocumentID == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consensusResults = append(s.consensusResults, *row)
	return nil
}

func (s *MemoryStore) SaveTrainingSample(_ context.Context, row *TrainingSampleRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trainingSamples = append(s.trainingSamples, *row)
	return nil
}

func (s *MemoryStore) ListTrainingSamples(_ context.Context, tenantID string) ([]TrainingSampleRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []TrainingSampleRow
	for _, row := range s.trainingSamples {
		if row.TenantID == tenantID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *MemoryStore) SaveFieldProvenance(_ context.Context, row *FieldProvenanceRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fieldProvenance = append(s.fieldProvenance, *row)
	return nil
}

func (s *MemoryStore) SaveLineItemProvenance(_ context.Context, row *LineItemProvenanceRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineItemProvenance = append(s.lineItemProvenance, *row)
	return nil
}

func (s *MemoryStore) SaveConsensusMetadata(_ context.Context, row *ConsensusMetadataRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consensusMetadata = append(s.consensusMetadata, *row)
	return nil
}

func (s *MemoryStore) ListFieldProvenance(_ context.Context, tenantID, documentID string) ([]FieldProvenanceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []FieldProvenanceRow
	for _, row := range s.fieldProvenance {
		if row.TenantID == tenantID && row.DocumentID == documentID {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (s *MemoryStore) ListLineItemProvenance(_ context.Context, tenantID, documentID string) ([]LineItemProvenanceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []LineItemProvenanceRow
	for _, row := range s.lineItemProvenance {
		if row.TenantID == tenantID && row.DocumentID == documentID {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (s *MemoryStore) ListConsensusMetadata(_ context.Context, tenantID, documentID string) ([]ConsensusMetadataRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []ConsensusMetadataRow
	for _, row := range s.consensusMetadata {
		if row.TenantID == tenantID && row.DocumentID == documentID {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (s *MemoryStore) SaveQueryLog(_ context.Context, row *QueryLogRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryLogs = append(s.queryLogs, *row)
	return nil
}

// QueryLogs returns a copy of all stored query logs. Test helper.
func (s *MemoryStore) QueryLogs() []QueryLogRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]QueryLogRow, len(s.queryLogs))
	copy(out, s.queryLogs)
	return out
}

// ConsensusResults returns a copy of all stored consensus results. Test
// helper.
func (s *MemoryStore) ConsensusResults() []ConsensusResultRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ConsensusResultRow, len(s.consensusResults))
	copy(out, s.consensusResults)
	return out
}

// LineItems returns a copy of all stored line items. Test helper.
func (s *MemoryStore) LineItems() []LineItemRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LineItemRow, len(s.lineItems))
	copy(out, s.lineItems)
	return out
}

var _ Store = (*MemoryStore)(nil)
