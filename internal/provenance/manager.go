// Package provenance records which model produced each extracted value.
//
// Provenance is supplementary metadata: extractions succeed with or
// without it, and a missing provenance map is skipped with a warning,
// never treated as an error.
package provenance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tenant"
)

// Record describes one extracted value's origin.
type Record struct {
	Model          string        `json:"model"`
	ModelVersion   string        `json:"model_version,omitempty"`
	Method         string        `json:"method"`
	Confidence     float64       `json:"confidence"`
	RawValue       string        `json:"raw_value,omitempty"`
	Context        string        `json:"context,omitempty"`
	ProcessingTime time.Duration `json:"processing_time,omitempty"`
}

// ExtractionProvenance is the provenance attached to one extraction
// result: header fields by name, line-item cells by row index and name.
type ExtractionProvenance struct {
	Fields    map[string]Record         `json:"fields,omitempty"`
	LineItems map[int]map[string]Record `json:"line_items,omitempty"`
}

// DocumentProvenance is everything recorded for one document, each set
// ordered newest-first.
type DocumentProvenance struct {
	Fields    []store.FieldProvenanceRow    `json:"fields"`
	LineItems []store.LineItemProvenanceRow `json:"line_items"`
	Consensus []store.ConsensusMetadataRow  `json:"consensus"`
}

// Manager writes and reads the append-only provenance log.
type Manager struct {
	store  store.ProvenanceStore
	logger *zap.Logger
}

func NewManager(st store.ProvenanceStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: st, logger: logger}
}

// ExtractAndStoreProvenance persists every field and line-item record of
// an extraction. Absent provenance is skipped with a warning.
func (m *Manager) ExtractAndStoreProvenance(ctx context.Context, documentID string, prov *ExtractionProvenance) error {
	info, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	if prov == nil || (len(prov.Fields) == 0 && len(prov.LineItems) == 0) {
		m.logger.Warn("extraction carries no provenance, skipping",
			zap.String("document_id", documentID))
		return nil
	}

	now := time.Now().UTC()
	for fieldName, record := range prov.Fields {
		row := &store.FieldProvenanceRow{
			TenantID:       info.TenantID,
			DocumentID:     documentID,
			FieldName:      fieldName,
			Model:          record.Model,
			ModelVersion:   record.ModelVersion,
			Method:         record.Method,
			Confidence:     record.Confidence,
			RawValue:       record.RawValue,
			Context:        record.Context,
			ProcessingTime: record.ProcessingTime,
			CreatedAt:      now,
		}
		if err := m.store.SaveFieldProvenance(ctx, row); err != nil {
			return fmt.Errorf("save field provenance %q: %w", fieldName, err)
		}
	}

	for rowIndex, fields := range prov.LineItems {
		for fieldName, record := range fields {
			row := &store.LineItemProvenanceRow{
				TenantID:       info.TenantID,
				DocumentID:     documentID,
				RowIndex:       rowIndex,
				FieldName:      fieldName,
				Model:          record.Model,
				ModelVersion:   record.ModelVersion,
				Method:         record.Method,
				Confidence:     record.Confidence,
				RawValue:       record.RawValue,
				Context:        record.Context,
				ProcessingTime: record.ProcessingTime,
				CreatedAt:      now,
			}
			if err := m.store.SaveLineItemProvenance(ctx, row); err != nil {
				return fmt.Errorf("save line item provenance row %d %q: %w", rowIndex, fieldName, err)
			}
		}
	}

	m.logger.Debug("provenance stored",
		zap.String("document_id", documentID),
		zap.Int("fields", len(prov.Fields)),
		zap.Int("line_item_rows", len(prov.LineItems)))
	return nil
}

// GetDocumentProvenance returns the three provenance record sets for a
// document.
func (m *Manager) GetDocumentProvenance(ctx context.Context, documentID string) (*DocumentProvenance, error) {
	info, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	fields, err := m.store.ListFieldProvenance(ctx, info.TenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("list field provenance: %w", err)
	}
	items, err := m.store.ListLineItemProvenance(ctx, info.TenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("list line item provenance: %w", err)
	}
	consensus, err := m.store.ListConsensusMetadata(ctx, info.TenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("list consensus metadata: %w", err)
	}

	return &DocumentProvenance{Fields: fields, LineItems: items, Consensus: consensus}, nil
}
