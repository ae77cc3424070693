package save

import (
	"context"
	"encoding/json"
	"time"

	"github.com/elacour/granary/internal/core/domain"
)

// ExportVersion is the export envelope format version.
const ExportVersion = 1

// Export wraps a snapshot for transfer between installations.
type Export struct {
	ExportVersion int             `json:"exportVersion"`
	ExportedAt    string          `json:"exportedAt"`
	ExportID      string          `json:"exportId"`
	Snapshot      json.RawMessage `json:"snapshot"`
}

// Export reads a slot and wraps its snapshot in a transfer envelope.
// The snapshot travels as plain expanded JSON so any installation can
// inspect it, compressed storage or not.
func (c *Coordinator) Export(ctx context.Context, slot int) ([]byte, error) {
	key, err := c.slotKey(slot)
	if err != nil {
		return nil, err
	}

	s, err := c.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}

	blob, err := json.Marshal(Export{
		ExportVersion: ExportVersion,
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
		ExportID:      domain.NewExportID(),
		Snapshot:      plain,
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("snapshot exported", "key", key, "bytes", len(blob))
	return blob, nil
}

// Import unwraps an export blob, validates the snapshot inside, and
// writes it to the target slot. The snapshot is restamped with the
// target slot and a fresh timestamp; provenance metadata survives.
func (c *Coordinator) Import(ctx context.Context, blob []byte, slot int) error {
	if err := c.checkSlot(slot); err != nil {
		return err
	}

	var export Export
	if err := json.Unmarshal(blob, &export); err != nil {
		return domain.ErrInvalidExport.WithCause(err)
	}
	if export.ExportVersion != ExportVersion {
		return domain.ErrInvalidExport.WithDetails("unsupported export version")
	}
	if len(export.Snapshot) == 0 {
		return domain.ErrInvalidExport.WithDetails("export carries no snapshot")
	}

	s, err := c.codec.Decode(export.Snapshot)
	if err != nil {
		return domain.ErrInvalidExport.WithCause(err)
	}
	if err := c.checkVersion(s.Version); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}

	s.Metadata.SaveSlot = slot
	s.Metadata.AutoSave = slot == domain.AutosaveSlot
	s.Timestamp = time.Now().UnixMilli()

	if err := c.SaveSnapshot(ctx, s); err != nil {
		return err
	}
	c.log.Info("snapshot imported", "slot", slot, "export_id", export.ExportID)
	return nil
}
