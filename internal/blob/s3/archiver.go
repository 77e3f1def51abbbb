package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridianlabs/lpboost/internal/domain"
)

// archiveBatchSize bounds one archival pass. Claim volume is modest; a pass
// that hits the bound simply leaves the rest for the next tick.
const archiveBatchSize = 1000

// Archiver exports confirmed claim audits to cold storage as JSONL files,
// partitioned by the year-month of the cutoff. Exported rows are stamped
// archived_at in the primary store but never deleted there; the export is a
// compliance copy, not a purge.
type Archiver struct {
	writer *Writer
	audits domain.ClaimAuditStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer *Writer, audits domain.ClaimAuditStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		audits: audits,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveClaimAudits exports confirmed, unarchived audits older than the
// cutoff and returns how many were exported.
func (a *Archiver) ArchiveClaimAudits(ctx context.Context, before time.Time) (int, error) {
	audits, err := a.audits.ListUnarchivedBefore(ctx, before, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list audits: %w", err)
	}
	if len(audits) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(audits)
	if err != nil {
		return 0, fmt.Errorf("s3blob: marshal audits: %w", err)
	}

	path := archivePath(before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: upload audits: %w", err)
	}

	ids := make([]string, len(audits))
	for i, audit := range audits {
		ids[i] = audit.ID
	}
	if err := a.audits.MarkArchived(ctx, ids, time.Now().UTC()); err != nil {
		// The upload landed; failing to stamp means the same rows are
		// re-exported next pass, which is safe but worth a loud log.
		a.logger.ErrorContext(ctx, "mark archived failed after upload",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return len(audits), fmt.Errorf("s3blob: mark archived: %w", err)
	}

	a.logger.InfoContext(ctx, "claim audits archived",
		slog.Int("count", len(audits)),
		slog.String("path", path),
	)
	return len(audits), nil
}

// archivePath builds the object key, e.g. archive/claim_audits/2026-08.jsonl.
// Repeated passes within one month append a timestamp so exports never
// overwrite each other.
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/claim_audits/%s/%d.jsonl",
		before.Format("2006-01"), time.Now().UTC().Unix())
}

// marshalJSONL serializes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
