package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/partstrade/trade-service/internal/parsers/archive"
	"github.com/partstrade/trade-service/internal/storage"
	"github.com/partstrade/trade-service/internal/types"
)

type receivedFile struct {
	run        *types.IngestionRun
	storageKey string
}

// receive hashes the file, checks the dedup key, opens the run record and
// archives the raw bytes. dup is set when the delivery was already persisted.
func (in *Ingestor) receive(ctx context.Context, req Request) (rc *receivedFile, dup *types.IngestionRun, err error) {
	hash := storage.ComputeChecksum(req.Content)

	if req.DedupKey != "" {
		existing, err := in.store.FindPersistedRun(ctx, req.ProviderID, req.DedupKey, hash)
		if err != nil {
			return nil, nil, fmt.Errorf("check previous runs: %w", err)
		}
		if existing != nil {
			return nil, existing, nil
		}
	}

	run := &types.IngestionRun{
		ID:         uuid.NewString(),
		ProviderID: req.ProviderID,
		Source:     req.Source,
		Filename:   req.Filename,
		FileHash:   hash,
		Status:     types.StatusReceived,
		StartedAt:  in.now().UTC(),
	}
	if req.DedupKey != "" {
		run.DedupKey = types.StringPtr(req.DedupKey)
	}
	if err := in.store.CreateIngestionRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("create ingestion run: %w", err)
	}

	rc = &receivedFile{run: run, storageKey: storage.PriceListKey(req.ProviderID, hash)}
	in.archiveRaw(ctx, req, rc)
	return rc, nil, nil
}

// archiveRaw stores the received bytes. Failures do not stop ingestion.
func (in *Ingestor) archiveRaw(ctx context.Context, req Request, rc *receivedFile) {
	if in.archive == nil {
		return
	}

	meta := &storage.Metadata{
		ContentType:  archive.ContentType(req.Filename),
		OriginalName: req.Filename,
		Owner:        "provider:" + strconv.FormatInt(req.ProviderID, 10),
		ReceivedAt:   rc.run.StartedAt,
		Custom:       map[string]string{"run": rc.run.ID},
	}
	stored, err := storage.Archive(ctx, in.archive, rc.storageKey, req.Content, meta)
	if err != nil {
		in.log.Warn().Err(err).Str("runId", rc.run.ID).Str("key", rc.storageKey).Msg("Failed to archive received file")
		return
	}
	in.log.Debug().Str("runId", rc.run.ID).Str("key", rc.storageKey).Bool("stored", stored).Int("bytes", len(req.Content)).Msg("Archived received file")
}
