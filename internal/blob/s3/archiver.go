package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/outcomelabs/marketd/internal/domain"
)

// MarketArchiver implements domain.Archiver by snapshotting terminal
// (resolved or cancelled) markets to object storage. Settled history then
// survives database pruning.
//
// Deletion of archived markets from the primary store is intentionally NOT
// performed here; pruning is a separate, explicit step executed after the
// archive has been verified.
type MarketArchiver struct {
	store  domain.Store
	writer domain.BlobWriter
	reader domain.BlobReader
	logger *slog.Logger
}

// NewMarketArchiver creates a MarketArchiver.
func NewMarketArchiver(store domain.Store, writer domain.BlobWriter, reader domain.BlobReader, logger *slog.Logger) *MarketArchiver {
	return &MarketArchiver{
		store:  store,
		writer: writer,
		reader: reader,
		logger: logger.With("component", "archiver"),
	}
}

// marketSnapshot is the archived representation of a settled market.
type marketSnapshot struct {
	Market     domain.Market `json:"market"`
	ArchivedAt time.Time     `json:"archived_at"`
}

// marketPath builds the object key for a market snapshot.
//
//	archive/markets/42.json
func marketPath(id uint64) string {
	return fmt.Sprintf("archive/markets/%d.json", id)
}

// ArchiveMarket snapshots a single terminal market and returns the object
// path. Archiving an open market returns domain.ErrState.
func (a *MarketArchiver) ArchiveMarket(ctx context.Context, marketID uint64) (string, error) {
	var market domain.Market
	err := a.store.View(ctx, func(tx domain.Tx) error {
		var err error
		market, err = tx.GetMarket(ctx, marketID)
		return err
	})
	if err != nil {
		return "", err
	}
	if market.Open() {
		return "", fmt.Errorf("archive market %d: market still open: %w", marketID, domain.ErrState)
	}

	snap := marketSnapshot{
		Market:     market,
		ArchivedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal market %d snapshot: %w", marketID, err)
	}

	path := marketPath(marketID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}

	a.logger.Info("archived market", "market_id", marketID, "path", path, "status", market.Status())
	return path, nil
}

// ArchiveTerminal snapshots every terminal market that has not been archived
// yet and returns the number of markets uploaded.
func (a *MarketArchiver) ArchiveTerminal(ctx context.Context) (int64, error) {
	var terminal []domain.Market
	err := a.store.View(ctx, func(tx domain.Tx) error {
		for _, status := range []domain.MarketStatus{domain.MarketStatusResolved, domain.MarketStatusCancelled} {
			markets, err := tx.ListMarkets(ctx, domain.ListOpts{Status: status})
			if err != nil {
				return err
			}
			terminal = append(terminal, markets...)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var count int64
	for _, market := range terminal {
		exists, err := a.reader.Exists(ctx, marketPath(market.ID))
		if err != nil {
			return count, err
		}
		if exists {
			continue
		}

		if _, err := a.ArchiveMarket(ctx, market.ID); err != nil {
			return count, err
		}
		count++
	}

	if count > 0 {
		a.logger.Info("archive sweep complete", "archived", count, "terminal", len(terminal))
	}
	return count, nil
}

// exportPartSize keeps multipart parts above the S3 5 MiB minimum.
const exportPartSize = 8 * 1024 * 1024

// ExportTerminal writes every terminal market as one JSON line into a single
// export object and returns its path. Unlike ArchiveTerminal it always
// includes already-archived markets, so the export is a self-contained dump.
func (a *MarketArchiver) ExportTerminal(ctx context.Context) (string, error) {
	var terminal []domain.Market
	err := a.store.View(ctx, func(tx domain.Tx) error {
		for _, status := range []domain.MarketStatus{domain.MarketStatusResolved, domain.MarketStatusCancelled} {
			markets, err := tx.ListMarkets(ctx, domain.ListOpts{Status: status})
			if err != nil {
				return err
			}
			terminal = append(terminal, markets...)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	exportedAt := time.Now().UTC()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, market := range terminal {
		snap := marketSnapshot{Market: market, ArchivedAt: exportedAt}
		if err := enc.Encode(snap); err != nil {
			return "", fmt.Errorf("s3blob: encode market %d for export: %w", market.ID, err)
		}
	}

	path := fmt.Sprintf("archive/exports/%s.jsonl", uuid.NewString())
	if err := a.writer.PutMultipart(ctx, path, &buf, exportPartSize); err != nil {
		return "", err
	}

	a.logger.Info("exported terminal markets", "count", len(terminal), "path", path)
	return path, nil
}

var _ domain.Archiver = (*MarketArchiver)(nil)
