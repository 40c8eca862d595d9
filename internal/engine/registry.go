package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
)

// CreateMarketParams carries the inputs for market creation.
type CreateMarketParams struct {
	Question         string
	ResolutionHeight uint64
	OracleFeedID     string
	Threshold        int64
	Comparator       domain.Comparator
	InitialLiquidity uint64
	FeeBps           uint32
	Creator          string
}

// CreateMarket allocates the next market id and opens a new market with
// both virtual reserves set to the initial liquidity. No collateral is
// required: the 50/50 starting price comes purely from equal reserves.
func (e *Engine) CreateMarket(ctx context.Context, p CreateMarketParams) (domain.Market, error) {
	if p.Creator != e.params.Owner && !e.creators[p.Creator] {
		return domain.Market{}, fmt.Errorf("%w: %s may not create markets", domain.ErrUnauthorized, p.Creator)
	}
	if strings.TrimSpace(p.Question) == "" {
		return domain.Market{}, fmt.Errorf("%w: question must not be empty", domain.ErrValidation)
	}
	if p.InitialLiquidity == 0 {
		return domain.Market{}, fmt.Errorf("%w: initial liquidity must be positive", domain.ErrValidation)
	}
	if p.FeeBps >= feeDenominator {
		return domain.Market{}, fmt.Errorf("%w: fee %d bps must be below %d", domain.ErrValidation, p.FeeBps, feeDenominator)
	}
	if !p.Comparator.Valid() {
		return domain.Market{}, fmt.Errorf("%w: unknown comparator %q", domain.ErrValidation, p.Comparator)
	}

	height, err := e.currentHeight(ctx)
	if err != nil {
		return domain.Market{}, err
	}
	if p.ResolutionHeight <= height {
		return domain.Market{}, fmt.Errorf("%w: resolution height %d not after current height %d",
			domain.ErrValidation, p.ResolutionHeight, height)
	}

	var market domain.Market
	err = e.store.Update(ctx, func(tx domain.Tx) error {
		id, err := tx.NextMarketID(ctx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		market = domain.Market{
			ID:               id,
			Question:         p.Question,
			ResolutionHeight: p.ResolutionHeight,
			OracleFeedID:     p.OracleFeedID,
			Threshold:        p.Threshold,
			Comparator:       p.Comparator,
			Creator:          p.Creator,
			ReserveYes:       p.InitialLiquidity,
			ReserveNo:        p.InitialLiquidity,
			InitialLiquidity: p.InitialLiquidity,
			FeeBps:           p.FeeBps,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return tx.PutMarket(ctx, market)
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: create market: %w", err)
	}

	e.logger.InfoContext(ctx, "market created",
		slog.Uint64("market_id", market.ID),
		slog.String("creator", p.Creator),
		slog.Uint64("resolution_height", p.ResolutionHeight),
	)
	return market, nil
}
