package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/0xkofi/bundlebear-api/internal/warehouse"
)

// Service runs the aggregation queries and assembles the /home payload.
type Service struct {
	logger  *slog.Logger
	exec    warehouse.Interface
	builder *QueryBuilder
}

func NewService(logger *slog.Logger, exec warehouse.Interface, builder *QueryBuilder) *Service {
	return &Service{logger: logger, exec: exec, builder: builder}
}

type envelope struct {
	Leaderboard         []warehouse.Row `json:"leaderboard"`
	TotalPaymasterStats []warehouse.Row `json:"total_paymaster_stats"`
}

// Home computes the full response body. The two queries run sequentially and
// observe independent warehouse snapshots; with a multi-hour cache TTL the
// skew is irrelevant. Totals keep the raw one-element row-set shape.
func (s *Service) Home(ctx context.Context) ([]byte, error) {
	lb, err := s.exec.Query(ctx, "leaderboard", s.builder.LeaderboardSQL())
	if err != nil {
		return nil, fmt.Errorf("leaderboard query: %w", err)
	}
	totals, err := s.exec.Query(ctx, "totals", s.builder.TotalsSQL())
	if err != nil {
		return nil, fmt.Errorf("totals query: %w", err)
	}

	if lb == nil {
		lb = []warehouse.Row{}
	}
	if totals == nil {
		totals = []warehouse.Row{}
	}

	body, err := json.Marshal(envelope{Leaderboard: lb, TotalPaymasterStats: totals})
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return body, nil
}
