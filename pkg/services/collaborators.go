package services

import (
	"context"

	"github.com/dukex/nodeflow/pkg/cache"
)

// Entitlements answers whether a principal's subscription allows creating workflows.
type Entitlements interface {
	IsEntitled(ctx context.Context, principal string) (bool, error)
}

// NameGenerator produces names for new workflows.
type NameGenerator interface {
	Generate() string
}

// GraphCache stores graph views between reads. Implementations must tolerate
// deleting keys that do not exist.
type GraphCache interface {
	Get(ctx context.Context, workflowID string) (*cache.Entry, bool, error)
	Set(ctx context.Context, entry *cache.Entry) error
	Delete(ctx context.Context, workflowID string) error
}

// AllowAll entitles every principal.
type AllowAll struct{}

func (AllowAll) IsEntitled(context.Context, string) (bool, error) {
	return true, nil
}

// StaticEntitlements entitles a fixed set of principals.
type StaticEntitlements struct {
	principals map[string]struct{}
}

func NewStaticEntitlements(principals []string) *StaticEntitlements {
	set := make(map[string]struct{}, len(principals))
	for _, principal := range principals {
		set[principal] = struct{}{}
	}

	return &StaticEntitlements{principals: set}
}

func (s *StaticEntitlements) IsEntitled(_ context.Context, principal string) (bool, error) {
	_, ok := s.principals[principal]

	return ok, nil
}
