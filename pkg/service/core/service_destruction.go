package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/connect-dcc/datadestruction/pkg/errs"
	"github.com/connect-dcc/datadestruction/pkg/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type destructionService struct {
	registry       service.TargetRegistry
	destructionAPI service.DestructionAPI
	requests       *prometheus.CounterVec
	log            zerolog.Logger
}

var _ service.DestructionService = &destructionService{}

func (s *destructionService) DestroyRows(ctx context.Context, protocol string, connectIDs []string) (*service.DestructionResult, error) {
	const op errs.Op = "destructionService.DestroyRows"

	target, err := s.registry.Resolve(protocol)
	if err != nil {
		s.count(protocol, "unsupported_protocol")

		return nil, errs.E(op, err)
	}

	if target.Action != service.ActionDeleteRows {
		s.count(protocol, "unimplemented_action")

		return nil, errs.E(errs.Internal, op, fmt.Sprintf("Function '%s' not implemented", target.Action))
	}

	projectID, err := s.destructionAPI.ResolveProject(ctx)
	if err != nil {
		s.count(protocol, "error")

		return nil, errs.E(op, err)
	}

	// Duplicates on input collapse into a set, so a given identifier lands
	// in exactly one of the deleted/not-found partitions.
	requested := dedupe(connectIDs)

	result := &service.DestructionResult{
		Target:     target,
		ProjectID:  projectID,
		DeletedIDs: []string{},
		NotFound:   []string{},
	}

	// An empty request is a liveness probe, it never touches the store.
	if len(requested) == 0 {
		s.count(protocol, "probe")

		return result, nil
	}

	existing, err := s.destructionAPI.ExistingKeys(ctx, projectID, target, requested)
	if err != nil {
		s.count(protocol, "error")

		return nil, errs.E(op, err)
	}

	existingSet := map[string]bool{}
	for _, id := range existing {
		existingSet[id] = true
	}

	for _, id := range requested {
		if !existingSet[id] {
			result.NotFound = append(result.NotFound, id)
		}
	}

	if len(existing) == 0 {
		s.count(protocol, "no_match")
		sort.Strings(result.NotFound)

		return result, nil
	}

	// The read above and this delete are two independent statements, the
	// store offers no transaction spanning them. A concurrent request may
	// observe and delete an overlapping identifier first; the delete below
	// is then a no-op for that key and the reported partition may diverge
	// from the store's final state. The row ends up absent either way.
	err = s.destructionAPI.DeleteRows(ctx, projectID, target, requested)
	if err != nil {
		s.count(protocol, "error")

		return nil, errs.E(op, err)
	}

	result.DeletedIDs = existing

	sort.Strings(result.DeletedIDs)
	sort.Strings(result.NotFound)

	s.log.Info().
		Str("protocol", protocol).
		Str("table", fmt.Sprintf("%s.%s.%s", projectID, target.Dataset, target.Table)).
		Int("deleted", len(result.DeletedIDs)).
		Int("not_found", len(result.NotFound)).
		Msg("destroyed participant rows")

	s.count(protocol, "deleted")

	return result, nil
}

func (s *destructionService) count(protocol, outcome string) {
	if s.requests != nil {
		s.requests.WithLabelValues(protocol, outcome).Inc()
	}
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}

		seen[id] = true
		out = append(out, id)
	}

	return out
}

func NewDestructionService(
	registry service.TargetRegistry,
	destructionAPI service.DestructionAPI,
	requests *prometheus.CounterVec,
	log zerolog.Logger,
) *destructionService {
	return &destructionService{
		registry:       registry,
		destructionAPI: destructionAPI,
		requests:       requests,
		log:            log,
	}
}
