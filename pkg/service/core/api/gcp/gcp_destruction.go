package gcp

import (
	"context"

	"github.com/connect-dcc/datadestruction/pkg/bq"
	"github.com/connect-dcc/datadestruction/pkg/errs"
	"github.com/connect-dcc/datadestruction/pkg/service"
)

type destructionAPI struct {
	client bq.Operations
}

var _ service.DestructionAPI = &destructionAPI{}

func (a *destructionAPI) ResolveProject(ctx context.Context) (string, error) {
	const op errs.Op = "destructionAPI.ResolveProject"

	project, err := a.client.ResolveProject(ctx)
	if err != nil {
		return "", errs.E(errs.IO, op, err)
	}

	return project, nil
}

func (a *destructionAPI) ExistingKeys(ctx context.Context, projectID string, target *service.Target, keys []string) ([]string, error) {
	const op errs.Op = "destructionAPI.ExistingKeys"

	existing, err := a.client.ListKeys(ctx, tableFromTarget(projectID, target), keys)
	if err != nil {
		return nil, errs.E(errs.IO, op, errs.Parameter(target.Protocol), err)
	}

	return existing, nil
}

func (a *destructionAPI) DeleteRows(ctx context.Context, projectID string, target *service.Target, keys []string) error {
	const op errs.Op = "destructionAPI.DeleteRows"

	_, err := a.client.DeleteKeys(ctx, tableFromTarget(projectID, target), keys)
	if err != nil {
		return errs.E(errs.IO, op, errs.Parameter(target.Protocol), err)
	}

	return nil
}

func tableFromTarget(projectID string, target *service.Target) *bq.Table {
	return &bq.Table{
		ProjectID: projectID,
		DatasetID: target.Dataset,
		TableID:   target.Table,
		KeyColumn: target.KeyColumn,
	}
}

func NewDestructionAPI(client bq.Operations) *destructionAPI {
	return &destructionAPI{
		client: client,
	}
}
