package bq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"cloud.google.com/go/bigquery"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var _ Operations = &Client{}

type Operations interface {
	// ResolveProject returns the project id the client operates against,
	// detecting it from the execution context when none is configured.
	ResolveProject(ctx context.Context) (string, error)
	// ListKeys returns the distinct key column values from the table that
	// are present in keys.
	ListKeys(ctx context.Context, table *Table, keys []string) ([]string, error)
	// DeleteKeys removes the rows whose key column value is present in
	// keys. Deleting a key with no matching row is a no-op.
	DeleteKeys(ctx context.Context, table *Table, keys []string) (int64, error)
	// QueryAndWait runs an arbitrary statement as a query job and waits
	// for it to complete.
	QueryAndWait(ctx context.Context, projectID, query string) (*JobStatistics, error)
}

var (
	ErrExist    = errors.New("already exists")
	ErrNotExist = errors.New("not exists")
)

type Client struct {
	endpoint             string
	enableAuthentication bool
	projectID            string
	log                  zerolog.Logger
}

// Table identifies a single deletion target. The coordinates always come
// from compiled-in configuration, never from a request, which is why the
// identifiers may be interpolated into statement text while the key values
// themselves are always bound as query parameters.
type Table struct {
	ProjectID string
	DatasetID string
	TableID   string
	KeyColumn string
}

func (t Table) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ProjectID, validation.Required),
		validation.Field(&t.DatasetID, validation.Required),
		validation.Field(&t.TableID, validation.Required),
		validation.Field(&t.KeyColumn, validation.Required),
	)
}

func (t Table) FullyQualifiedName() string {
	return fmt.Sprintf("%s.%s.%s", t.ProjectID, t.DatasetID, t.TableID)
}

type JobStatistics struct {
	CreationTime        time.Time
	StartTime           time.Time
	EndTime             time.Time
	TotalBytesProcessed int64
	NumDMLAffectedRows  int64
}

func (c *Client) ResolveProject(ctx context.Context) (string, error) {
	if c.projectID != "" {
		return c.projectID, nil
	}

	client, err := c.clientFromProject(ctx, bigquery.DetectProjectID)
	if err != nil {
		return "", fmt.Errorf("detecting project: %w", err)
	}
	defer client.Close()

	return client.Project(), nil
}

func (c *Client) ListKeys(ctx context.Context, table *Table, keys []string) ([]string, error) {
	err := table.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating table: %w", err)
	}

	client, err := c.clientFromProject(ctx, table.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer client.Close()

	q := client.Query(fmt.Sprintf(
		"SELECT DISTINCT %s FROM `%s` WHERE %s IN UNNEST(@keys)",
		table.KeyColumn, table.FullyQualifiedName(), table.KeyColumn,
	))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "keys", Value: keys},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying keys from %s: %w", table.FullyQualifiedName(), mapError(err))
	}

	existing := []string{}
	for {
		var row []bigquery.Value

		err := it.Next(&row)
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}

			return nil, fmt.Errorf("iterating keys: %w", err)
		}

		key, ok := row[0].(string)
		if !ok {
			return nil, fmt.Errorf("key column %s of %s is not a string", table.KeyColumn, table.FullyQualifiedName())
		}

		existing = append(existing, key)
	}

	return existing, nil
}

func (c *Client) DeleteKeys(ctx context.Context, table *Table, keys []string) (int64, error) {
	err := table.Validate()
	if err != nil {
		return 0, fmt.Errorf("validating table: %w", err)
	}

	client, err := c.clientFromProject(ctx, table.ProjectID)
	if err != nil {
		return 0, fmt.Errorf("delete keys: %w", err)
	}
	defer client.Close()

	q := client.Query(fmt.Sprintf(
		"DELETE FROM `%s` WHERE %s IN UNNEST(@keys)",
		table.FullyQualifiedName(), table.KeyColumn,
	))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "keys", Value: keys},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running delete against %s: %w", table.FullyQualifiedName(), mapError(err))
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for delete against %s: %w", table.FullyQualifiedName(), err)
	}

	err = status.Err()
	if err != nil {
		return 0, fmt.Errorf("delete against %s failed: %w", table.FullyQualifiedName(), err)
	}

	var affected int64
	if status.Statistics != nil {
		if details, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			affected = details.NumDMLAffectedRows
		}
	}

	return affected, nil
}

func (c *Client) QueryAndWait(ctx context.Context, projectID, query string) (*JobStatistics, error) {
	client, err := c.clientFromProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("query and wait: %w", err)
	}
	defer client.Close()

	job, err := client.Query(query).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for query: %w", err)
	}

	err = status.Err()
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var stats *JobStatistics
	if status.Statistics != nil {
		stats = &JobStatistics{
			CreationTime:        status.Statistics.CreationTime,
			StartTime:           status.Statistics.StartTime,
			EndTime:             status.Statistics.EndTime,
			TotalBytesProcessed: status.Statistics.TotalBytesProcessed,
		}

		if details, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			stats.NumDMLAffectedRows = details.NumDMLAffectedRows
		}
	}

	return stats, nil
}

func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return ErrNotExist
	}

	return err
}

func (c *Client) clientFromProject(ctx context.Context, project string) (*bigquery.Client, error) {
	var options []option.ClientOption

	if c.endpoint != "" {
		options = append(options, option.WithEndpoint(c.endpoint))
	}

	if !c.enableAuthentication {
		options = append(options, option.WithoutAuthentication())
	}

	client, err := bigquery.NewClient(ctx, project, options...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client for project %s: %w", project, err)
	}

	return client, nil
}

func NewClient(endpoint string, enableAuthentication bool, projectID string, log zerolog.Logger) *Client {
	return &Client{
		endpoint:             endpoint,
		enableAuthentication: enableAuthentication,
		projectID:            projectID,
		log:                  log,
	}
}
