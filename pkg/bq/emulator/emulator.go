package emulator

import (
	"context"
	"fmt"

	"github.com/goccy/bigquery-emulator/server"
	"github.com/goccy/bigquery-emulator/types"
	"github.com/rs/zerolog"
)

type Emulator struct {
	testServer *server.TestServer
	emulator   *server.Server
	log        zerolog.Logger
}

type Dataset struct {
	DatasetID string
	TableID   string
	Columns   []*types.Column
	Rows      []map[string]interface{}
}

func ColumnNullable(name string) *types.Column {
	return &types.Column{
		Name: name,
		Type: types.STRING,
		Mode: types.NullableMode,
	}
}

func ColumnRequired(name string) *types.Column {
	return &types.Column{
		Name: name,
		Type: types.STRING,
		Mode: types.RequiredMode,
	}
}

func ColumnBool(name string) *types.Column {
	return &types.Column{
		Name: name,
		Type: types.BOOL,
		Mode: types.NullableMode,
	}
}

func (e *Emulator) Cleanup() {
	if e.testServer != nil {
		e.testServer.Close()
	}
}

func (e *Emulator) Endpoint() string {
	return e.testServer.URL
}

func (e *Emulator) TestServer() {
	e.testServer = e.emulator.TestServer()
}

func (e *Emulator) WithProject(projectID string, datasets ...*Dataset) {
	p := &types.Project{
		ID: projectID,
	}

	for _, ds := range datasets {
		if ds == nil {
			continue
		}

		d := &types.Dataset{
			ID: ds.DatasetID,
		}

		if ds.TableID != "" {
			t := &types.Table{
				ID: ds.TableID,
			}

			t.Columns = append(t.Columns, ds.Columns...)

			for _, row := range ds.Rows {
				t.Data = append(t.Data, row)
			}

			d.Tables = append(d.Tables, t)
		}

		p.Datasets = append(p.Datasets, d)
	}

	e.WithSource(p.ID, server.StructSource(p))
}

func (e *Emulator) WithSource(projectID string, source server.Source) {
	err := e.emulator.Load(source)
	if err != nil {
		e.log.Fatal().Err(err).Msg("initializing bigquery emulator")
	}

	if err := e.emulator.SetProject(projectID); err != nil {
		e.log.Fatal().Err(err).Msg("setting project")
	}

	e.testServer = e.emulator.TestServer()
}

func (e *Emulator) Serve(ctx context.Context, httpPort, grpcPort string) error {
	return e.emulator.Serve(ctx,
		fmt.Sprintf("0.0.0.0:%s", httpPort),
		fmt.Sprintf("0.0.0.0:%s", grpcPort),
	)
}

func New(log zerolog.Logger) *Emulator {
	s, err := server.New(server.TempStorage)
	if err != nil {
		log.Fatal().Err(err).Msg("creating bigquery emulator")
	}

	return &Emulator{
		emulator: s,
		log:      log,
	}
}
