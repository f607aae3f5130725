package main

import (
	"context"
	"os"

	"github.com/connect-dcc/datadestruction/pkg/bq/emulator"
	"github.com/goccy/bigquery-emulator/types"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

// bqemulator runs a local BigQuery emulator preloaded with the default
// destruction target, for manual testing of the service without GCP access.

var (
	projectID = flag.String("project", "test-project", "project id")
	port      = flag.String("port", "8086", "http port")
	grpcPort  = flag.String("grpc-port", "8087", "grpc port")
)

func main() {
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	e := emulator.New(log)
	defer e.Cleanup()

	e.WithProject(*projectID, &emulator.Dataset{
		DatasetID: "ForTestingOnly",
		TableID:   "physical_activity",
		Columns: []*types.Column{
			emulator.ColumnRequired("Connect_ID"),
			emulator.ColumnNullable("steps"),
		},
		Rows: []map[string]interface{}{
			{"Connect_ID": "4806091014", "steps": "12003"},
			{"Connect_ID": "8576196328", "steps": "902"},
			{"Connect_ID": "4800072280", "steps": "5541"},
		},
	})

	log.Info().Str("port", *port).Str("project", *projectID).Msg("bigquery emulator started")

	if err := e.Serve(context.Background(), *port, *grpcPort); err != nil {
		log.Fatal().Err(err).Msg("serving bigquery emulator")
	}
}
