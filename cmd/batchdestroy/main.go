package main

import (
	"context"
	"os"
	"strings"

	"github.com/connect-dcc/datadestruction/pkg/bq"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

// batchdestroy submits the daily precondition delete statement as a plain
// query job, for environments where BigQuery scheduled queries are not
// available. The statement itself lives in scripts/scheduled_queries and
// only deletes rows whose upstream destruction has been confirmed on the
// participant registry (destroy requested AND data destroyed).

var (
	statementPath = flag.String("statement", "scripts/scheduled_queries/destroy_derived_rows.sql", "path to the delete statement")
	projectID     = flag.String("project", "", "GCP project, detected from the execution context when empty")
	endpoint      = flag.String("endpoint", "", "BigQuery endpoint override, for the emulator")
	enableAuth    = flag.Bool("enable-auth", true, "authenticate against the BigQuery API")
)

const projectPlaceholder = "${PROJECT}"

func main() {
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	raw, err := os.ReadFile(*statementPath)
	if err != nil {
		log.Fatal().Err(err).Msg("reading statement")
	}

	ctx := context.Background()

	client := bq.NewClient(*endpoint, *enableAuth, *projectID, log)

	project, err := client.ResolveProject(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("resolving project")
	}

	statement := strings.ReplaceAll(string(raw), projectPlaceholder, project)

	stats, err := client.QueryAndWait(ctx, project, statement)
	if err != nil {
		log.Fatal().Err(err).Msg("running precondition delete")
	}

	log.Info().
		Str("project", project).
		Int64("rows_deleted", stats.NumDMLAffectedRows).
		Int64("bytes_processed", stats.TotalBytesProcessed).
		Dur("duration", stats.EndTime.Sub(stats.StartTime)).
		Msg("precondition delete completed")
}
