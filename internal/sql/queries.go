package sql

import (
	"embed"
)

// Migrations holds the schema DDL, applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/register_catalog.sql
var RegisterCatalog string

//go:embed queries/delete_catalog.sql
var DeleteCatalog string

//go:embed queries/register_run.sql
var RegisterRun string

//go:embed queries/lookup_complete_run.sql
var LookupCompleteRun string

//go:embed queries/update_run_status.sql
var UpdateRunStatus string

//go:embed queries/complete_run.sql
var CompleteRun string

//go:embed queries/delete_run_results.sql
var DeleteRunResults string

//go:embed queries/analyze_results.sql
var AnalyzeResults string
