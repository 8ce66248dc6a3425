package batch_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/msdrg/internal/batch"
	"github.com/gyeh/msdrg/internal/catalog"
	"github.com/gyeh/msdrg/internal/config"
	"github.com/gyeh/msdrg/internal/db"
	"github.com/gyeh/msdrg/internal/grouper"
	"github.com/gyeh/msdrg/internal/logging"
)

const (
	testPort     = 15433
	testDB       = "drgtest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var (
	testDSN string
	pg      *embeddedpostgres.EmbeddedPostgres
)

// TestMain starts an embedded Postgres when DRGGROUP_PG_TESTS=1. Without it
// the database tests skip and the rest of the package runs normally.
func TestMain(m *testing.M) {
	if os.Getenv("DRGGROUP_PG_TESTS") != "1" {
		os.Exit(m.Run())
	}

	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg = embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30*time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

// setupDB creates a connection pool on a freshly migrated schema.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if pg == nil {
		t.Skip("set DRGGROUP_PG_TESTS=1 to run database tests")
	}
	ctx := context.Background()

	pool, err := db.NewPool(ctx, testDSN, 4)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS drg CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	log := logging.Setup("text", "warn")
	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}

	t.Cleanup(func() { pool.Close() })
	return pool
}

func loadEngine(t *testing.T) *grouper.Engine {
	t.Helper()
	cat, err := catalog.Load(context.Background(), filepath.Join("..", "catalog", "testdata"), catalog.DefaultFiles, zerolog.Nop())
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return grouper.New(cat)
}

func count(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return n
}

func TestMigrationsIdempotent(t *testing.T) {
	pool := setupDB(t)
	if err := db.ApplyMigrations(context.Background(), pool, zerolog.Nop()); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
	if n := count(t, pool, "SELECT count(*) FROM information_schema.tables WHERE table_schema = 'drg'"); n != 6 {
		t.Errorf("expected 6 drg tables, got %d", n)
	}
}

func TestPublishCatalog(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	eng := loadEngine(t)
	cat := eng.Catalog()
	st := cat.Stats()

	res, err := batch.PublishCatalog(ctx, pool, zerolog.Nop(), cat, false)
	if err != nil {
		t.Fatalf("PublishCatalog: %v", err)
	}
	if res.AlreadyPublished || res.DRGs != int64(st.DRGs) || res.Diagnoses != int64(st.Diagnoses) || res.CCs != int64(st.CCs+st.MCCs) {
		t.Fatalf("unexpected publish result: %+v (stats %+v)", res, st)
	}
	if n := count(t, pool, "SELECT count(*) FROM drg.cc_mcc WHERE alive_only"); n != int64(st.AliveOnly) {
		t.Errorf("alive-only rows = %d, want %d", n, st.AliveOnly)
	}
	var mdcs []string
	if err := pool.QueryRow(ctx, "SELECT mdcs FROM drg.diagnoses WHERE code = 'R0600'").Scan(&mdcs); err != nil {
		t.Fatal(err)
	}
	if len(mdcs) != 2 || mdcs[0] != "04" {
		t.Errorf("R0600 mdcs = %v", mdcs)
	}

	again, err := batch.PublishCatalog(ctx, pool, zerolog.Nop(), cat, false)
	if err != nil || !again.AlreadyPublished {
		t.Fatalf("second publish should be skipped: %+v, %v", again, err)
	}
	forced, err := batch.PublishCatalog(ctx, pool, zerolog.Nop(), cat, true)
	if err != nil || forced.AlreadyPublished || forced.DRGs != int64(st.DRGs) {
		t.Fatalf("forced publish: %+v, %v", forced, err)
	}
	if n := count(t, pool, "SELECT count(*) FROM drg.drgs"); n != int64(st.DRGs) {
		t.Errorf("drgs after forced publish = %d, want %d", n, st.DRGs)
	}
}

func TestRunToPostgres(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	eng := loadEngine(t)

	dir := t.TempDir()
	in := filepath.Join(dir, "encounters.csv")
	os.WriteFile(in, []byte("encounter_id,principal_dx,secondary_dx,procedures,age,sex,discharge_status\n"+
		"a,I2510,,,65,M,alive\n"+
		"b,J189,E1100,,70,F,alive\n"+
		"c,NOPE,,,50,M,alive\n"+
		"d,I2510,,5A1522F,60,U,alive\n"), 0644)

	cfg := &config.Config{Input: in, RunLabel: "it", Workers: 2}
	summary, err := batch.Run(ctx, eng, pool, zerolog.Nop(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.RowsWritten != 4 || summary.RowsFailed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if n := count(t, pool, "SELECT count(*) FROM drg.grouping_results WHERE run_id = $1", summary.RunID); n != 4 {
		t.Errorf("result rows = %d, want 4", n)
	}
	if n := count(t, pool, "SELECT count(*) FROM drg.grouping_results WHERE drg = '194' AND severity_dx = 'E1100'"); n != 1 {
		t.Errorf("expected one DRG 194 row with E1100")
	}
	if n := count(t, pool, "SELECT count(*) FROM drg.grouping_results WHERE outcome = 'error' AND drg IS NULL"); n != 1 {
		t.Errorf("expected one error row with NULL drg")
	}
	var status string
	var failed int64
	if err := pool.QueryRow(ctx, "SELECT status, rows_failed FROM drg.grouping_runs WHERE run_id = $1", summary.RunID).Scan(&status, &failed); err != nil {
		t.Fatal(err)
	}
	if status != "complete" || failed != 1 {
		t.Errorf("run status %q rows_failed %d", status, failed)
	}

	// same input and catalog: skipped unless forced
	again, err := batch.Run(ctx, eng, pool, zerolog.Nop(), cfg)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !again.AlreadyGrouped || again.RunID != summary.RunID {
		t.Errorf("second run should be skipped: %+v", again)
	}

	cfg.Force = true
	forced, err := batch.Run(ctx, eng, pool, zerolog.Nop(), cfg)
	if err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if forced.AlreadyGrouped || forced.RunID == summary.RunID {
		t.Errorf("forced run reused the earlier run: %+v", forced)
	}
	if n := count(t, pool, "SELECT count(*) FROM drg.grouping_runs WHERE status = 'complete'"); n != 2 {
		t.Errorf("complete runs = %d, want 2", n)
	}
}
