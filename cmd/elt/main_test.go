package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/batch"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/config"
)

// writeConfig writes a sqlite-backed config into a temp dir and returns its
// path together with the data directory for CSV files.
func writeConfig(t *testing.T, extra string) (cfgPath, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	yaml := "destination:\n" +
		"  kind: sqlite\n" +
		"  dsn: " + filepath.Join(dir, "dest.db") + "\n" +
		"load:\n" +
		"  dir: " + dataDir + "\n" +
		"  files:\n" +
		"    - file: orders.csv\n" +
		"      table: orders\n" +
		"    - file: missing.csv\n" +
		"      table: missing\n" +
		"dbt:\n" +
		"  enabled: false\n" +
		extra
	cfgPath = filepath.Join(dir, "elt.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))
	return cfgPath, dataDir
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLoadCommand(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, "")
	csv := "Order ID,Status\no1,delivered\no2,\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "orders.csv"), []byte(csv), 0o644))

	out, err := runCmd(t, "load", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)

	var res struct {
		Job            string       `json:"job"`
		UnitsProcessed int          `json:"units_processed"`
		UnitsSkipped   int          `json:"units_skipped"`
		RowsProcessed  int64        `json:"rows_processed"`
		Status         batch.Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "load", res.Job)
	assert.Equal(t, 1, res.UnitsProcessed)
	assert.Equal(t, 1, res.UnitsSkipped)
	assert.EqualValues(t, 2, res.RowsProcessed)
	assert.Equal(t, batch.StatusSuccess, res.Status)
}

func TestLoadCommand_FailOnPartial(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, "")
	// A row wider than the header fails the unit.
	csv := "a,b\n1,2\n1,2,3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "orders.csv"), []byte(csv), 0o644))

	_, err := runCmd(t, "load", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)

	_, err = runCmd(t, "load", "--config", cfgPath, "--log-level", "error", "--fail-on-partial")
	assert.ErrorIs(t, err, errPartialFailure)
}

func TestValidateCommand(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")
	out, err := runCmd(t, "validate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid.")

	bad, _ := writeConfig(t, "schedule:\n  cron: \"not a cron\"\n")
	out, err = runCmd(t, "validate", "--config", bad)
	require.Error(t, err)
	assert.Contains(t, out, "error: schedule.cron")
}

func TestProbeCommand(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, "")
	path := filepath.Join(dataDir, "olist_sellers_dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte("Seller ID;Seller City\ns1;sp\n"), 0o644))

	out, err := runCmd(t, "probe", "--config", cfgPath, path)
	require.NoError(t, err)
	assert.Contains(t, out, `"delimiter": ";"`)
	assert.Contains(t, out, `"name": "seller_city"`)
	assert.Contains(t, out, `"table": "sellers"`)
}

func TestRefreshCommand_NotConfigured(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")
	_, err := runCmd(t, "refresh", "--config", cfgPath)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no metabase"))
}

func TestExecute_ExitCodes(t *testing.T) {
	assert.Equal(t, exitError, execute([]string{"validate", "--config", filepath.Join(t.TempDir(), "nope.yaml")}))

	cfgPath, _ := writeConfig(t, "")
	assert.Equal(t, exitOK, execute([]string{"validate", "--config", cfgPath}))
}

func TestPipeline_Assembly(t *testing.T) {
	t.Parallel()

	c := &config.Config{}
	p := pipeline(c)
	assert.Nil(t, p.DBT)
	assert.Nil(t, p.Refresher)
	assert.Len(t, p.Steps(), 1)

	c.DBT = config.DBTConfig{Enabled: true, Binary: "dbt", ProjectDir: "dbt_project"}
	c.Metabase = config.MetabaseConfig{URL: "http://metabase:3000", DashboardIDs: []int{2, 5}}
	p = pipeline(c)
	names := make([]string, 0)
	for _, s := range p.Steps() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"extract", "dbt_run", "dbt_test", "refresh_dashboard_2", "refresh_dashboard_5"}, names)
}

func TestLoadConfig_Conversion(t *testing.T) {
	t.Parallel()

	c := &config.Config{Load: config.LoadConfig{
		Dir: "data", Schema: "raw", ChunkSize: 10, Delimiter: ";", LazyQuotes: true,
		Files: []config.FileUnit{{File: "a.csv", Table: "a"}},
	}}
	lc := loadConfig(c)
	assert.Equal(t, ';', lc.CSV.Comma)
	assert.True(t, lc.CSV.LazyQuotes)
	assert.Equal(t, "a.csv", lc.Units[0].Path)
	assert.Nil(t, downloader(c))

	c.Load.Download.Enabled = true
	assert.NotNil(t, downloader(c))
}
