package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigs(t *testing.T, cfg, dcfg string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataconfig.json"), []byte(dcfg), 0644))
	return dir
}

func TestLoadConfig(t *testing.T) {
	cfg, dcfg, err := loadConfigs("../../config", "config.json", "dataconfig.json")
	require.NoError(t, err)

	assert.Equal(t, "sheet", cfg.Source.Kind)
	assert.Equal(t, "data", cfg.Source.CaseView)
	assert.Equal(t, "enroll", cfg.Source.EnrollView)
	assert.Equal(t, 6*time.Hour, time.Duration(cfg.Source.ReloadInterval))
	assert.Len(t, dcfg.Schools, 19)
	assert.Equal(t, "lat_long", dcfg.GetEnrollColumn("lat_long"))
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := writeConfigs(t,
		`{"server":{"addr":":9000"},"source":{"sheet_id":"abc","case_view":"data","enroll_view":"enroll"},"log_name":"x.log"}`,
		`{}`)

	cfg, dcfg, err := loadConfigs(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)

	assert.Equal(t, "sheet", cfg.Source.Kind)
	assert.Equal(t, DefaultBaseURL, cfg.Source.BaseURL)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Source.Timeout))
	assert.Equal(t, DefaultSchools, dcfg.SchoolList())
	assert.Equal(t, "stu_newPos", dcfg.GetCaseColumn("stu_newPos"))
}

func TestLoadConfigCombinesErrors(t *testing.T) {
	dir := writeConfigs(t, `{not json`, `[1,2`)

	_, _, err := loadConfigs(dir, "config.json", "dataconfig.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析Config失败")
	assert.Contains(t, err.Error(), "解析DataConfig失败")
}

func TestValidateRequiresSourceFields(t *testing.T) {
	dir := writeConfigs(t,
		`{"server":{"addr":":9000"},"source":{"kind":"file","case_view":"data","enroll_view":"enroll"},"log_name":"x.log"}`,
		`{}`)

	_, _, err := loadConfigs(dir, "config.json", "dataconfig.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_dir")

	dir = writeConfigs(t,
		`{"server":{"addr":":9000"},"source":{"kind":"ftp","case_view":"data","enroll_view":"enroll"},"log_name":"x.log"}`,
		`{}`)
	_, _, err = loadConfigs(dir, "config.json", "dataconfig.json")
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MSD_ADDR", ":7777")
	t.Setenv("MSD_SOURCE_KIND", "FILE")
	t.Setenv("MSD_DATA_DIR", "/tmp/msd")

	var cfg Config
	ApplyEnv(&cfg)

	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "file", cfg.Source.Kind)
	assert.Equal(t, "/tmp/msd", cfg.Source.DataDir)
}

func TestEnvFileOverridesSheetID(t *testing.T) {
	dir := writeConfigs(t,
		`{"server":{"addr":":9000"},"source":{"sheet_id":"from-json","case_view":"data","enroll_view":"enroll"},"log_name":"x.log"}`,
		`{}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MSD_SHEET_ID=from-env\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("MSD_SHEET_ID") })

	cfg, _, err := loadConfigs(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Source.SheetID)
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, time.Duration(d))

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))

	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
}
