package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Scan:     ScanConfig{ReferenceClass: "java.lang.ref.Reference", ReferentField: "referent", MaxRoots: 10},
		Database: DatabaseConfig{Type: "sqlite", Path: "test.db"},
		Storage:  StorageConfig{Type: "local"},
		Output:   OutputConfig{Format: "text"},
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "reachscan.yaml")
	content := `
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "java.lang.ref.Reference", cfg.Scan.ReferenceClass)
	assert.Equal(t, "referent", cfg.Scan.ReferentField)
	assert.Equal(t, 1000, cfg.Scan.MaxRoots)
	assert.Zero(t, cfg.Scan.Workers)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "./reachscan.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.True(t, cfg.Output.Color)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "reachscan.yaml")
	content := `
scan:
  max_roots: 25
database:
  enabled: true
  type: postgres
  host: db.example.com
  port: 5433
  database: reachscan_ci
  user: admin
  password: secret
storage:
  type: local
  local_path: /tmp/dumps
output:
  format: json
  color: false
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Scan.MaxRoots)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "reachscan_ci", cfg.Database.Database)
	assert.Equal(t, "/tmp/dumps", cfg.Storage.LocalPath)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.False(t, cfg.Output.Color)
}

func TestLoad_InvalidDatabaseType(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "reachscan.yaml")
	content := `
database:
  type: oracle
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestLoad_COSWithCredentials(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "reachscan.yaml")
	content := `
storage:
  type: cos
  bucket: dumps-1250000000
  region: ap-guangzhou
  secret_id: test-id
  secret_key: test-key
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "cos", cfg.Storage.Type)
	assert.Equal(t, "dumps-1250000000", cfg.Storage.Bucket)
	assert.Equal(t, "https", cfg.Storage.Scheme)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("REACHSCAN_LOG_LEVEL", "debug")
	t.Setenv("REACHSCAN_SCAN_MAX_ROOTS", "3")
	t.Setenv("REACHSCAN_STORAGE_BUCKET", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Scan.MaxRoots)
	assert.Equal(t, "from-env", cfg.Storage.Bucket)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing referent", mutate: func(c *Config) { c.Scan.ReferentField = "" }, wantErr: "referent field are required"},
		{name: "zero max roots", mutate: func(c *Config) { c.Scan.MaxRoots = 0 }, wantErr: "max roots must be at least 1"},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantErr: `unknown log level "verbose"`},
		{name: "negative workers", mutate: func(c *Config) { c.Scan.Workers = -1 }, wantErr: "scan workers must not be negative"},
		{name: "postgres without host", mutate: func(c *Config) {
			c.Database = DatabaseConfig{Enabled: true, Type: "postgres"}
		}, wantErr: "database host is required"},
		{name: "disabled postgres without host", mutate: func(c *Config) {
			c.Database = DatabaseConfig{Type: "postgres"}
		}},
		{name: "sqlite without path", mutate: func(c *Config) {
			c.Database = DatabaseConfig{Enabled: true, Type: "sqlite"}
		}, wantErr: "database path is required"},
		{name: "bad output", mutate: func(c *Config) { c.Output.Format = "xml" }, wantErr: "unsupported output format: xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/reachscan.yaml")
	// Should not return error, use defaults
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
database:
  type: mysql
  host: mysql.local
output:
  format: yaml
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "mysql.local", cfg.Database.Host)
	assert.Equal(t, "yaml", cfg.Output.Format)
}

func TestDefault(t *testing.T) {
	t.Setenv("REACHSCAN_OUTPUT_FORMAT", "json")
	cfg := Default()
	assert.Equal(t, "text", cfg.Output.Format, "environment is ignored")
	assert.Equal(t, "java.lang.ref.Reference", cfg.Scan.ReferenceClass)
	assert.Equal(t, "referent", cfg.Scan.ReferentField)
	assert.Equal(t, 1000, cfg.Scan.MaxRoots)
	assert.False(t, cfg.Database.Enabled)
}
