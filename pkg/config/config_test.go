package config_test

import (
	"path/filepath"
	"testing"

	"github.com/connect-dcc/datadestruction/pkg/config"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeConfig() config.Config {
	return config.Config{
		Server: config.Server{
			Hostname: "localhost",
			Address:  "127.0.0.1",
			Port:     "8080",
		},
		BigQuery: config.BigQuery{
			Endpoint:   "http://localhost:8086",
			EnableAuth: false,
			GCPProject: "test-project",
		},
		Protocols: []config.Protocol{
			{
				Name:      "roi_physical_activity",
				Dataset:   "ForTestingOnly",
				Table:     "physical_activity",
				KeyColumn: "Connect_ID",
				Action:    "delete_rows",
			},
		},
		LogLevel: "info",
		Debug:    false,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		config    func() config.Config
		expectErr bool
	}{
		{
			name:   "valid config",
			config: newFakeConfig,
		},
		{
			name: "missing protocols",
			config: func() config.Config {
				cfg := newFakeConfig()
				cfg.Protocols = nil

				return cfg
			},
			expectErr: true,
		},
		{
			name: "protocol with unknown action",
			config: func() config.Config {
				cfg := newFakeConfig()
				cfg.Protocols[0].Action = "drop_table"

				return cfg
			},
			expectErr: true,
		},
		{
			name: "protocol without key column",
			config: func() config.Config {
				cfg := newFakeConfig()
				cfg.Protocols[0].KeyColumn = ""

				return cfg
			},
			expectErr: true,
		},
		{
			name: "bad log level",
			config: func() config.Config {
				cfg := newFakeConfig()
				cfg.LogLevel = "noisy"

				return cfg
			},
			expectErr: true,
		},
		{
			name: "missing server port",
			config: func() config.Config {
				cfg := newFakeConfig()
				cfg.Server.Port = ""

				return cfg
			},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.config().Validate()
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	loader := config.NewFileSystemLoader()

	cfg, err := loader.Load("config", filepath.Join("testdata"), "DESTRUCT", nil)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(newFakeConfig(), cfg))
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnvBinding(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "env-project")

	loader := config.NewFileSystemLoader()

	cfg, err := loader.Load("config", filepath.Join("testdata"), "DESTRUCT", config.NewDefaultEnvBinder())
	require.NoError(t, err)

	assert.Equal(t, "env-project", cfg.BigQuery.GCPProject)
}

func TestProcessConfigPath(t *testing.T) {
	t.Parallel()

	parts, err := config.ProcessConfigPath("testdata/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "config", parts.FileName)

	_, err = config.ProcessConfigPath("testdata/config.toml")
	assert.Error(t, err)
}
