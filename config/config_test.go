package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picatz/taintflow/rules"
)

const sample = `
config:
  max_depth: 7
  scan_packages: [com.example]
  auth_config:
    blocking_annotations: [com.example.security.RequireLogin]
    bypass_annotations: [com.example.security.Anonymous]
sources:
  - type: method
    signature: "<javax.servlet.ServletRequest: java.lang.String getParameter(java.lang.String)>"
  - type: annotation
    value: org.springframework.web.bind.annotation.RequestParam
sinks:
  - type: method
    vuln_type: SQLi
    category: sqli
    signature: "<java.sql.Statement: java.sql.ResultSet executeQuery(java.lang.String)>"
  - type: METHOD
    category: cmd-exec
    severity: 3.5
    signature: "<java.lang.Runtime: java.lang.Process exec(java.lang.String)>"
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Scan.MaxDepth)
	assert.Equal(t, []string{"com.example"}, cfg.Scan.ScanPackages)
	assert.Equal(t, []string{"com.example.security.RequireLogin"}, cfg.Scan.Auth.BlockingAnnotations)
	assert.Equal(t, []string{"com.example.security.Anonymous"}, cfg.Scan.Auth.BypassAnnotations)
	require.Len(t, cfg.Sources, 2)
	require.Len(t, cfg.Sinks, 2)

	idx := cfg.Index()
	assert.True(t, idx.IsSource("<javax.servlet.ServletRequest: java.lang.String getParameter(java.lang.String)>"))

	sqli, ok := idx.Sink("<java.sql.Statement: java.sql.ResultSet executeQuery(java.lang.String)>")
	require.True(t, ok)
	assert.Equal(t, "SQLi", sqli.VulnType)
	assert.Equal(t, 8.0, sqli.BaseScore())

	exec, ok := idx.Sink("<java.lang.Runtime: java.lang.Process exec(java.lang.String)>")
	require.True(t, ok)
	assert.Equal(t, 3.5, exec.BaseScore())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		is   error
	}{
		{
			name: "unknown rule type",
			data: "sinks:\n  - type: regex\n    category: sqli\n    signature: x\n",
			is:   ErrUnknownRuleType,
		},
		{
			name: "unknown key",
			data: "sinks:\n  - type: method\n    sig: x\n",
		},
		{
			name: "method rule without signature",
			data: "sources:\n  - type: method\n",
		},
		{
			name: "negative depth",
			data: "config:\n  max_depth: -1\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Zero(t, cfg.Scan.MaxDepth)
	assert.Empty(t, cfg.Index().SinkSignatures())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 15, cfg.Scan.MaxDepth)

	idx := cfg.Index()
	for _, sig := range []string{
		"<java.sql.Statement: java.sql.ResultSet executeQuery(java.lang.String)>",
		"<java.lang.Runtime: java.lang.Process exec(java.lang.String)>",
		"<database/sql.DB: (*database/sql.Rows, error) Query(string,[]any)>",
		"<os/exec: *os/exec.Cmd Command(string,[]string)>",
	} {
		assert.True(t, idx.IsSink(sig), sig)
	}

	categories := make(map[string]bool)
	for _, s := range cfg.Sinks {
		categories[s.Category] = true
	}
	for _, c := range []string{
		rules.CategoryCodeExec, rules.CategoryCmdExec, rules.CategoryJNDI,
		rules.CategoryDeserialization, rules.CategorySQLi, rules.CategorySSRF,
		rules.CategoryFileWrite, rules.CategoryFileRead, rules.CategoryXXE, rules.CategoryXSS,
	} {
		assert.True(t, categories[c], "missing category %s", c)
	}
}

func TestLoadAndWriteDefault(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDefault(&buf))

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMerge(t *testing.T) {
	base := Default()
	extra, err := Parse([]byte(sample))
	require.NoError(t, err)

	merged := base.Merge(extra)
	assert.Equal(t, 7, merged.Scan.MaxDepth)
	assert.Len(t, merged.Sinks, len(base.Sinks)+len(extra.Sinks))

	exec, ok := merged.Index().Sink("<java.lang.Runtime: java.lang.Process exec(java.lang.String)>")
	require.True(t, ok)
	assert.Equal(t, 3.5, exec.BaseScore(), "later rule wins")
}
