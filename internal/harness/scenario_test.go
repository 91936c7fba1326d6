package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenarioYAML = `
name: toggle
description: Toggle the verifier
fixture: verifier-button
startup_timeout: 2s
ready_timeout: 500ms
steps:
  - action: clear_verifier
    target: testButton
    expect:
      enabled: false
  - action: set_enabled
    target: testButton
    enabled: true
assertions:
  - type: trace_count
    action: clear_verifier
    count: 1
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, validScenarioYAML))
	require.NoError(t, err)

	assert.Equal(t, "toggle", s.Name)
	assert.Equal(t, "verifier-button", s.Fixture)
	assert.Equal(t, Duration(2*time.Second), s.StartupTimeout)
	assert.Equal(t, Duration(500*time.Millisecond), s.ReadyTimeout)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, ActionClearVerifier, s.Steps[0].Action)
	require.NotNil(t, s.Steps[0].Expect)
	require.NotNil(t, s.Steps[0].Expect.Enabled)
	assert.False(t, *s.Steps[0].Expect.Enabled)
	require.NotNil(t, s.Steps[1].Enabled)
	assert.True(t, *s.Steps[1].Enabled)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertTraceCount, s.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nfixture: verifier-button\nsteps: [{action: find}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nfixture: verifier-button\nsteps: [{action: find}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing fixture",
			yaml:    "name: n\ndescription: d\nsteps: [{action: find}]\n",
			wantErr: "fixture is required",
		},
		{
			name:    "unknown fixture",
			yaml:    "name: n\ndescription: d\nfixture: spaceship\nsteps: [{action: find}]\n",
			wantErr: `unknown fixture "spaceship"`,
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\nfixture: verifier-button\nsteps: []\n",
			wantErr: "steps list is required",
		},
		{
			name:    "step without action",
			yaml:    "name: n\ndescription: d\nfixture: verifier-button\nsteps: [{target: x}]\n",
			wantErr: "steps[0]: action is required",
		},
		{
			name:    "unknown step action",
			yaml:    "name: n\ndescription: d\nfixture: verifier-button\nsteps: [{action: dance}]\n",
			wantErr: `steps[0]: unknown action "dance"`,
		},
		{
			name:    "set_verifier without verifier",
			yaml:    "name: n\ndescription: d\nfixture: verifier-button\nsteps: [{action: set_verifier}]\n",
			wantErr: "verifier is required",
		},
		{
			name:    "set_enabled without enabled",
			yaml:    "name: n\ndescription: d\nfixture: verifier-button\nsteps: [{action: set_enabled}]\n",
			wantErr: "enabled is required",
		},
		{
			name:    "expect without clause",
			yaml:    "name: n\ndescription: d\nfixture: verifier-button\nsteps: [{action: expect}]\n",
			wantErr: "expect is required",
		},
		{
			name:    "unknown field",
			yaml:    "name: n\ndescription: d\nfixture: verifier-button\nstep: [{action: find}]\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "bad duration",
			yaml:    "name: n\ndescription: d\nfixture: verifier-button\nstartup_timeout: soon\nsteps: [{action: find}]\n",
			wantErr: "invalid duration",
		},
		{
			name:    "negative duration",
			yaml:    "name: n\ndescription: d\nfixture: verifier-button\nstartup_timeout: -1s\nsteps: [{action: find}]\n",
			wantErr: "must not be negative",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nfixture: verifier-button\nsteps: [{action: find}]\nassertions: [{type: vibes}]\n",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "negative trace count",
			yaml:    "name: n\ndescription: d\nfixture: verifier-button\nsteps: [{action: find}]\nassertions: [{type: trace_count, action: find, count: -1}]\n",
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_TraceCountZeroAllowed(t *testing.T) {
	_, err := ParseScenario([]byte("name: n\ndescription: d\nfixture: button-row\nsteps: [{action: find}]\nassertions: [{type: trace_count, action: click, count: 0}]\n"))
	assert.NoError(t, err)
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_toggle.yaml", "a_click.yml", "notes.txt", "sub/c_toggle.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}

	files, err := FindScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_click.yml"),
		filepath.Join(dir, "b_toggle.yaml"),
		filepath.Join(dir, "sub", "c_toggle.yaml"),
	}, files)

	files, err = FindScenarioFiles(dir, "*_toggle")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = FindScenarioFiles(dir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")
}

func TestLoadExampleScenarios(t *testing.T) {
	files, err := FindScenarioFiles("../../testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			_, err := LoadScenario(file)
			require.NoError(t, err)

			data, err := os.ReadFile(file)
			require.NoError(t, err)
			assert.Empty(t, ValidateScenario(data))
		})
	}
}

func TestFixtureNames(t *testing.T) {
	assert.Equal(t, []string{"button-row", "verifier-button"}, FixtureNames())
	_, ok := LookupFixture("verifier-button")
	assert.True(t, ok)
	_, ok = LookupFixture("missing")
	assert.False(t, ok)
}
