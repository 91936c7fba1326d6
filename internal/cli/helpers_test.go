package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// cliResult is what one CLI invocation produced.
type cliResult struct {
	stdout string
	stderr string
	err    error
}

// executeCLI runs the root command with args from a scratch working
// directory, so no affinity.json in the repo is picked up.
func executeCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	t.Chdir(t.TempDir())

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())
	return cliResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

// scenariosDir is the repository's example scenarios, as an absolute path.
func scenariosDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("..", "..", "testdata", "scenarios"))
	require.NoError(t, err)
	return dir
}

func goldenDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("..", "harness", "testdata", "golden"))
	require.NoError(t, err)
	return dir
}
