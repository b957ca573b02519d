package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConsoleWriter struct {
	lines []string
}

func (w *testConsoleWriter) Println(a ...any) {
	w.lines = append(w.lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

func (w *testConsoleWriter) Print(a ...any) {
	w.lines = append(w.lines, fmt.Sprint(a...))
}

func (w *testConsoleWriter) Errorln(a ...any) {
	w.Println(a...)
}

func (w *testConsoleWriter) String() string {
	return strings.Join(w.lines, "\n")
}

func mockConsole(t *testing.T) *testConsoleWriter {
	t.Helper()
	w := &testConsoleWriter{}
	old := consoleWriter
	consoleWriter = w
	t.Cleanup(func() { consoleWriter = old })
	return w
}

// execute runs the app with the home directory pointing to temporary directory.
func execute(t *testing.T, args string) (*testConsoleWriter, error) {
	t.Helper()
	out := mockConsole(t)
	app := New()
	app.baseCmd.SetArgs(append(strings.Fields(args), "--home", t.TempDir()))
	return out, app.Execute(context.Background())
}

func TestStdWriter(t *testing.T) {
	var out, errOut bytes.Buffer
	w := newStdWriter(&out, &errOut)
	w.Print("a", "b")
	w.Println(1, 2)
	w.Errorln("failed:", 3)
	require.Equal(t, "ab1 2\n", out.String())
	require.Equal(t, "failed: 3\n", errOut.String())
}

func TestPrintError(t *testing.T) {
	out := mockConsole(t)
	PrintError(fmt.Errorf("boom"))
	require.Equal(t, "Error: boom", out.String())
}

func TestBaseCmd_invalidLogLevel(t *testing.T) {
	_, err := execute(t, "validate testdata/correct.json --log-level LOUD")
	require.ErrorContains(t, err, "initializing logger")
}

func TestBaseCmd_missingLoggerConfig(t *testing.T) {
	_, err := execute(t, "validate testdata/correct.json --logger-config /no/such/logger.yaml")
	require.ErrorContains(t, err, "loading logger configuration")
}

func TestBaseCmd_flagFromEnv(t *testing.T) {
	t.Setenv("FBAS_OUTPUT", "yaml")
	out, err := execute(t, "validate testdata/correct.json")
	require.NoError(t, err)
	require.Contains(t, out.String(), "nodes: 11\n")
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate testdata/correct.json --organizations testdata/correct_orgs.json")
	require.NoError(t, err)

	var summary validationSummary
	require.NoError(t, json.Unmarshal([]byte(out.String()), &summary))
	require.Equal(t, 11, summary.Nodes)
	require.Equal(t, 10, summary.NodesWithQuorumSet)
	require.Equal(t, 8, summary.SatisfiableNodes)
	require.Equal(t, []string{"NODE07", "NODE08", "NODE09"}, summary.UnsatisfiableNodes)
	require.Equal(t, 2, summary.Organizations)
	require.Len(t, summary.Fingerprint, 64)
}

func TestValidate_errors(t *testing.T) {
	_, err := execute(t, "validate testdata/no_such_file.json")
	require.ErrorContains(t, err, "loading FBAS")

	_, err = execute(t, "validate")
	require.ErrorContains(t, err, "accepts 1 arg(s), received 0")

	_, err = execute(t, "validate testdata/correct.json -o xml")
	require.ErrorContains(t, err, `unsupported output format "xml"`)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Len(t, out.lines, 1)

	out, err = execute(t, "version -o json")
	require.NoError(t, err)
	require.Contains(t, out.String(), `"goVersion": "go`)
}
