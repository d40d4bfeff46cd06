package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// setupCLI writes a config pointing at a fresh SQLite file and resets the
// flag state left behind by previous executions.
func setupCLI(t *testing.T) []string {
	t.Helper()
	for _, key := range []string{"PORT", "DATABASE_URL", "REDIS_URL", "OPENAI_API_KEY"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "policy-rag.yaml")
	cfg := "storage:\n  sqlite_path: " + filepath.Join(dir, "rag.db") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	resetFlags(rootCmd)
	return []string{"--config", cfgPath, "--env-file", filepath.Join(dir, "missing.env")}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Value.Type() != "stringSlice" {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, base []string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(append([]string{}, base...), args...))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	want := []string{
		"add", "ask", "categories", "delete", "departments", "ingest", "mcp",
		"search", "seed", "serve", "show", "stats", "tui", "version", "watch", "worker",
	}
	var got []string
	for _, c := range rootCmd.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
}

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := execute(t, nil, "version")

	assert.NoError(t, err)
	assert.Contains(t, out, "policy-rag version test-version-1.0.0")
}

func TestAskCmd_RequiresExactlyOneArg(t *testing.T) {
	base := setupCLI(t)

	_, err := execute(t, base, "ask")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestAskCmd_AnswersFromSeededCorpus(t *testing.T) {
	base := setupCLI(t)

	out, err := execute(t, base, "ask", "¿Cuántos días de vacaciones tengo?")

	require.NoError(t, err)
	assert.Contains(t, out, "Confidence:")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "[1]")
}

func TestAskCmd_JSONWithDepartment(t *testing.T) {
	base := setupCLI(t)

	out, err := execute(t, base, "ask", "--json", "-d", "rrhh", "-k", "2", "beneficios de salud")
	require.NoError(t, err)

	var resp domain.RAGResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "rrhh", resp.Department)
	assert.NotEmpty(t, resp.Sources)
	assert.LessOrEqual(t, len(resp.Sources), 2)
	assert.Equal(t, domain.AnswerSourceTemplate, resp.AnswerSource)
}

func TestAskCmd_UnknownDepartment(t *testing.T) {
	base := setupCLI(t)

	_, err := execute(t, base, "ask", "-d", "astronomia", "vacaciones")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestSearchCmd_JSON(t *testing.T) {
	base := setupCLI(t)

	out, err := execute(t, base, "search", "--json", "-k", "3", "trabajo remoto")
	require.NoError(t, err)

	var results []domain.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].RelevanceScore, results[i].RelevanceScore)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	base := setupCLI(t)

	out, err := execute(t, base, "add", "-t", "Política de viajes", "--content", "Los viajes se reservan con antelación.", "-c", "viajes")
	require.NoError(t, err)
	assert.Contains(t, out, "Added document")

	var id string
	_, scanErr := fmt.Sscanf(out, "Added document %s", &id)
	require.NoError(t, scanErr)

	out, err = execute(t, base, "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Política de viajes")
	assert.Contains(t, out, "Category: viajes")

	out, err = execute(t, base, "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted document "+id)

	_, err = execute(t, base, "show", id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddCmd_FromFile(t *testing.T) {
	base := setupCLI(t)
	path := filepath.Join(t.TempDir(), "gastos.md")
	require.NoError(t, os.WriteFile(path, []byte("Los gastos se justifican con factura."), 0o600))

	out, err := execute(t, base, "add", "-t", "Gastos", "-f", path, "-c", "presupuesto")

	require.NoError(t, err)
	assert.Contains(t, out, "Added document")
}

func TestAddCmd_Validation(t *testing.T) {
	base := setupCLI(t)

	_, err := execute(t, base, "add", "--content", "x", "-c", "y")
	assert.ErrorIs(t, err, domain.ErrMissingTitle)

	_, err = execute(t, base, "add", "-t", "x", "--content", "x", "-f", "x.md", "-c", "y")
	assert.Error(t, err)
}

func TestAddCmd_AsyncWithoutQueue(t *testing.T) {
	base := setupCLI(t)

	_, err := execute(t, base, "add", "--async", "-t", "T", "--content", "C", "-c", "c")

	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestShowCmd_InvalidID(t *testing.T) {
	base := setupCLI(t)

	_, err := execute(t, base, "show", "abc")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid document id")
}

func TestSeedCmd(t *testing.T) {
	base := setupCLI(t)

	out, err := execute(t, base, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 7 documents")

	out, err = execute(t, base, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 0 documents")
}

func TestStatsCmd_JSON(t *testing.T) {
	base := setupCLI(t)
	_, err := execute(t, base, "seed")
	require.NoError(t, err)

	out, err := execute(t, base, "stats", "--json")
	require.NoError(t, err)

	var stats domain.SystemStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 7, stats.Documents)
	assert.Equal(t, "blake2b-hash", stats.EncoderModel)
	assert.False(t, stats.GeneratorAvailable)
}

func TestIngestCmd(t *testing.T) {
	base := setupCLI(t)
	dir := filepath.Join(t.TempDir(), "seguridad")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "accesos.md"), []byte("# Accesos\n\nLas contraseñas caducan cada 90 días."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "equipos.txt"), []byte("Los portátiles se cifran."), 0o600))

	out, err := execute(t, base, "ingest", filepath.Join(dir, "*.{md,txt}"))
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 2 documents")

	out, err = execute(t, base, "categories")
	require.NoError(t, err)
	assert.Contains(t, out, "seguridad")
}

func TestDepartmentsCmd(t *testing.T) {
	base := setupCLI(t)

	out, err := execute(t, base, "departments")

	require.NoError(t, err)
	assert.Contains(t, out, "rrhh")
	assert.Contains(t, out, "trabajo_remoto")
}

func TestWorkerCmd_RequiresQueue(t *testing.T) {
	base := setupCLI(t)

	_, err := execute(t, base, "worker")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestServeCmd_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.NotNil(t, serveCmd.Flags().Lookup("worker"))
}
