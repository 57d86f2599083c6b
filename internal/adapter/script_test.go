//go:build !windows

package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"promptduel/internal/eval"
	"promptduel/internal/fault"
	"promptduel/internal/tactile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

const goodReport = `{"summary": {"total_cases": 1, "pass_count": 1, "fail_count": 0, "pass_rate": 100.0, "avg_latency_ms": 5, "total_latency_ms": 5},
 "cases": [{"id": 1, "input": "a", "expected": "a", "match": "exact", "actual": "a", "passed": true, "latency_ms": 5, "error": null}]}`

// writeScript creates an executable shell script that finds --json-report-file
// in its arguments and runs body with $REPORT set.
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	script := "#!/bin/sh\n" +
		"echo \"$@\" > \"$(dirname \"$0\")/args.txt\"\n" +
		"while [ $# -gt 0 ]; do\n" +
		"  if [ \"$1\" = \"--json-report-file\" ]; then REPORT=\"$2\"; fi\n" +
		"  shift\n" +
		"done\n" +
		body + "\n"
	p := filepath.Join(dir, "eval.sh")
	require.NoError(t, os.WriteFile(p, []byte(script), 0755))
	return p
}

func scriptRequest(dir string) eval.Request {
	return eval.Request{
		Label:          "train_a",
		PromptFile:     filepath.Join(dir, "a.txt"),
		CasesFile:      filepath.Join(dir, "train.jsonl"),
		CaseTimeout:    30 * time.Second,
		Timeout:        10 * time.Second,
		TextReportPath: filepath.Join(dir, "r.txt"),
		JSONReportPath: filepath.Join(dir, "r.json"),
	}
}

func TestScriptAdapter_Success(t *testing.T) {
	dir := t.TempDir()
	cmd := writeScript(t, dir, "cat > \"$REPORT\" <<'JSON'\n"+goodReport+"\nJSON")

	a := &ScriptAdapter{Executor: tactile.NewDirectExecutor(), Command: cmd, ModelPath: "/m.task"}
	res, err := a.Evaluate(context.Background(), scriptRequest(dir))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.PassCount)
	assert.Len(t, res.Cases, 1)

	args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "--timeout-sec 30 --max-cases 0 --no-update --model-path /m.task")
	assert.NotContains(t, string(args), "--skip-setup")
}

func TestScriptAdapter_PreparedSkipsSetup(t *testing.T) {
	a := &ScriptAdapter{}
	req := scriptRequest("d")
	assert.NotContains(t, a.Arguments(req), "--skip-download")

	req.Prepared = true
	args := a.Arguments(req)
	assert.Contains(t, args, "--skip-setup")
	assert.Contains(t, args, "--skip-download")
}

func TestScriptAdapter_Failures(t *testing.T) {
	tests := map[string]struct {
		body    string
		timeout time.Duration
	}{
		"non-zero exit":    {body: "echo harness exploded >&2; exit 2"},
		"malformed report": {body: "echo '{\"summary\": ' > \"$REPORT\""},
		"missing report":   {body: "exit 0"},
		"inconsistent":     {body: "echo '{\"summary\": {\"total_cases\": 3, \"pass_count\": 1, \"fail_count\": 1}, \"cases\": []}' > \"$REPORT\""},
		"timeout":          {body: "sleep 5", timeout: 100 * time.Millisecond},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			cmd := writeScript(t, dir, tt.body)
			req := scriptRequest(dir)
			if tt.timeout > 0 {
				req.Timeout = tt.timeout
			}

			a := &ScriptAdapter{Executor: tactile.NewDirectExecutor(), Command: cmd}
			_, err := a.Evaluate(context.Background(), req)
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.KindAdapterExecution), "got %v", err)
		})
	}
}

func TestTimeoutSeconds(t *testing.T) {
	assert.Equal(t, "30", timeoutSeconds(0))
	assert.Equal(t, "2", timeoutSeconds(1500*time.Millisecond))
	assert.Equal(t, "45", timeoutSeconds(45*time.Second))
}

func TestBinaryClient(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "model")
	script := "#!/bin/sh\n" +
		"for a in \"$@\"; do case \"$a\" in --input_prompt_file=*) F=\"${a#--input_prompt_file=}\";; esac; done\n" +
		"echo 'INFO: init'\n" +
		"echo \"input_prompt: $(head -c 5 \"$F\")\"\n" +
		"echo 'the reply'\n" +
		"echo 'BenchmarkInfo: 3 tok/s'\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))

	c := &BinaryClient{Executor: tactile.NewDirectExecutor(), BinaryPath: bin, ModelPath: "m", Backend: "cpu", TempDir: dir}
	out, err := c.Complete(context.Background(), "hello prompt", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "the reply", out)

	matches, _ := filepath.Glob(filepath.Join(dir, "duel-prompt-*"))
	assert.Empty(t, matches, "temp prompt files are removed")

	failing := filepath.Join(dir, "broken")
	require.NoError(t, os.WriteFile(failing, []byte("#!/bin/sh\necho no model >&2\nexit 1\n"), 0755))
	c.BinaryPath = failing
	_, err = c.Complete(context.Background(), "x", 5*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model")
}
