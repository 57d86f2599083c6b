//go:build !windows

package tactile

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDirectExecutor_Success(t *testing.T) {
	e := NewDirectExecutor()
	res, err := e.Execute(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "cat; echo err >&2"},
		Stdin:     "hello",
	})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, "hello", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestDirectExecutor_NonZeroExit(t *testing.T) {
	e := NewDirectExecutor()
	res, err := e.Execute(context.Background(), Command{Binary: "sh", Arguments: []string{"-c", "echo broken >&2; exit 3"}})
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "broken", res.Detail())
}

func TestDirectExecutor_Timeout(t *testing.T) {
	e := NewDirectExecutor()
	res, err := e.Execute(context.Background(), Command{
		Binary:    "sleep",
		Arguments: []string{"5"},
		Timeout:   100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.Killed)
	assert.Contains(t, res.KillReason, "timeout")
	assert.False(t, res.Succeeded())
}

func TestDirectExecutor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	res, err := NewDirectExecutor().Execute(ctx, Command{Binary: "sleep", Arguments: []string{"5"}})
	require.NoError(t, err)
	assert.True(t, res.Killed)
	assert.Equal(t, "context canceled", res.KillReason)
}

func TestDirectExecutor_MissingBinary(t *testing.T) {
	_, err := NewDirectExecutor().Execute(context.Background(), Command{Binary: "definitely-not-a-binary-xyz"})
	assert.Error(t, err)

	_, err = NewDirectExecutor().Execute(context.Background(), Command{})
	assert.Error(t, err)
}

func TestDirectExecutor_Truncates(t *testing.T) {
	res, err := NewDirectExecutor().Execute(context.Background(), Command{
		Binary:         "sh",
		Arguments:      []string{"-c", "printf 0123456789"},
		MaxOutputBytes: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "0123", res.Stdout)
	assert.True(t, res.Truncated)
	assert.Equal(t, int64(6), res.TruncatedBytes)
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, max: 5}
	n, err := lw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = lw.Write([]byte("defg"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	n, _ = lw.Write([]byte("h"))
	assert.Equal(t, 1, n)
	assert.Equal(t, "abcde", buf.String())
	assert.Equal(t, int64(3), lw.discarded)
}

func TestCommandString(t *testing.T) {
	c := Command{Binary: "eval.sh", Arguments: []string{"--prompt-file", "my prompt.txt", ""}}
	assert.Equal(t, `eval.sh --prompt-file "my prompt.txt" ""`, c.CommandString())
}
