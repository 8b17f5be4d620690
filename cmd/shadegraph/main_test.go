package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/shadegraph/pkg/config"
	"github.com/chazu/shadegraph/pkg/logging"
	"github.com/chazu/shadegraph/pkg/registry"
)

const starterScript = `
(def uv (node :input))
(def five (node :constant :value 5))
(def adder (node :add))
(def sink (node :output))
(connect uv :u adder :a)
(connect five :out adder :b)
(connect adder :out sink :r)
`

const starterProgram = "let input_1_u = u;\n" +
	"let input_1_v = v;\n" +
	"let constant_1_out = 5.0000;\n" +
	"let add_1_out = (input_1_u + constant_1_out);\n" +
	"vec4(add_1_out,0,0,0)"

func writeScript(t *testing.T, dir, src string) string {
	t.Helper()
	path := filepath.Join(dir, "graph.zy")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Cleanup(func() { logging.SetLogger(nil) })

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestCompileCommand(t *testing.T) {
	path := writeScript(t, t.TempDir(), starterScript)

	out, _, err := run(t, "compile", path)
	require.NoError(t, err)
	assert.Equal(t, starterProgram+"\n", out)
}

func TestCompileModule(t *testing.T) {
	path := writeScript(t, t.TempDir(), starterScript)

	out, _, err := run(t, "compile", "--module", path)
	require.NoError(t, err)
	assert.Contains(t, out, "@fragment")
	assert.Contains(t, out, "let add_1_out = (input_1_u + constant_1_out);")
}

func TestCompileWithConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, starterScript)
	cfg := filepath.Join(dir, "shadegraph.hcl")
	require.NoError(t, os.WriteFile(cfg, []byte("shader {\n  fragment_entry = \"paint\"\n}\n"), 0o644))

	out, _, err := run(t, "--config", cfg, "compile", "-m", path)
	require.NoError(t, err)
	assert.Contains(t, out, "fn paint(")
}

func TestCompileBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, starterScript)
	cfg := filepath.Join(dir, "bad.hcl")
	require.NoError(t, os.WriteFile(cfg, []byte("snap_threshold = -1\n"), 0o644))

	_, _, err := run(t, "-c", cfg, "compile", path)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestCompileReportsScriptErrors(t *testing.T) {
	path := writeScript(t, t.TempDir(), `(node :sine)`)

	_, _, err := run(t, "compile", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node type")
}

func TestCompileReportsGraphErrors(t *testing.T) {
	path := writeScript(t, t.TempDir(), `(node :input)`)

	_, _, err := run(t, "compile", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output")
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()

	out, _, err := run(t, "check", writeScript(t, dir, starterScript))
	require.NoError(t, err)
	assert.Contains(t, out, "4 nodes, 3 connections")

	out, _, err = run(t, "check", writeScript(t, dir, `
(node :output :id "out")
(connect "ghost" :out "out" :r)
`))
	require.NoError(t, err, "dangling connections are warnings")
	assert.Contains(t, out, "[warning]")
	assert.Contains(t, out, "1 warnings")

	out, _, err = run(t, "check", writeScript(t, dir, `
(def a (node :add))
(def sink (node :output))
(connect a :out a :b)
(connect a :out sink :r)
`))
	require.Error(t, err)
	assert.Contains(t, out, "[error] node add_1: cycle detected")

	// The output never reads this loop, so compile succeeds and check agrees.
	out, _, err = run(t, "check", writeScript(t, dir, `
(def a (node :add))
(node :output)
(connect a :out a :b)
`))
	require.NoError(t, err)
	assert.Contains(t, out, "[warning] node add_1: cycle detected")
}

func TestTypesCommand(t *testing.T) {
	out, _, err := run(t, "types")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1+len(registry.Builtins().Types()))
	assert.Contains(t, lines[0], "TYPE")
	assert.Regexp(t, `^input\s+-\s+u,v$`, lines[1])
	assert.Regexp(t, `^output\s+r,g,b,a\s+rgba$`, lines[2])
	assert.Regexp(t, `^add\s+a,b\s+out$`, lines[3])
}

// syncBuffer is a bytes.Buffer safe for the watcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchRecompilesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, starterScript)
	opts := &rootOptions{cfg: config.Default(), reg: registry.Builtins()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out, errOut syncBuffer
	done := make(chan error, 1)
	go func() { done <- opts.watch(ctx, path, &out, &errOut) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), starterProgram)
	}, 5*time.Second, 20*time.Millisecond)

	// A broken edit keeps the previous program.
	require.NoError(t, os.WriteFile(path, []byte(`(node :sine)`), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(errOut.String(), "keeping previous program")
	}, 5*time.Second, 20*time.Millisecond)

	fixed := strings.Replace(starterScript, ":value 5", ":value 2", 1)
	require.NoError(t, os.WriteFile(path, []byte(fixed), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "let constant_1_out = 2.0000;")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
