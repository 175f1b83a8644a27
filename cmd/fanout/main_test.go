package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/fogfactory/fanout"
	"github.com/maxatome/go-testdeep/td"
)

func TestMain(m *testing.M) {
	fanout.WorkerMain()
	os.Exit(m.Run())
}

// writeTree creates files from a path to content map under a temporary directory.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		td.Require(t).CmpNoError(os.MkdirAll(filepath.Dir(path), 0o755))
		td.Require(t).CmpNoError(os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func lines(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '\n' })
}

var tree = map[string]string{
	"a.txt":         "hello world\nnothing here\n",
	"sub/b.txt":     "another hello\n",
	"sub/deep/c.go": "package hello\nfunc main() {}\n",
}

func TestGrepCommand(t *testing.T) {

	t.Run("goroutine_workers", func(t *testing.T) {
		root := writeTree(t, tree)

		out, err := runCommand(t, "grep", "hello", root, "--workers", "3", "--log-level", "error")

		td.Require(t).CmpNoError(err)
		td.CmpBag(t, lines(out), []any{"hello world", "another hello", "package hello"})
	})

	t.Run("glob_filter", func(t *testing.T) {
		root := writeTree(t, tree)

		out, err := runCommand(t, "grep", "hello", root, "--glob", "**/*.txt", "--log-level", "error")

		td.Require(t).CmpNoError(err)
		td.CmpBag(t, lines(out), []any{"hello world", "another hello"})
	})

	t.Run("process_workers", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("worker processes need inherited file descriptors")
		}
		root := writeTree(t, tree)
		lock := filepath.Join(t.TempDir(), "print.lock")

		out, err := runCommand(t, "grep", "hello", root,
			"--mode", "process", "--workers", "2", "--lock-file", lock, "--log-level", "error")

		td.Require(t).CmpNoError(err)
		td.CmpBag(t, lines(out), []any{"hello world", "another hello", "package hello"})
	})

	t.Run("bad_pattern", func(t *testing.T) {
		root := writeTree(t, tree)

		_, err := runCommand(t, "grep", "(", root, "--workers", "2", "--log-level", "error")

		td.CmpContains(t, err, "error parsing regexp")
	})

	t.Run("missing_dir", func(t *testing.T) {
		_, err := runCommand(t, "grep", "x", filepath.Join(t.TempDir(), "nope"), "--log-level", "error")

		td.CmpError(t, err)
	})

	t.Run("missing_args", func(t *testing.T) {
		_, err := runCommand(t, "grep", "x")

		td.CmpError(t, err)
	})
}
