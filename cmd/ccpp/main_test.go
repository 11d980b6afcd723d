package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetFlags() {
	includePaths = nil
	defineFlags = nil
	undefineFlags = nil
	outputPath = ""
	configPath = ""
	trigraphs = false
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	for _, name := range []string{"include", "define", "undefine", "output", "config", "trigraphs"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s to exist", name)
		}
	}
}

func TestRunSingleFileWritesToStdout(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	src := filepath.Join(dir, "main.c")
	writeFile(t, src, "#define TWO 2\nint x = TWO;\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{src})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v (stderr=%q)", err, errOut.String())
	}
	if !strings.Contains(out.String(), "int x = 2;") {
		t.Fatalf("expected macro-expanded output, got %q", out.String())
	}
}

func TestRunSingleFileWithDefineAndOutputFlag(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	src := filepath.Join(dir, "main.c")
	writeFile(t, src, "#ifdef FEATURE\non\n#else\noff\n#endif\n")
	dest := filepath.Join(dir, "out.c")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-D", "FEATURE", "-o", dest, src})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v (stderr=%q)", err, errOut.String())
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading %s: %v", dest, err)
	}
	if !strings.Contains(string(got), "on") {
		t.Fatalf("expected FEATURE to be defined, got %q", got)
	}
}

func TestRunSingleFilePropagatesPreprocessingErrors(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	src := filepath.Join(dir, "main.c")
	writeFile(t, src, "#error boom\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{src})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error from a failing #error directive")
	}
	if !strings.Contains(errOut.String(), "boom") {
		t.Errorf("expected the #error message on stderr, got %q", errOut.String())
	}
}

func TestRunBatchSingleJobConfig(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.c"), "int x;\n")
	cfg := filepath.Join(dir, "job.yaml")
	writeFile(t, cfg, "entry: "+filepath.Join(dir, "main.c")+"\noutput: "+filepath.Join(dir, "out.c")+"\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--config", cfg})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v (stderr=%q)", err, errOut.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "out.c")); err != nil {
		t.Fatalf("expected job output file to exist: %v", err)
	}
}

func TestRunBatchMultiJobConfigJoinsErrors(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad1.c"), "#error one\n")
	writeFile(t, filepath.Join(dir, "bad2.c"), "#error two\n")
	cfg := filepath.Join(dir, "jobs.yaml")
	writeFile(t, cfg, ""+
		"jobs:\n"+
		"  - entry: "+filepath.Join(dir, "bad1.c")+"\n"+
		"    output: "+filepath.Join(dir, "bad1.out.c")+"\n"+
		"  - entry: "+filepath.Join(dir, "bad2.c")+"\n"+
		"    output: "+filepath.Join(dir, "bad2.out.c")+"\n")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--config", cfg})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an aggregated error from two failing jobs")
	}
	if !strings.Contains(errOut.String(), "one") || !strings.Contains(errOut.String(), "two") {
		t.Errorf("expected both failures reported on stderr, got %q", errOut.String())
	}
}

func TestLooksLikeMultiJobFile(t *testing.T) {
	if !looksLikeMultiJobFile([]byte("jobs:\n  - entry: a.c\n")) {
		t.Errorf("expected a jobs: document to be detected as multi-job")
	}
	if looksLikeMultiJobFile([]byte("entry: a.c\noutput: a.out.c\n")) {
		t.Errorf("expected an entry: document to be detected as single-job")
	}
}
