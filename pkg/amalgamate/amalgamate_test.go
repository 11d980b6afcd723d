package amalgamate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

func TestLoadJobSingleDocument(t *testing.T) {
	dir := t.TempDir()
	jobPath := filepath.Join(dir, "job.yaml")
	writeFile(t, jobPath, "entry: src/main.c\noutput: build/out.c\ntrigraphs: true\n")

	job, err := LoadJob(jobPath)
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if job.Entry != "src/main.c" || job.Output != "build/out.c" || !job.Trigraphs {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestLoadJobSingleElementJobsList(t *testing.T) {
	dir := t.TempDir()
	jobPath := filepath.Join(dir, "job.yaml")
	writeFile(t, jobPath, "jobs:\n  - entry: a.c\n    output: a.out.c\n")

	job, err := LoadJob(jobPath)
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if job.Entry != "a.c" {
		t.Fatalf("got %+v", job)
	}
}

func TestRunProducesAmalgamatedOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "include", "greet.h"), "const char *greeting = \"hi\";\n")
	writeFile(t, filepath.Join(dir, "src", "main.c"), "#include \"greet.h\"\nint x = VERSION;\n")

	job := &Job{
		Entry:        filepath.Join(dir, "src", "main.c"),
		Output:       filepath.Join(dir, "build", "out.c"),
		IncludePaths: []string{filepath.Join(dir, "include")},
		Defines:      map[string]string{"VERSION": "2"},
	}

	diags, err := Run(job)
	if err != nil {
		t.Fatalf("Run: %v (diags=%+v)", err, diags)
	}

	out, err := os.ReadFile(job.Output)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	got := string(out)
	if !strings.Contains(got, "greeting") {
		t.Errorf("expected the included header's content in output, got %q", got)
	}
	if !strings.Contains(got, "int x = 2;") {
		t.Errorf("expected VERSION to expand to 2, got %q", got)
	}
}

func TestRunReportsPreprocessingErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.c"), "#error boom\n")

	job := &Job{
		Entry:  filepath.Join(dir, "main.c"),
		Output: filepath.Join(dir, "out.c"),
	}
	_, err := Run(job)
	if err == nil {
		t.Fatalf("expected an error from a failing #error directive")
	}
}

func TestRunUndefinesRemovePredefinedMacro(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.c"), "#ifdef DEBUG_LOGGING\nlogging\n#else\nquiet\n#endif\n")

	job := &Job{
		Entry:     filepath.Join(dir, "main.c"),
		Output:    filepath.Join(dir, "out.c"),
		Defines:   map[string]string{"DEBUG_LOGGING": "1"},
		Undefines: []string{"DEBUG_LOGGING"},
	}
	if _, err := Run(job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out, err := os.ReadFile(job.Output)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(out), "quiet") || strings.Contains(string(out), "logging") {
		t.Fatalf("expected DEBUG_LOGGING to be undefined again, got %q", out)
	}
}

func TestRunFileAggregatesErrorsAcrossJobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.c"), "int x;\n")
	writeFile(t, filepath.Join(dir, "bad1.c"), "#error one\n")
	writeFile(t, filepath.Join(dir, "bad2.c"), "#error two\n")

	f := &File{Jobs: []Job{
		{Entry: filepath.Join(dir, "ok.c"), Output: filepath.Join(dir, "ok.out.c")},
		{Entry: filepath.Join(dir, "bad1.c"), Output: filepath.Join(dir, "bad1.out.c")},
		{Entry: filepath.Join(dir, "bad2.c"), Output: filepath.Join(dir, "bad2.out.c")},
	}}

	_, err := RunFile(f)
	if err == nil {
		t.Fatalf("expected a joined error from the two failing jobs")
	}
	if !strings.Contains(err.Error(), "one") || !strings.Contains(err.Error(), "two") {
		t.Fatalf("expected both failures joined into one error, got %v", err)
	}
}

func TestLoadFileParsesMultipleJobs(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "jobs.yaml")
	writeFile(t, cfgPath, ""+
		"jobs:\n"+
		"  - entry: src/a.c\n"+
		"    output: build/a.c\n"+
		"    include_paths: [include]\n"+
		"    defines:\n"+
		"      NDEBUG: \"1\"\n"+
		"    undefines: [DEBUG_LOGGING]\n"+
		"  - entry: src/b.c\n"+
		"    output: build/b.c\n")

	f, err := LoadFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(f.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(f.Jobs))
	}
	if f.Jobs[0].Defines["NDEBUG"] != "1" || f.Jobs[0].IncludePaths[0] != "include" {
		t.Errorf("unexpected first job: %+v", f.Jobs[0])
	}
	if f.Jobs[1].Entry != "src/b.c" {
		t.Errorf("unexpected second job: %+v", f.Jobs[1])
	}
}
