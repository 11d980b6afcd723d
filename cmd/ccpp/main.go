// Command ccpp is a standalone C preprocessor: a thin cobra/pflag CLI
// wired to pkg/pp (single-file mode) and pkg/amalgamate (--config batch
// mode).
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raymyers/ccpp/pkg/amalgamate"
	"github.com/raymyers/ccpp/pkg/pp"
)

var version = "0.1.0"

var (
	includePaths  []string
	defineFlags   []string
	undefineFlags []string
	outputPath    string
	configPath    string
	trigraphs     bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ccpp [file]",
		Short: "ccpp is a standalone C99 preprocessor",
		Long: `ccpp preprocesses a single C source file, or runs a batch of
amalgamation jobs described by a YAML --config file.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return runBatch(configPath, errOut)
			}
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			return runSingle(args[0], out, errOut)
		},
	}

	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to include search path")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	rootCmd.Flags().StringArrayVarP(&undefineFlags, "undefine", "U", nil, "Undefine macro")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write output to this path instead of stdout")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Run a YAML amalgamation job (or job file) instead of a single source file")
	rootCmd.Flags().BoolVar(&trigraphs, "trigraphs", false, "Enable trigraph substitution")

	return rootCmd
}

// runSingle preprocesses one file and writes the result to outputPath, or
// to out when outputPath is empty.
func runSingle(filename string, out, errOut io.Writer) error {
	e := pp.NewEngine()
	e.Trigraphs = trigraphs

	for _, dir := range includePaths {
		e.AddPath(dir)
	}
	for _, d := range defineFlags {
		name, value := d, ""
		if idx := strings.Index(d, "="); idx >= 0 {
			name, value = d[:idx], d[idx+1:]
		}
		if err := e.Define(name, value); err != nil {
			fmt.Fprintf(errOut, "ccpp: invalid -D %s: %v\n", d, err)
			return err
		}
	}
	for _, name := range undefineFlags {
		e.Undef(name)
	}

	if err := e.Parse(filename); err != nil {
		fmt.Fprintf(errOut, "ccpp: %v\n", err)
		return err
	}
	reportDiagnostics(e.Diagnostics, errOut)

	dest := out
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			fmt.Fprintf(errOut, "ccpp: creating %s: %v\n", outputPath, err)
			return err
		}
		defer f.Close()
		dest = f
	}
	if err := e.Write(dest); err != nil {
		fmt.Fprintf(errOut, "ccpp: %v\n", err)
		return err
	}
	if e.ReturnCode != 0 {
		return fmt.Errorf("%d preprocessing error(s)", e.ReturnCode)
	}
	return nil
}

// runBatch loads configPath as either a single amalgamate.Job or a
// multi-job amalgamate.File and runs every job, joining every job's
// failure into one error (§7) so a batch run reports everything that went
// wrong instead of stopping at the first failure.
func runBatch(configPath string, errOut io.Writer) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "ccpp: %v\n", err)
		return err
	}

	var diags []pp.Diagnostic
	var runErr error
	if looksLikeMultiJobFile(data) {
		f, err := amalgamate.LoadFile(configPath)
		if err != nil {
			fmt.Fprintf(errOut, "ccpp: %v\n", err)
			return err
		}
		diags, runErr = amalgamate.RunFile(f)
	} else {
		job, err := amalgamate.LoadJob(configPath)
		if err != nil {
			fmt.Fprintf(errOut, "ccpp: %v\n", err)
			return err
		}
		diags, runErr = amalgamate.Run(job)
	}

	reportDiagnostics(diags, errOut)
	if runErr != nil {
		fmt.Fprintf(errOut, "ccpp: %v\n", runErr)
	}
	return runErr
}

// looksLikeMultiJobFile reports whether the config document declares a
// top-level "jobs:" key rather than a single job's "entry:" key. A cheap
// line scan is enough here: amalgamate.LoadJob/LoadFile do the real
// parsing and will reject anything this heuristic gets wrong.
func looksLikeMultiJobFile(data []byte) bool {
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "jobs:") {
			return true
		}
		if strings.HasPrefix(trimmed, "entry:") {
			return false
		}
	}
	return false
}

func reportDiagnostics(diags []pp.Diagnostic, errOut io.Writer) {
	for _, d := range diags {
		fmt.Fprintln(errOut, d.Error())
	}
}
