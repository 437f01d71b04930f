package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gookit/color"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"

	luajit "github.com/goplus/luajit-src"
	"github.com/goplus/luajit-src/internal/export"
)

var (
	buildOutDir  string
	buildTarget  string
	buildHost    string
	buildVendor  string
	buildCompat  bool
	buildDebug   bool
	buildFormat  string
	buildOutput  string
	buildVerbose bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build LuaJIT into the output directory",
	Long: `Build stages the vendored LuaJIT sources into <out-dir>/luajit-build, runs
make (or msvcbuild.bat for MSVC targets) and copies the static library and
headers into <out-dir>/lib and <out-dir>/include.

Settings not given as flags are read from OUT_DIR, TARGET, HOST, DEBUG,
PROFILE and LUAJIT_VENDOR_DIR. Target and host default to the machine
running luajit-src.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	flags := buildCmd.Flags()
	flags.StringVar(&buildOutDir, "out-dir", "", "Output directory (default $OUT_DIR)")
	flags.StringVar(&buildTarget, "target", "", "Target triple (default $TARGET or the running machine)")
	flags.StringVar(&buildHost, "host", "", "Host triple (default $HOST or the running machine)")
	flags.StringVar(&buildVendor, "vendor", "", "Directory holding luajit2/ and luajit_relver.txt (default $LUAJIT_VENDOR_DIR)")
	flags.BoolVar(&buildCompat, "lua52compat", false, "Enable Lua 5.2 compatibility")
	flags.BoolVar(&buildDebug, "debug", false, "Build with assertions and debug symbols")
	flags.StringVarP(&buildFormat, "format", "f", "cargo", "Linker directives to print: cargo, cgo or json")
	flags.StringVarP(&buildOutput, "output", "o", "", "Also export the results (directory, .zip, .tar.gz or .tar.zst)")
	flags.BoolVarP(&buildVerbose, "verbose", "v", false, "Enable verbose build output")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	render, err := renderer(buildFormat)
	if err != nil {
		return err
	}
	if buildVerbose {
		log.SetOutputLevel(log.Ldebug)
	} else {
		log.SetOutputLevel(log.Lwarn)
	}

	// Resolve output path to absolute before build
	if buildOutput != "" {
		abs, err := filepath.Abs(buildOutput)
		if err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
		buildOutput = abs
	}

	b := luajit.New()
	if buildOutDir != "" {
		b.OutDir(buildOutDir)
	}
	b.Target(firstNonEmpty(buildTarget, os.Getenv(luajit.EnvTarget), hostTriple()))
	b.Host(firstNonEmpty(buildHost, os.Getenv(luajit.EnvHost), hostTriple()))
	if buildVendor != "" {
		b.VendorDir(buildVendor)
	}
	b.Lua52Compat(buildCompat)
	if cmd.Flags().Changed("debug") {
		b.Debug(buildDebug)
	}
	if !buildVerbose {
		b.Stdout(io.Discard).Stderr(io.Discard)
	}

	a, err := b.Build(cmd.Context())
	if err != nil {
		return err
	}
	if err := render(a, cmd.OutOrStdout()); err != nil {
		return err
	}

	if buildOutput != "" {
		if err := export.Output(a.Root(), buildOutput, luajit.IncludeDir, luajit.LibDir); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), color.Cyan.Sprintf("exported %s to %s", a.Root(), buildOutput))
	}
	return nil
}

type renderFunc func(a *luajit.Artifacts, w io.Writer) error

func renderer(format string) (renderFunc, error) {
	switch format {
	case "cargo":
		return (*luajit.Artifacts).CargoMetadata, nil
	case "cgo":
		return func(a *luajit.Artifacts, w io.Writer) error {
			cflags, ldflags := a.CgoFlags()
			_, err := fmt.Fprintf(w, "#cgo CFLAGS: %s\n#cgo LDFLAGS: %s\n", cflags, ldflags)
			return err
		}, nil
	case "json":
		return (*luajit.Artifacts).WriteJSON, nil
	}
	return nil, fmt.Errorf("unknown format %q (want cargo, cgo or json)", format)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
