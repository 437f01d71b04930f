package internal

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "luajit-src",
	Short: "luajit-src builds the vendored LuaJIT as a static library",
	Long: `luajit-src stages the vendored LuaJIT sources, runs the platform's native
build and collects libluajit (lua51.lib on MSVC) and its headers.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Sprintf("luajit-src: %v", err))
		os.Exit(1)
	}
}
