// --- START OF FINAL REVISED FILE cmd/textstore/root.go ---
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stackvity/textstore/internal/cli"
	"github.com/stackvity/textstore/internal/cli/config"
	"github.com/stackvity/textstore/pkg/textstore"
	"github.com/stackvity/textstore/pkg/textstore/encoding"
)

var (
	// These are set during build time using -ldflags
	version = "dev"     // Default version
	commit  = "none"    // Default commit hash
	date    = "unknown" // Default build date
)

// globalFlags holds the persistent flags that are not configuration keys.
type globalFlags struct {
	cfgFile     string // Path to config file
	profileName string // Name of profile to use
}

// newRootCmd builds the command tree. Every call returns fresh flag state.
func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "textstore",
		Short: "Converts text files between narrow codepages, UTF-16 and UTF-8.",
		Long: `textstore keeps a text document in whichever representation the next step
needs: a narrow (codepage) or wide (UTF-16) file, or an in-memory buffer.

Commands:
  utf8     stream a narrow or UTF-16 file into UTF-8
  convert  re-encode a file as narrow or wide
  unpack   run the configured plugins over a file and store the result`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:    cobra.NoArgs,
	}
	rootCmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.cfgFile, "config", "", "Configuration file path (default is search ., $HOME/.config/textstore/, $HOME/.textstore/)")
	pf.StringVar(&g.profileName, "profile", "", "Name of configuration profile to use")
	pf.BoolP("verbose", "v", false, "Enable verbose (debug) logging output")

	// Flag names must match the flagKeys table in internal/cli/config.
	pf.Int("codepage", int(encoding.DefaultCodepage), "Codepage of narrow text (e.g. 1252, 1251, 932, 65001)")
	pf.Bool("detect", true, "Detect the input encoding from its BOM or content")
	pf.String("temp-dir", "", "Directory for temporary files (default is the output's directory)")
	pf.String("temp-prefix", textstore.DefaultTempPrefix, "Name prefix for temporary files")
	pf.Bool("bom", true, "Write a UTF-8 byte-order mark (utf8 command)")
	pf.Bool("overwrite", false, "With --in-place, replace the input at every step instead of at the end")
	pf.Int64("max-buffer-mb", 0, "Upper bound for in-memory buffers in MB (0 means unlimited)")
	pf.String("plugin-timeout", config.DefaultPluginTimeout, "Per-plugin execution timeout (e.g. '30s', 0 disables)")
	pf.BoolP("force", "f", false, "Process input that looks binary")

	rootCmd.AddCommand(newUTF8Cmd(g), newConvertCmd(g), newUnpackCmd(g))
	return rootCmd
}

// ioFlags registers the input/output flags shared by every subcommand.
func ioFlags(cmd *cobra.Command, req *cli.Request) {
	cmd.Flags().StringVarP(&req.Input, "input", "i", "", "Required. Input file path.")
	cmd.Flags().StringVarP(&req.Output, "output", "o", "", "Output file path.")
	cmd.Flags().BoolVar(&req.InPlace, "in-place", false, "Replace the input file with the result")
	_ = cmd.MarkFlagRequired("input")
	cmd.MarkFlagsMutuallyExclusive("output", "in-place")
	cmd.MarkFlagsOneRequired("output", "in-place")
}

func newUTF8Cmd(g *globalFlags) *cobra.Command {
	req := cli.Request{Command: cli.CommandUTF8}
	cmd := &cobra.Command{
		Use:   "utf8 -i <input> (-o <output> | --in-place)",
		Short: "Stream a narrow or UTF-16 file into UTF-8.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error { // minimal comment
			return run(cmd, g, req)
		},
	}
	ioFlags(cmd, &req)
	return cmd
}

func newConvertCmd(g *globalFlags) *cobra.Command {
	req := cli.Request{Command: cli.CommandConvert}
	cmd := &cobra.Command{
		Use:   "convert -i <input> --to <target> (-o <output> | --in-place)",
		Short: "Re-encode a file as narrow (codepage) or wide (UTF-16LE) text.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error { // minimal comment
			return run(cmd, g, req)
		},
	}
	ioFlags(cmd, &req)
	cmd.Flags().StringVar(&req.Target, "to", cli.TargetFileWide, fmt.Sprintf("Target representation (%q or %q)", cli.TargetFileNarrow, cli.TargetFileWide))
	return cmd
}

func newUnpackCmd(g *globalFlags) *cobra.Command {
	req := cli.Request{Command: cli.CommandUnpack}
	cmd := &cobra.Command{
		Use:   "unpack -i <input> [--plugin <name>]... (-o <output> | --in-place)",
		Short: "Run configured plugins over a file and store the result in its original encoding.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error { // minimal comment
			return run(cmd, g, req)
		},
	}
	ioFlags(cmd, &req)
	cmd.Flags().StringArrayVarP(&req.Plugins, "plugin", "p", nil, "Plugin to apply (can be specified multiple times; default is every enabled plugin)")
	return cmd
}

// run loads the configuration and executes req.
func run(cmd *cobra.Command, g *globalFlags, req cli.Request) error {
	// Flags parsed fine; errors from here on are not usage errors.
	cmd.SilenceUsage = true

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, logger, err := config.LoadAndValidate(g.cfgFile, g.profileName, cmd.Flags())
	if err != nil {
		return err
	}
	return cli.Run(ctx, cfg, req, logger, cmd.OutOrStdout())
}

// Execute runs the root command and exits non-zero on failure.
func Execute() { // minimal comment
	// Cobra prints the error itself.
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// --- END OF FINAL REVISED FILE cmd/textstore/root.go ---
