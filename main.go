package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/sirrobot01/photozip/cmd/photozip"
	"github.com/sirrobot01/photozip/internal/config"
	"github.com/sirrobot01/photozip/pkg/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photozip",
	Short: "Serve photo albums as zip archives",
	Long: `photozip serves every directory under the photos path as a zip archive
that is built while it downloads, at /archive/<directory>/.

The photos path is read from PHOTO_FILES_PATH (default ./photos); a .env file
in the working directory is loaded first when present.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.Float64P("sleep", "s", 0, "sleep time in seconds between sending chunks (bare flag: 1.0)")
	flags.Lookup("sleep").NoOptDefVal = "1.0"
	flags.Bool("debug", false, "debug mode")
	flags.String("config", "", "path to an optional JSON config file")
	flags.String("env-file", ".env", "path to the .env file")
}

func run(cmd *cobra.Command, _ []string) error {
	opts := config.Options{}
	opts.Debug, _ = cmd.Flags().GetBool("debug")
	opts.ConfigFile, _ = cmd.Flags().GetString("config")
	opts.EnvFile, _ = cmd.Flags().GetString("env-file")
	if cmd.Flags().Changed("sleep") {
		sleep, _ := cmd.Flags().GetFloat64("sleep")
		opts.Sleep = &sleep
	}

	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return photozip.Start(ctx, cfg)
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version.GetInfo().String())); err != nil {
		os.Exit(1)
	}
}
