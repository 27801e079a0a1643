package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"airsync/assets"
	"airsync/config"
	"airsync/license"
	"airsync/state"
)

const (
	// portEnv overrides the configured server port for serve.
	portEnv = "AIRSYNC_PORT"
	// verifyURLEnv points license checks at another endpoint.
	verifyURLEnv = "AIRSYNC_VERIFY_URL"
)

var (
	verbose bool
	dataDir string
	version = "dev"

	appPaths config.Paths
	logger   = zerolog.Nop()
	logFile  io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "airsync",
	Short: "AirSync desktop companion",
	Long: `AirSync mirrors an Android phone on the desktop over the local network.

The desktop runs a WebSocket server that the phone connects to. Notifications,
battery and media status, app icons, wallpapers and clipboard text flow in;
dismissals, media and volume controls and clipboard text flow back.

Quick Start:
  airsync serve                       # Run the server until Ctrl+C
  airsync settings show               # Print preferences
  airsync history --limit 20          # Recent notifications
  airsync mirror --desktop            # Launch scrcpy against the last device`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return prepare(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLog()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeLog()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides "+config.DataDirEnv+")")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// prepare resolves the data layout, loads <dataDir>/.env and opens the log.
func prepare(cmd *cobra.Command) error {
	closeLog()

	if dataDir != "" {
		if err := os.Setenv(config.DataDirEnv, dataDir); err != nil {
			return fmt.Errorf("set %s: %w", config.DataDirEnv, err)
		}
	}

	paths, err := config.ResolvePaths()
	if err != nil {
		return err
	}
	if err := paths.Ensure(); err != nil {
		return err
	}
	if err := loadEnvFile(paths.EnvFile); err != nil {
		return err
	}

	log, closer, err := newLogger(paths.LogDir, verbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	appPaths = paths
	logger = log
	logFile = closer
	return nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func closeLog() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	logger = zerolog.Nop()
}

// openState builds a store over the resolved layout. Extra collaborators
// are supplied by serve.
func openState(options state.Options) (*state.Store, error) {
	cache, err := assets.New(appPaths.IconDir, appPaths.WallpaperDir, logger)
	if err != nil {
		return nil, err
	}
	options.SettingsPath = appPaths.SettingsFile
	options.Assets = cache
	options.Logger = logger
	if options.License == nil {
		options.License = newVerifier()
	}

	st := state.New(options)
	st.Load()
	return st, nil
}

func newVerifier() *license.Verifier {
	return license.NewVerifier(license.Options{
		VerifyURL: os.Getenv(verifyURLEnv),
		Logger:    logger,
	})
}
