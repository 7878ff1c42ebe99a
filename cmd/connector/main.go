package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

var (
	configFile  string
	connURL     string
	databaseID  string
	timeout     time.Duration
	askPassword bool
	useKeyring  bool
	keyringMode string

	// Build information variables
	Version   = "dev"     // Default version for development
	GitCommit = "unknown" // Git commit hash
	BuildTime = "unknown" // Build timestamp
)

// printVersionInfo displays detailed version information
func printVersionInfo() {
	fmt.Printf("reDB MongoDB connector %s\n", Version)
	fmt.Printf("Built: %s, from commit: %s\n", BuildTime, GitCommit)
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "redb-connector",
	Short:         "reDB MongoDB connector",
	Long:          "Runs single operations against a MongoDB database through the reDB connector layer.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Lookup("version") != nil && cmd.Flags().Lookup("version").Changed {
			printVersionInfo()
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a connection profile (yaml)")
	rootCmd.PersistentFlags().StringVar(&connURL, "url", os.Getenv("REDB_CONNECTOR_URL"), "Connection url, e.g. mongodb://user@host:27017/db")
	rootCmd.PersistentFlags().StringVar(&databaseID, "database-id", "", "Identifier reported for the connection")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Timeout for the whole command (default 30s)")
	rootCmd.PersistentFlags().BoolVar(&askPassword, "ask-password", false, "Prompt for the password instead of reading it from the url or profile")

	rootCmd.PersistentFlags().BoolVar(&useKeyring, "keyring", false, "Read the password stored for --database-id from the keyring")
	rootCmd.PersistentFlags().StringVar(&keyringMode, "keyring-backend", "auto", "Keyring backend: auto, system or file")

	rootCmd.Flags().Bool("version", false, "Show version information and exit")

	setupCommands()
}

func main() {
	Execute()
}
