package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/redbco/redb-connector/cmd/connector/internal/config"
	"github.com/redbco/redb-connector/cmd/connector/internal/credentials"
	"github.com/redbco/redb-connector/internal/database/mongodb/queries"
	"github.com/redbco/redb-connector/pkg/connector"

	// Registers the MongoDB adapter.
	_ "github.com/redbco/redb-connector/internal/database/mongodb"
)

// setupCommands initializes all commands and their relationships
func setupCommands() {
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(rawCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(credentialsCmd)

	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)

	rawCmd.Flags().Bool("query", false, "Return the full command result instead of the affected count")

	findCmd.Flags().String("filter", "", "Filter as extended JSON")
	findCmd.Flags().String("options", "", "Find options as extended JSON (projection, sort, skip, limit)")
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the database is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnection(cmd.Context(), func(ctx context.Context, conn connector.Connection) error {
			if err := conn.Ping(ctx); err != nil {
				return err
			}
			fmt.Printf("%s is reachable\n", conn.ID())
			return nil
		})
	},
}

var rawCmd = &cobra.Command{
	Use:   "raw <command-json>",
	Short: "Run a raw database command",
	Long: "Runs a command given as extended JSON, e.g. '{\"delete\": \"users\", \"deletes\": [...]}'. " +
		"Prints the affected count, or the full result with --query.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asQuery, _ := cmd.Flags().GetBool("query")
		inputs := map[string]interface{}{"command": args[0]}

		return withConnection(cmd.Context(), func(ctx context.Context, conn connector.Connection) error {
			if asQuery {
				res, err := conn.QueryRaw(ctx, nil, inputs, queries.QueryTypeRunCommand)
				if err != nil {
					return err
				}
				return printJSON(res)
			}
			n, err := conn.ExecuteRaw(ctx, inputs)
			if err != nil {
				return err
			}
			fmt.Printf("%d record(s) affected\n", n)
			return nil
		})
	},
}

var findCmd = &cobra.Command{
	Use:   "find <collection>",
	Short: "Find documents in a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs := map[string]interface{}{}
		if filter, _ := cmd.Flags().GetString("filter"); filter != "" {
			inputs["filter"] = filter
		}
		if opts, _ := cmd.Flags().GetString("options"); opts != "" {
			inputs["options"] = opts
		}
		model := connector.NewModel(args[0], args[0])

		return withConnection(cmd.Context(), func(ctx context.Context, conn connector.Connection) error {
			res, err := conn.QueryRaw(ctx, model, inputs, queries.QueryTypeFind)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersionInfo()
	},
}

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage passwords stored in the keyring",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <database-id>",
	Short: "Store the password for a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openKeyring()
		if err != nil {
			return err
		}
		password, err := readPassword("Password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %v", err)
		}
		if password == "" {
			return fmt.Errorf("password cannot be empty")
		}
		if err := store.Set(args[0], password); err != nil {
			return fmt.Errorf("failed to store password: %v", err)
		}
		fmt.Printf("Password stored for %s\n", args[0])
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <database-id>",
	Short: "Remove the stored password for a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openKeyring()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to delete password: %v", err)
		}
		fmt.Printf("Password removed for %s\n", args[0])
		return nil
	},
}

func openKeyring() (credentials.Store, error) {
	return credentials.Open(credentials.Backend(keyringMode), credentials.DefaultPath(), credentials.MasterPasswordFromEnv())
}

// withConnection resolves the configuration, connects, runs fn and closes
// the connection.
func withConnection(parent context.Context, fn func(context.Context, connector.Connection) error) error {
	cfg, err := config.Resolve(config.Options{
		ConfigFile: configFile,
		URL:        connURL,
		DatabaseID: databaseID,
		Timeout:    timeout,
	})
	if err != nil {
		return err
	}

	switch {
	case askPassword:
		password, err := readPassword("Password: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %v", err)
		}
		cfg.Connection.Password = password
	case useKeyring:
		if cfg.Connection.DatabaseID == "" {
			return fmt.Errorf("--keyring requires a database id")
		}
		store, err := openKeyring()
		if err != nil {
			return err
		}
		password, err := store.Get(cfg.Connection.DatabaseID)
		if err != nil {
			return err
		}
		cfg.Connection.Password = password
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, cfg.Timeout)
	defer cancel()

	conn, err := connector.GlobalRegistry().Connect(ctx, cfg.Connection)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close connection: %v\n", cerr)
		}
	}()

	return fn(ctx, conn)
}

// readPassword reads a password from stdin without echoing characters
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Add newline after password input
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %v", err)
	}
	fmt.Println(string(data))
	return nil
}
