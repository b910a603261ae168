package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bwkp-go/internal/app"
	"bwkp-go/internal/bitwarden"
	"bwkp-go/internal/config"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and environment and creates a BWKPApp. The caller
// must defer app.Close(). prepare may fill in secrets before wiring.
func newApp(ctx context.Context, operation string, prepare func(*config.Config, *config.Env) error) (*app.BWKPApp, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, err
	}

	cfg, err := paths.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}

	if prepare != nil {
		if err := prepare(cfg, env); err != nil {
			return nil, err
		}
	}

	a, err := app.NewBWKPApp(ctx, cfg, env, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// promptSecret reads a secret from the terminal without echo.
func promptSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s: stdin is not a terminal", prompt)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return string(b), nil
}

// promptNewSecret asks twice and requires both answers to match.
func promptNewSecret(prompt string) (string, error) {
	first, err := promptSecret(prompt)
	if err != nil {
		return "", err
	}
	second, err := promptSecret("Repeat: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("entries do not match")
	}
	return first, nil
}

// ensureKeyPassphrase prompts for the dump key passphrase when an encrypted
// snapshot will be read and none is set.
func ensureKeyPassphrase(cfg *config.Config, env *config.Env) error {
	if cfg.Vault.Type != "snapshot" || env.KeyPassphrase != "" || !bitwarden.IsEncrypted(cfg.Vault.SnapshotDir) {
		return nil
	}
	p, err := promptSecret("Dump key passphrase: ")
	if err != nil {
		return err
	}
	env.KeyPassphrase = p
	return nil
}

var rootCmd = &cobra.Command{
	Use:          "bwkp",
	Short:        "Export a Bitwarden vault to a KeePass database",
	SilenceUsage: true,
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the vault to a KDBX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		allowDuplicates, _ := cmd.Flags().GetBool("allow-duplicates")

		ctx := cmd.Context()
		a, err := newApp(ctx, "Export", func(cfg *config.Config, env *config.Env) error {
			if !dryRun && env.KDBXPassword == "" {
				p, err := promptNewSecret("KDBX password: ")
				if err != nil {
					return err
				}
				env.KDBXPassword = p
			}
			return ensureKeyPassphrase(cfg, env)
		})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Export(ctx, app.ExportRequest{
			Output:          output,
			DryRun:          dryRun,
			AllowDuplicates: allowDuplicates,
		})
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		s := res.Summary
		if dryRun {
			fmt.Printf("Dry run: would export %d entries (%d attachments)\n", s.Entries, s.Attachments)
			return nil
		}
		fmt.Printf("Exported %d entries (%d attachments) to %s\n", s.Entries, s.Attachments, res.Path)
		fmt.Printf("Organizations: %d  Collections: %d  Folders: %d\n", s.Organizations, s.Collections, s.Folders)
		for _, name := range res.Archived {
			fmt.Printf("Archived to %s\n", name)
		}
		return nil
	},
}

// dump command
var dumpCmd = &cobra.Command{
	Use:   "dump [DIR]",
	Short: "Dump raw vault listings and attachments",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plaintext, _ := cmd.Flags().GetBool("plaintext")

		ctx := cmd.Context()
		a, err := newApp(ctx, "Dump", ensureKeyPassphrase)
		if err != nil {
			return err
		}
		defer a.Close()

		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}
		dir, summary, err := a.Dump(ctx, dir, plaintext)
		if err != nil {
			return fmt.Errorf("dump failed: %w", err)
		}

		fmt.Printf("Dumped %d listings and %d attachments to %s\n", summary.Listings, summary.Attachments, dir)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View export history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "History", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-8s  %s  %-8s  %6d  %-10s  %s\n",
				r.ID,
				r.Operation,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				r.Entries,
				duration,
				r.Destination,
			)

			copies, err := a.ArchiveCopies(r.ID)
			if err != nil {
				return err
			}
			for _, c := range copies {
				fmt.Printf("      archived  %s:%s\n", c.Archive, c.Key)
			}
		}
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage archived exports",
}

var archiveCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify every configured archive is writable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "CheckArchives", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CheckArchives(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("All archives OK")
		return nil
	},
}

var archiveGetCmd = &cobra.Command{
	Use:   "get ARCHIVE KEY DEST",
	Short: "Copy an archived export to a local file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Retrieve", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.OpenFile(args[2], os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			return fmt.Errorf("creating destination: %w", err)
		}
		if err := a.Retrieve(cmd.Context(), args[0], args[1], f); err != nil {
			f.Close()
			os.Remove(args[2])
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing destination: %w", err)
		}

		fmt.Printf("Retrieved %s:%s to %s\n", args[0], args[1], args[2])
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return err
		}

		cfg := paths.NewConfig()
		if err := config.Init(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("Base Dir:   %s\n", paths.BaseDir)
		fmt.Printf("Output Dir: %s\n", cfg.Export.OutputDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return err
		}

		cfg, err := paths.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigPath)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Log Level:  %s\n", cfg.LogLevel)
		fmt.Printf("Vault:      %s\n", cfg.Vault.Type)
		fmt.Printf("Output Dir: %s\n", cfg.Export.OutputDir)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		for _, ac := range cfg.Archives {
			fmt.Printf("Archive:    %s (%s)\n", ac.Name, ac.Type)
		}
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the key pair protecting dump files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "SetupKeys", nil)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := promptNewSecret("New key passphrase: ")
		if err != nil {
			return err
		}
		if err := a.SetupKeys(passphrase); err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}

		fmt.Println("Encryption keys created")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// archive subcommands
	archiveCmd.AddCommand(archiveCheckCmd)
	archiveCmd.AddCommand(archiveGetCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "Destination KDBX file (default <output_dir>/bitwarden_dump_<unix>.kdbx)")
	exportCmd.Flags().Bool("dry-run", false, "Walk the vault without writing a file")
	exportCmd.Flags().Bool("allow-duplicates", false, "Copy items into every collection they belong to")
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().Bool("plaintext", false, "Write unencrypted files")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
}
