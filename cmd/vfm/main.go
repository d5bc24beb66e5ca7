package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"vfm-go/internal/app"
	"vfm-go/internal/config"
	"vfm-go/internal/model"
	"vfm-go/internal/vfm"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", vfm.Message(err, err.Error()))
		os.Exit(1)
	}
}

// newApp reads the config and creates a VFMApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "FileUpload", "Serve").
func newApp(ctx context.Context, operation, parameters string) (*app.VFMApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewVFMApp(ctx, cfg, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// withApp runs fn against a fresh VFMApp and records a failure in the log.
func withApp(cmd *cobra.Command, operation string, args []string, fn func(ctx context.Context, a *app.VFMApp) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, operation, strings.Join(args, " "))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		a.Fail(err)
		return err
	}
	return nil
}

// withUser is withApp for commands that act as the logged-in user.
func withUser(cmd *cobra.Command, operation string, args []string, fn func(ctx context.Context, a *app.VFMApp, u *model.User) error) error {
	return withApp(cmd, operation, args, func(ctx context.Context, a *app.VFMApp) error {
		u, err := a.CurrentUser(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, a, u)
	})
}

// readPassphrase reads a passphrase from VFM_PASSPHRASE, the terminal
// without echo, or a line of stdin, in that order.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv("VFM_PASSPHRASE"); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// newPassphrase asks twice and insists both entries match.
func newPassphrase(prompt string) (string, error) {
	if p := os.Getenv("VFM_PASSPHRASE"); p != "" {
		return p, nil
	}
	p1, err := readPassphrase(prompt)
	if err != nil {
		return "", err
	}
	p2, err := readPassphrase("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if p1 != p2 {
		return "", errors.New("passphrases do not match")
	}
	if p1 == "" {
		return "", errors.New("passphrase must not be empty")
	}
	return p1, nil
}

// unlock prompts for the passphrase when encrypted content is about to be read.
func unlock(a *app.VFMApp) error {
	if !a.NeedsUnlock() {
		return nil
	}
	p, err := readPassphrase("Passphrase: ")
	if err != nil {
		return err
	}
	return a.Unlock(p)
}

var rootCmd = &cobra.Command{
	Use:           "vfm",
	Short:         "Virtual file manager",
	SilenceErrors: true,
	SilenceUsage:  true,
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
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		dbType, _ := cmd.Flags().GetString("db")
		blobType, _ := cmd.Flags().GetString("blobs")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		cfg.Database.Type = dbType
		cfg.Blobs.Type = blobType
		if encrypt {
			cfg.Encryption.Type = "age"
		}

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)

		if !encrypt {
			return nil
		}
		return withApp(cmd, "SetupEncryption", nil, func(ctx context.Context, a *app.VFMApp) error {
			p, err := newPassphrase("New passphrase: ")
			if err != nil {
				return err
			}
			if err := a.SetupEncryption(p); err != nil {
				return err
			}
			fmt.Printf("Encryption keys written to %s\n", cfg.Encryption.PrivateKeyPath)
			return nil
		})
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Blobs:       %s\n", cfg.Blobs.Type)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		fmt.Printf("Max Upload:  %s\n", vfm.FormatSize(cfg.Upload.MaxSize))
		fmt.Printf("Session TTL: %s\n", cfg.Session.TTL.Duration)
		fmt.Printf("Listen:      %s\n", cfg.Server.Listen)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the metadata and blob stores are usable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "CheckSetup", args, func(ctx context.Context, a *app.VFMApp) error {
			if err := a.CheckSetup(); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		})
	},
}

var configPassphraseCmd = &cobra.Command{
	Use:   "passphrase",
	Short: "Change the encryption passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "ChangePassphrase", nil, func(ctx context.Context, a *app.VFMApp) error {
			old, err := readPassphrase("Current passphrase: ")
			if err != nil {
				return err
			}
			p, err := newPassphrase("New passphrase: ")
			if err != nil {
				return err
			}
			if err := a.ChangePassphrase(old, p); err != nil {
				return err
			}
			fmt.Println("Passphrase changed")
			return nil
		})
	},
}

// login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and start a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		userID, _ := cmd.Flags().GetString("id")
		provider, _ := cmd.Flags().GetString("provider")

		return withApp(cmd, "Login", []string{email}, func(ctx context.Context, a *app.VFMApp) error {
			u, err := a.Login(ctx, vfm.Identity{
				UserID:   userID,
				Email:    email,
				Name:     name,
				Provider: model.Provider(provider),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s <%s>\n", u.Name, u.Email)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Logout", nil, func(ctx context.Context, a *app.VFMApp) error {
			if err := a.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "WhoAmI", nil, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			fmt.Printf("%s <%s>  id:%s  provider:%s\n", u.Name, u.Email, u.ID, u.Provider)
			return nil
		})
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("encrypt", false, "Encrypt blob content at rest with age")
	configInitCmd.Flags().String("db", "sqlite", "Metadata store: sqlite, memory or mongo")
	configInitCmd.Flags().String("blobs", "filesystem", "Blob store: filesystem, memory or s3")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configPassphraseCmd)

	loginCmd.Flags().String("email", "", "Account email")
	loginCmd.Flags().String("name", "", "Display name")
	loginCmd.Flags().String("id", "", "User id from the identity provider (minted when empty)")
	loginCmd.Flags().String("provider", string(model.ProviderCredentials), "Identity provider: credentials or oauth")
	loginCmd.MarkFlagRequired("email")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(folderCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(serveCmd)
}
