package main

import (
	"context"
	"fmt"

	"vfm-go/internal/app"
	"vfm-go/internal/server"

	"github.com/spf13/cobra"
)

// sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage login sessions",
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete expired sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "SessionsClear", args, func(ctx context.Context, a *app.VFMApp) error {
			n, err := a.Services().Accounts.ClearExpiredSessions(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired session(s)\n", n)
			return nil
		})
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Maintain the metadata database",
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "DBStatus", args, func(ctx context.Context, a *app.VFMApp) error {
			st, err := a.DBStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Schema version: %d (latest %d)\n", st.Current, st.Latest)
			if st.Dirty {
				fmt.Println("The last migration did not complete; the database needs repair.")
			}
			return nil
		})
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a consistent copy of the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "DBBackup", args, func(ctx context.Context, a *app.VFMApp) error {
			if err := a.BackupDB(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Database copied to %s\n", args[0])
			return nil
		})
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve files over HTTP to users with a session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		return withApp(cmd, "Serve", args, func(ctx context.Context, a *app.VFMApp) error {
			if err := unlock(a); err != nil {
				return err
			}
			if listen == "" {
				listen = a.Config().Server.Listen
			}
			fmt.Printf("Listening on %s\n", listen)
			return server.New(a.Services(), a.URLs(), a.Logger()).Start(listen)
		})
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsClearCmd)

	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbBackupCmd)

	serveCmd.Flags().String("listen", "", "Address to listen on (default from config)")
}
