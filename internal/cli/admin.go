package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [catalog.yaml]",
		Short: "Load user profiles and machinery listings from a catalog file",
		Long: `Load user profiles and machinery listings from a catalog file.

Entries are upserted, so seeding twice is harmless. Without an argument the
file named by database.seed_path is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			path := a.Config.Database.SeedPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return NewExitError(ExitCommandError, "no catalog file given and database.seed_path is empty")
			}

			users, machinery, err := a.SeedFromFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			result := map[string]int{"users": users, "machinery": machinery}
			return opts.formatter(cmd).Success(result, func(out io.Writer) {
				fmt.Fprintf(out, "Seeded %d users and %d machinery listings from %s\n", users, machinery, path)
			})
		},
	}
}

func NewBackupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a backup of the store now and prune old ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			svc, err := a.Backup()
			if err != nil {
				return NewExitError(ExitCommandError, err.Error())
			}
			path, err := svc.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			svc.CleanupOldBackups()
			return opts.formatter(cmd).Success(map[string]string{"path": path}, func(out io.Writer) {
				fmt.Fprintf(out, "Backup written to %s\n", path)
			})
		},
	}
}
