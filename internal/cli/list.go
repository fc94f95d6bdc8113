package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"farmrent/internal/app"
	"farmrent/internal/events"
	"farmrent/internal/export"
	"farmrent/internal/logging"
	"farmrent/internal/models"
	"farmrent/internal/session"

	"github.com/spf13/cobra"
)

// partyRequests returns the merged list of the --as user for a role.
func partyRequests(ctx context.Context, w *session.Window, role, email string) ([]*models.RentalRequest, error) {
	switch models.Role(strings.ToLower(role)) {
	case models.RoleFarmer:
		return w.RequestsForFarmer(ctx, email)
	case models.RoleProvider:
		return w.RequestsForProvider(ctx, email)
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid role %q: must be farmer or provider", role))
}

// roleOf defaults an empty --role to the profile's own role.
func roleOf(ctx context.Context, a *app.App, role, email string) string {
	if role != "" {
		return role
	}
	if u, err := a.Users.GetUser(ctx, email); err == nil {
		return string(u.Role)
	}
	return string(models.RoleFarmer)
}

func NewListCommand(opts *RootOptions) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the rental requests of the --as user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWindow(cmd, func(ctx context.Context, a *app.App, w *session.Window) error {
				actor, err := opts.actor(ctx, a)
				if err != nil {
					return err
				}
				list, err := partyRequests(ctx, w, roleOf(ctx, a, role, actor.Email), actor.Email)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(list, func(out io.Writer) { renderRequests(out, list) })
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "farmer or provider (default: the profile's role)")
	return cmd
}

// NewWatchCommand streams changes to the --as user's requests until interrupted.
// Changes from other processes arrive only when Redis is enabled.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print request changes as other windows make them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWindow(cmd, func(ctx context.Context, a *app.App, w *session.Window) error {
				actor, err := opts.actor(ctx, a)
				if err != nil {
					return err
				}
				f := opts.formatter(cmd)
				changes := make(chan *events.Event, 16)
				stop := w.Watch(func(ev *events.Event) {
					if ev.Request == nil || !ev.Request.IsParty(actor.Email) {
						return
					}
					select {
					case changes <- ev:
					default:
						f.VerboseLog("dropped %s for %s", ev.Type, ev.Request.ID)
					}
				})
				defer stop()

				f.VerboseLog("watching %s on channel %s", actor.Email, a.Channel.Name())
				for {
					select {
					case <-ctx.Done():
						return nil
					case ev := <-changes:
						req := ev.Request
						if err := f.Success(ev, func(out io.Writer) {
							fmt.Fprintf(out, "%s  %s  %s  %s\n", ev.PublishedAt.Format("15:04:05"), ev.Type, req.ID, statusLabel(req))
						}); err != nil {
							return err
						}
					}
				}
			})
		},
	}
}

func NewExportCommand(opts *RootOptions) *cobra.Command {
	var role, dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the --as user's requests to an XLSX file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWindow(cmd, func(ctx context.Context, a *app.App, w *session.Window) error {
				actor, err := opts.actor(ctx, a)
				if err != nil {
					return err
				}
				list, err := partyRequests(ctx, w, roleOf(ctx, a, role, actor.Email), actor.Email)
				if err != nil {
					return err
				}
				if dir == "" {
					dir = a.Config.Exports.Path
				}
				path, err := export.NewExporter(dir, logging.Component(a.Logger, "export")).Export(actor.Email, list)
				if err != nil {
					return err
				}
				result := map[string]any{"path": path, "requests": len(list)}
				return opts.formatter(cmd).Success(result, func(out io.Writer) {
					fmt.Fprintf(out, "Exported %d requests to %s\n", len(list), path)
				})
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "farmer or provider (default: the profile's role)")
	cmd.Flags().StringVarP(&dir, "dir", "o", "", "output directory (default: exports.path)")
	return cmd
}
