package cli

import (
	"context"
	"io"

	"farmrent/internal/app"
	"farmrent/internal/domain"
	"farmrent/internal/models"
	"farmrent/internal/session"

	"github.com/spf13/cobra"
)

type draftFlags struct {
	MachineryID string
	Start       string
	End         string
	Fuel        bool
	FuelPaidBy  string
}

func (f *draftFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.MachineryID, "machinery", "m", "", "machinery id")
	cmd.Flags().StringVar(&f.Start, "start", "", "first rental day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.End, "end", "", "last rental day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.Fuel, "fuel", false, "include fuel")
	cmd.Flags().StringVar(&f.FuelPaidBy, "fuel-paid-by", "", "who pays fuel: farmer, provider or shared")
	_ = cmd.MarkFlagRequired("machinery")
}

func (f *draftFlags) draft() domain.RequestDraft {
	return domain.RequestDraft{
		MachineryID:  f.MachineryID,
		StartDate:    f.Start,
		EndDate:      f.End,
		FuelIncluded: f.Fuel,
		FuelPaidBy:   models.FuelPayer(f.FuelPaidBy),
	}
}

// NewQuoteCommand prices a rental without creating it.
func NewQuoteCommand(opts *RootOptions) *cobra.Command {
	flags := &draftFlags{}
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a rental without booking it",
		Example: `  farmrent quote -m tractor-1 --start 2025-06-10 --end 2025-06-12
  farmrent quote -m tractor-1 --start 2025-06-10 --end 2025-06-12 --fuel --fuel-paid-by shared`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWindow(cmd, func(ctx context.Context, _ *app.App, w *session.Window) error {
				draft := flags.draft()
				q, m, err := w.Bookings.Quote(ctx, draft)
				if err != nil {
					return err
				}
				view := quoteView{
					MachineryID:   m.ID,
					MachineryName: m.Name,
					OwnerName:     m.OwnerName,
					StartDate:     draft.StartDate,
					EndDate:       draft.EndDate,
					Quote:         q,
				}
				return opts.formatter(cmd).Success(view, func(out io.Writer) { renderQuote(out, view) })
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

// NewRequestCommand submits a rental request as the --as farmer.
func NewRequestCommand(opts *RootOptions) *cobra.Command {
	flags := &draftFlags{}
	cmd := &cobra.Command{
		Use:     "request",
		Short:   "Submit a rental request as a farmer",
		Example: `  farmrent request --as ravi@example.com -m tractor-1 --start 2025-06-10 --end 2025-06-12 --fuel`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWindow(cmd, func(ctx context.Context, a *app.App, w *session.Window) error {
				farmer, err := opts.actor(ctx, a)
				if err != nil {
					return err
				}
				req, err := w.Bookings.Create(ctx, flags.draft(), farmer)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(req, func(out io.Writer) { renderRequest(out, req) })
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

type transitionSpec struct {
	use   string
	short string
	run   func(w *session.Window) func(ctx context.Context, id string, actor models.Identity) (*models.RentalRequest, error)
}

// NewTransitionCommands returns accept, reject, complete and cancel.
func NewTransitionCommands(opts *RootOptions) []*cobra.Command {
	specs := []transitionSpec{
		{"accept <request-id>", "Accept a pending request as its provider", func(w *session.Window) func(context.Context, string, models.Identity) (*models.RentalRequest, error) {
			return w.Bookings.Accept
		}},
		{"reject <request-id>", "Reject a pending request as its provider", func(w *session.Window) func(context.Context, string, models.Identity) (*models.RentalRequest, error) {
			return w.Bookings.Reject
		}},
		{"complete <request-id>", "Mark a confirmed rental as completed", func(w *session.Window) func(context.Context, string, models.Identity) (*models.RentalRequest, error) {
			return w.Bookings.Complete
		}},
		{"cancel <request-id>", "Cancel a confirmed rental", func(w *session.Window) func(context.Context, string, models.Identity) (*models.RentalRequest, error) {
			return w.Bookings.Cancel
		}},
	}

	cmds := make([]*cobra.Command, 0, len(specs))
	for _, spec := range specs {
		cmds = append(cmds, &cobra.Command{
			Use:   spec.use,
			Short: spec.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withWindow(cmd, func(ctx context.Context, a *app.App, w *session.Window) error {
					actor, err := opts.actor(ctx, a)
					if err != nil {
						return err
					}
					req, err := spec.run(w)(ctx, args[0], actor)
					if err != nil {
						return err
					}
					return opts.formatter(cmd).Success(req, func(out io.Writer) { renderRequest(out, req) })
				})
			},
		})
	}
	return cmds
}

func NewDisputeCommand(opts *RootOptions) *cobra.Command {
	var details string
	cmd := &cobra.Command{
		Use:   "dispute <request-id>",
		Short: "Report a dispute on a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWindow(cmd, func(ctx context.Context, a *app.App, w *session.Window) error {
				actor, err := opts.actor(ctx, a)
				if err != nil {
					return err
				}
				req, err := w.Bookings.ReportDispute(ctx, args[0], actor, details)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(req, func(out io.Writer) { renderRequest(out, req) })
			})
		},
	}
	cmd.Flags().StringVarP(&details, "details", "d", "", "what went wrong")
	return cmd
}

func NewAgreementCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agreement <request-id>",
		Short: "Print the rental agreement of a confirmed request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWindow(cmd, func(ctx context.Context, a *app.App, w *session.Window) error {
				req, err := w.Request(ctx, args[0])
				if err != nil {
					return err
				}
				cert, err := a.Issuer.Certificate(req)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(cert, func(out io.Writer) { renderCertificate(out, cert) })
			})
		},
	}
}
