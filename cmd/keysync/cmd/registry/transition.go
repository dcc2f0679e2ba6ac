package registry

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/agentstation/keysync/internal/appcontext"
	"github.com/agentstation/keysync/internal/cmd/output"
	"github.com/agentstation/keysync/internal/cmd/table"
	"github.com/agentstation/keysync/pkg/provision"
)

type transitionFunc func(ctx context.Context, masterKey string) (provision.Entry, error)

type transitioner interface {
	Activate(ctx context.Context, masterKey string) (provision.Entry, error)
	Deprecate(ctx context.Context, masterKey string) (provision.Entry, error)
}

// newTransitionCommand builds activate and deprecate. Every key is
// attempted; failures are reported together after the successful ones are
// printed.
func newTransitionCommand(app appcontext.Interface, use, short string, pick func(transitioner) transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <master-key>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.Logger()
			r, err := app.Reconciler(app.ReconcilerConfig())
			if err != nil {
				return err
			}
			apply := pick(r)

			var (
				done []provision.Entry
				errs []error
			)
			for _, mk := range args {
				e, err := apply(cmd.Context(), mk)
				if err != nil {
					logger.Warn().Err(err).Str("master_key", mk).Msgf("Could not %s", use)
					errs = append(errs, err)
					continue
				}
				logger.Info().Str("master_key", mk).Str("status", string(e.Status)).Msg("Master key updated")
				done = append(done, e)
			}

			if len(done) > 0 {
				err := output.Print(cmd.OutOrStdout(), output.DetectFormat(app.OutputFormat()), done,
					func(wide bool) table.Data { return table.EntriesToTableData(done, wide) })
				if err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}
