package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/rocketstart-api/internal/client/authdata"
	"github.com/FACorreiaa/rocketstart-api/internal/navigation"
	"github.com/FACorreiaa/rocketstart-api/internal/routeguard"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

type resolveOptions struct {
	signedIn       bool
	loaded         bool
	subscriber     bool
	onboarded      bool
	paymentSuccess bool
	path           string
	asJSON         bool
}

type resolveOutput struct {
	State       navigation.State    `json:"state"`
	Outcome     routeguard.Outcome  `json:"outcome"`
	Skeleton    routeguard.Skeleton `json:"skeleton,omitempty"`
	Redirect    string              `json:"redirect,omitempty"`
	Destination string              `json:"destination,omitempty"`
}

// newResolveCmd prints the route guard decision for a described user, which is
// the quickest way to explain a redirect loop.
func newResolveCmd() *cobra.Command {
	opts := &resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Explain the navigation decision for a user and path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var user *types.Identity
			var data *authdata.AuthData
			if opts.signedIn {
				user = &types.Identity{UserID: uuid.Nil}
				if opts.loaded {
					data = &authdata.AuthData{
						User:                   user,
						IsSubscriber:           opts.subscriber,
						HasCompletedOnboarding: opts.onboarded,
					}
				}
			}
			query := url.Values{}
			if opts.paymentSuccess {
				query.Set(navigation.PaymentSuccessParam, "true")
			}

			d := routeguard.Decide(user, data, opts.path, query)
			out := resolveOutput{
				State:       d.State,
				Outcome:     d.Outcome,
				Skeleton:    d.Skeleton,
				Redirect:    d.Redirect,
				Destination: navigation.Destination(d.State),
			}

			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "state:    %s\n", out.State)
			fmt.Fprintf(w, "render:   %s\n", out.Outcome)
			if out.Skeleton != "" {
				fmt.Fprintf(w, "skeleton: %s\n", out.Skeleton)
			}
			if out.Redirect != "" {
				fmt.Fprintf(w, "redirect: %s\n", out.Redirect)
			}
			_, err := fmt.Fprintf(w, "landing:  %s\n", out.Destination)
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.signedIn, "signed-in", false, "the user has a session")
	cmd.Flags().BoolVar(&opts.loaded, "loaded", true, "auth data is cached for the user")
	cmd.Flags().BoolVar(&opts.subscriber, "subscriber", false, "the user has an active subscription")
	cmd.Flags().BoolVar(&opts.onboarded, "onboarded", false, "the user finished onboarding")
	cmd.Flags().BoolVar(&opts.paymentSuccess, "payment-success", false, "the request carries the payment_success flag")
	cmd.Flags().StringVar(&opts.path, "path", navigation.PathDashboard, "requested page path")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")
	return cmd
}
