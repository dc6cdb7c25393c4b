package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quickbites/storefront/internal/cli/authflow"
	"github.com/quickbites/storefront/internal/cli/client"
	"github.com/quickbites/storefront/internal/cli/csrf"
	"github.com/quickbites/storefront/internal/cli/ui"
)

// NewItemsCmd creates the items command
func NewItemsCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List the featured, trending, popular and special items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(load, runItems)(cmd.Context())
		},
	}
}

func runItems(ctx context.Context, env *Env) error {
	token, err := env.CSRF.Token(ctx)
	if err != nil {
		msg := authflow.MsgNetwork
		if errors.Is(err, csrf.ErrUnavailable) {
			msg = authflow.MsgCSRFUnavailable
		}
		env.UI.Notify(ui.Error(msg))
		return &reportedError{err: err}
	}

	items, err := env.API.ItemsByTags(ctx, token, env.Sessions.Token())
	if err != nil {
		if client.KindOf(err) == client.KindSessionExpired {
			if err := env.Sessions.Expire(); err != nil {
				env.Log.Warn().Err(err).Msg("Failed to clear expired session")
			}
			env.UI.Announce(ui.Error(authflow.MsgSessionExpired), ui.RouteLogin)
			return &reportedError{err: err}
		}
		return fmt.Errorf("failed to fetch items: %w", err)
	}

	sections := []struct {
		tag   string
		items []client.Item
	}{
		{"Featured", items.Featured},
		{"Trending", items.Trending},
		{"Popular", items.Popular},
		{"Special", items.Special},
	}

	total := 0
	for _, s := range sections {
		total += len(s.items)
	}
	if total == 0 {
		fmt.Fprintln(env.Out, "No items found")
		return nil
	}

	w := tabwriter.NewWriter(env.Out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TAG\tNAME\tPRICE")
	for _, s := range sections {
		for _, item := range s.items {
			fmt.Fprintf(w, "%s\t%s\t%.2f\n", s.tag, item.Name, item.Price)
		}
	}
	return w.Flush()
}
