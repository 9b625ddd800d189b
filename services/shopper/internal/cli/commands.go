package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/domain"
	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/view"
)

func (s *session) addCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "add <store> <name> <price>",
		Short:   "Add an item to a store's basket",
		Example: `  shopper add Asda "Yorkshire Tea 80" 2.50`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := s.state.Add(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added %s (%s) to %s basket as %s\n\n",
				item.Name, domain.FormatPrice(item.Price), item.Store, item.ItemID)
			fmt.Fprintln(out, s.state.RenderStore(item.Store))
			return nil
		},
	}
}

func (s *session) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <item-id>...",
		Short: "Remove items from the basket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// A failed remove must not cancel its siblings.
			var g errgroup.Group
			ctx := cmd.Context()
			for _, id := range args {
				g.Go(func() error {
					return s.state.Remove(ctx, id)
				})
			}
			err := g.Wait()

			out := cmd.OutOrStdout()
			if err == nil {
				fmt.Fprintf(out, "Removed %d item(s)\n\n", len(args))
			}
			fmt.Fprint(out, s.state.Render())
			return err
		},
	}
}

func (s *session) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [store]",
		Short: "Show the basket tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				fmt.Fprint(out, s.state.Render())
				return nil
			}
			store, err := domain.ParseStore(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, s.state.RenderStore(store))
			return nil
		},
	}
}

func (s *session) totalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "total [store]",
		Short: "Print the local total for each store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := storesFromArgs(args)
			if err != nil {
				return err
			}
			for _, st := range stores {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", st, totalLine(s.state.Table(st)))
			}
			return nil
		},
	}
}

func (s *session) verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [store]",
		Short: "Compare local totals with the server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := storesFromArgs(args)
			if err != nil {
				return err
			}
			var errs []error
			for _, st := range stores {
				if err := s.state.Verify(cmd.Context(), string(st)); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s matches server\n", st, s.state.Table(st).TotalText())
			}
			return errors.Join(errs...)
		},
	}
}

func (s *session) syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replace the local basket with the server's",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.state.Sync(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Synced %d item(s)\n\n", len(s.state.Items()))
			fmt.Fprint(out, s.state.Render())
			return nil
		},
	}
}

func (s *session) emptyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "empty",
		Short: "Remove every item from the basket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.state.Empty(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Basket emptied")
			return nil
		},
	}
}

func storesFromArgs(args []string) ([]domain.Store, error) {
	if len(args) == 0 {
		return domain.Stores, nil
	}
	st, err := domain.ParseStore(args[0])
	if err != nil {
		return nil, err
	}
	return []domain.Store{st}, nil
}

// totalLine shows the placeholder in place of a zero total.
func totalLine(t view.Table) string {
	if t.PlaceholderVisible() {
		return view.EmptyBasketText
	}
	return t.TotalText()
}
