package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func finalizeCmd(open opener) *cobra.Command {
	var org, tx string
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Finalize a pending transaction",
		Long: `Finalize a pending transaction the way the payment webhook would.

The sale is signed when the organization has an active TSE and completed
unsigned otherwise.  Running it twice is harmless.

Examples:
  posctl finalize --org org-1 --tx txn_9`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if org == "" || tx == "" {
				return errors.New("--org and --tx are required")
			}
			b, closeFn, err := open()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := b.Finalize(cmd.Context(), tx, org)
			if err != nil {
				return fmt.Errorf("finalize %s: %w", tx, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", tx, res.Outcome, res.Reason)
			return nil
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization id")
	cmd.Flags().StringVar(&tx, "tx", "", "transaction id")
	return cmd
}

func resignCmd(open opener) *cobra.Command {
	var (
		org, tx string
		all     bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "resign",
		Short: "Sign completed transactions that have no signature",
		Long: `Sign completed transactions that were finalized while the TSE was
unreachable.  Either one transaction (--tx) or the oldest unsigned ones of
the organization (--all) are processed.

Examples:
  posctl resign --org org-1 --tx txn_9
  posctl resign --org org-1 --all --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if org == "" {
				return errors.New("--org is required")
			}
			if (tx == "") == !all {
				return errors.New("exactly one of --tx and --all is required")
			}
			b, closeFn, err := open()
			if err != nil {
				return err
			}
			defer closeFn()

			if all {
				n, err := b.ResignAll(cmd.Context(), org, limit)
				fmt.Fprintf(cmd.OutOrStdout(), "signed %d transactions\n", n)
				return err
			}
			res, err := b.Resign(cmd.Context(), tx, org)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", tx, res.Outcome, res.Reason)
			return nil
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization id")
	cmd.Flags().StringVar(&tx, "tx", "", "transaction id")
	cmd.Flags().BoolVar(&all, "all", false, "re-sign all unsigned transactions of the organization")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum transactions with --all")
	return cmd
}

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, closeFn, err := open()
			if err != nil {
				return err
			}
			defer closeFn()
			if err := b.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
