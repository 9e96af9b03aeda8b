package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Order maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "expire",
		Short: "Cancel unpaid orders older than ORDER_PENDING_TTL and restock them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			n, err := a.Expirer.ExpireStale(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d orders\n", n)
			return nil
		},
	})
	return cmd
}
