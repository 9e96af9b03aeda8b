package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ethioshop.com/app/internal/modules/products"
	"ethioshop.com/app/internal/shared/slug"
)

func productsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Catalog maintenance",
	}

	var in products.CreateInput
	var price string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a product to the catalog",
		Long: `Add a product to the catalog.

Examples:
  shopctl products add --vendor v-1 --name "Jebena" --sku JEB-01 --price 450 --stock 20
  shopctl products add --vendor v-1 --name "Yirgacheffe Coffee 1kg" --price 1200 --stock 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := decimal.NewFromString(price)
			if err != nil || !p.IsPositive() {
				return fmt.Errorf("invalid --price %q", price)
			}
			in.Price = p
			in.Currency = strings.ToUpper(in.Currency)
			if in.SKU == "" {
				in.SKU = slug.SKU(in.Name)
			}

			a, done, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			created, err := products.NewRepo(a.DB).Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", created.ID, created.SKU)
			return nil
		},
	}
	add.Flags().StringVar(&in.VendorID, "vendor", "", "vendor id")
	add.Flags().StringVar(&in.Name, "name", "", "product name")
	add.Flags().StringVar(&in.SKU, "sku", "", "unique stock keeping unit (derived from the name when empty)")
	add.Flags().StringVar(&in.Description, "description", "", "description")
	add.Flags().StringVar(&price, "price", "", "unit price, e.g. 450.00")
	add.Flags().StringVar(&in.Currency, "currency", "ETB", "price currency")
	add.Flags().IntVar(&in.Stock, "stock", 0, "units on hand")
	for _, f := range []string{"vendor", "name", "price"} {
		_ = add.MarkFlagRequired(f)
	}

	cmd.AddCommand(add, setActiveCmd("activate", true), setActiveCmd("deactivate", false))
	return cmd
}

// setActiveCmd toggles whether a product can be ordered. Existing orders keep
// their captured line items.
func setActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <product-id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			if err := products.NewRepo(a.DB).SetActive(cmd.Context(), args[0], active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %sd\n", args[0], use)
			return nil
		},
	}
}
