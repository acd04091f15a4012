package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/spf13/cobra"
)

func (c *cli) adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Back-office commands; requires an admin session",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd, args); err != nil {
				return err
			}
			return c.requireSession()
		},
	}
	cmd.AddCommand(
		c.adminDashboardCommand(),
		c.adminProductsCommand(),
		c.adminCreateProductCommand(),
		c.adminUpdateProductCommand(),
		c.adminDeleteProductCommand(),
		c.adminOrdersCommand(),
		c.adminOrderStatusCommand(),
		c.adminPaymentsCommand(),
		c.adminUsersCommand(),
	)
	return cmd
}

func (c *cli) adminDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show store totals, recent orders and top products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := c.app.Admin.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			return c.printer().print(d, func(w io.Writer) {
				fmt.Fprintf(w, "Products:\t%d\n", d.Stats.TotalProducts)
				fmt.Fprintf(w, "Orders:\t%d\n", d.Stats.TotalOrders)
				fmt.Fprintf(w, "Users:\t%d\n", d.Stats.TotalUsers)
				fmt.Fprintf(w, "Revenue:\t%s\n\n", domain.FormatPrice(d.Stats.TotalRevenue))
				orderTable(w, d.RecentOrders, true)
				if len(d.TopProducts) > 0 {
					fmt.Fprintln(w, "\nTOP PRODUCT\tSOLD\tREVENUE")
					for _, tp := range d.TopProducts {
						fmt.Fprintf(w, "%s\t%d\t%s\n", tp.Name(), tp.TotalSold, domain.FormatPrice(tp.TotalRevenue))
					}
				}
			})
		},
	}
}

func (c *cli) adminProductsCommand() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List every product, including inactive ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.Admin.Products(cmd.Context(), page)
			if err != nil {
				return err
			}
			return c.printer().print(res, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK\tACTIVE")
				for _, p := range res.Products {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\n", p.ID, p.Name, p.Category, domain.FormatPrice(p.Price), p.Stock, p.IsActive)
				}
				pageFooter(w, res.CurrentPage, res.TotalPages, res.Total)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func bindProductFlags(cmd *cobra.Command, in *domain.ProductInput) {
	cmd.Flags().StringVar(&in.Name, "name", "", "product name")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().Float64Var(&in.Price, "price", 0, "unit price")
	cmd.Flags().StringVar(&in.Category, "category", "", "one of "+strings.Join(domain.Categories, ", "))
	cmd.Flags().StringVar(&in.Image, "image", "", "image URL")
	cmd.Flags().IntVar(&in.Stock, "stock", 0, "units in stock")
}

func (c *cli) adminCreateProductCommand() *cobra.Command {
	var in domain.ProductInput
	cmd := &cobra.Command{
		Use:   "create-product",
		Short: "Add a product to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := c.app.Admin.CreateProduct(cmd.Context(), in)
			if err != nil {
				return err
			}
			return c.printer().print(p, func(w io.Writer) {
				fmt.Fprintf(w, "Created product %s (%s)\n", p.Name, p.ID)
			})
		},
	}
	bindProductFlags(cmd, &in)
	return cmd
}

func (c *cli) adminUpdateProductCommand() *cobra.Command {
	var in domain.ProductInput
	cmd := &cobra.Command{
		Use:   "update-product <id>",
		Short: "Change a product; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := c.app.API.GetProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			merged := domain.ProductInput{
				Name:        current.Name,
				Description: current.Description,
				Price:       current.Price,
				Category:    current.Category,
				Image:       current.Image,
				Stock:       current.Stock,
			}
			flags := cmd.Flags()
			if flags.Changed("name") {
				merged.Name = in.Name
			}
			if flags.Changed("description") {
				merged.Description = in.Description
			}
			if flags.Changed("price") {
				merged.Price = in.Price
			}
			if flags.Changed("category") {
				merged.Category = in.Category
			}
			if flags.Changed("image") {
				merged.Image = in.Image
			}
			if flags.Changed("stock") {
				merged.Stock = in.Stock
			}

			p, err := c.app.Admin.UpdateProduct(cmd.Context(), args[0], merged)
			if err != nil {
				return err
			}
			return c.printer().print(p, func(w io.Writer) {
				fmt.Fprintf(w, "Updated product %s (%s)\n", p.Name, p.ID)
			})
		},
	}
	bindProductFlags(cmd, &in)
	return cmd
}

func (c *cli) adminDeleteProductCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-product <id>",
		Short: "Remove a product from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Admin.DeleteProduct(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.printer().message("Deleted product %s", args[0])
		},
	}
}

func (c *cli) adminOrdersCommand() *cobra.Command {
	var (
		page   int
		status string
	)
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List orders, optionally by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.Admin.Orders(cmd.Context(), page, status)
			if err != nil {
				return err
			}
			return c.printer().print(res, func(w io.Writer) {
				orderTable(w, res.Orders, true)
				pageFooter(w, res.CurrentPage, res.TotalPages, res.Total)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().StringVar(&status, "status", "all", "order status filter")
	return cmd
}

func (c *cli) adminOrderStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "order-status <id> <status>",
		Short: "Move an order to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := c.app.Admin.UpdateOrderStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.printer().print(o, func(w io.Writer) {
				fmt.Fprintf(w, "Order #%s is now %s\n", o.ShortID(), o.Status.Label())
			})
		},
	}
}

func (c *cli) adminPaymentsCommand() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "List payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.Admin.Payments(cmd.Context(), page)
			if err != nil {
				return err
			}
			return c.printer().print(res, func(w io.Writer) {
				fmt.Fprintln(w, "PAYMENT\tCUSTOMER\tAMOUNT\tSTATUS\tDATE")
				for _, p := range res.Payments {
					customer := "Unknown User"
					if p.User != nil && p.User.Name != "" {
						customer = p.User.Name
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						p.GatewayPaymentID, customer, domain.FormatPrice(p.Amount), p.Status.Label(), p.CreatedAt.Format("2006-01-02"))
				}
				pageFooter(w, res.CurrentPage, res.TotalPages, res.Total)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func (c *cli) adminUsersCommand() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.Admin.Users(cmd.Context(), page)
			if err != nil {
				return err
			}
			return c.printer().print(res, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tVERIFIED")
				for _, u := range res.Users {
					role := "user"
					if u.IsAdmin {
						role = "admin"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Name, u.Email, role, u.IsVerified)
				}
				pageFooter(w, res.CurrentPage, res.TotalPages, res.Total)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}
