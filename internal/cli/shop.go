package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/spf13/cobra"
)

func (c *cli) productsCommand() *cobra.Command {
	var q domain.ProductQuery
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := c.app.Catalog.Products(cmd.Context(), q)
			if err != nil {
				return err
			}
			return c.printer().print(page, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK\tRATING")
				for _, p := range page.Products {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1f (%d)\n",
						p.ID, p.Name, p.Category, domain.FormatPrice(p.Price), stockLabel(p.Stock), p.Ratings.Average, p.Ratings.Count)
				}
				pageFooter(w, page.CurrentPage, page.TotalPages, page.Total)
			})
		},
	}
	cmd.Flags().StringVar(&q.Search, "search", "", "search text")
	cmd.Flags().StringVar(&q.Category, "category", "all", "category filter")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.Limit, "limit", 12, "products per page")
	return cmd
}

func stockLabel(stock int) string {
	if stock <= 0 {
		return "out of stock"
	}
	return strconv.Itoa(stock)
}

func (c *cli) productCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "product <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.app.Catalog.Product(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printer().print(p, func(w io.Writer) {
				fmt.Fprintf(w, "%s\n\n", p.Name)
				fmt.Fprintf(w, "Price:\t%s\n", domain.FormatPrice(p.Price))
				fmt.Fprintf(w, "Category:\t%s\n", p.Category)
				fmt.Fprintf(w, "Stock:\t%s\n", stockLabel(p.Stock))
				fmt.Fprintf(w, "Rating:\t%.1f (%d reviews)\n", p.Ratings.Average, p.Ratings.Count)
				if p.Description != "" {
					fmt.Fprintf(w, "\n%s\n", c.app.Catalog.PlainText(p.Description))
				}
			})
		},
	}
}

func (c *cli) cartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show or change the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.printCart()
		},
	}

	var qty int
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product, capped at its stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := c.app.Catalog.AddToCart(cmd.Context(), args[0], qty)
			if err != nil {
				return err
			}
			return c.printer().message("%s: %d in cart", line.Name, line.Quantity)
		},
	}
	add.Flags().IntVar(&qty, "qty", 1, "quantity to add")

	set := &cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Set a line's quantity; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			if err := c.app.Cart.SetQuantity(cmd.Context(), args[0], n); err != nil {
				return err
			}
			return c.printCart()
		},
	}

	remove := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Cart.RemoveLine(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.printCart()
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Cart.Clear(cmd.Context()); err != nil {
				return err
			}
			return c.printer().message("Cart cleared")
		},
	}

	cmd.AddCommand(add, set, remove, clearCmd)
	return cmd
}

func (c *cli) printCart() error {
	snap := c.app.Cart.Snapshot()
	return c.printer().print(snap, func(w io.Writer) {
		if snap.IsEmpty() {
			fmt.Fprintln(w, "Your cart is empty")
			return
		}
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tQTY\tSUBTOTAL")
		for _, l := range snap.Lines {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				l.ProductID, l.Name, domain.FormatPrice(l.UnitPrice), l.Quantity, domain.FormatPrice(l.Subtotal()))
		}
		fmt.Fprintf(w, "\nItems:\t%d\n", c.app.Cart.TotalItemCount())
		fmt.Fprintf(w, "Total:\t%s\n", domain.FormatPrice(snap.TotalPrice))
	})
}

func (c *cli) checkoutCommand() *cobra.Command {
	var addr domain.ShippingAddress
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart and pay for it",
		Long: `Place an order for the cart and pay for it.

The payment page is served locally; open the printed address in a browser and
complete or dismiss the payment there. The cart is emptied only after the
payment has been verified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			receipt, err := c.app.PlaceOrder(cmd.Context(), addr)
			if err != nil {
				return errors.New(checkout.UserMessage(err))
			}
			return c.printer().print(receipt, func(w io.Writer) {
				fmt.Fprintln(w, "Payment successful!")
				fmt.Fprintf(w, "Order:\t%s\n", receipt.OrderID)
				fmt.Fprintf(w, "Total:\t%s\n", domain.FormatPrice(receipt.TotalAmount))
				fmt.Fprintf(w, "Payment:\t%s\n", receipt.PaymentID)
			})
		},
	}
	cmd.Flags().StringVar(&addr.Street, "street", "", "street address")
	cmd.Flags().StringVar(&addr.City, "city", "", "city")
	cmd.Flags().StringVar(&addr.State, "state", "", "state")
	cmd.Flags().StringVar(&addr.ZipCode, "zip", "", "ZIP or PIN code")
	cmd.Flags().StringVar(&addr.Country, "country", domain.DefaultCountry, "country")
	return cmd
}

func (c *cli) ordersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			orders, err := c.app.Catalog.MyOrders(cmd.Context())
			if err != nil {
				return err
			}
			return c.printer().print(orders, func(w io.Writer) { orderTable(w, orders, false) })
		},
	}
}

func (c *cli) orderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "order <id>",
		Short: "Show one of your orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			o, err := c.app.Catalog.Order(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printer().print(o, func(w io.Writer) { orderDetail(w, o) })
		},
	}
}

func orderTable(w io.Writer, orders []domain.Order, withCustomer bool) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders found")
		return
	}
	if withCustomer {
		fmt.Fprintln(w, "ORDER\tCUSTOMER\tDATE\tTOTAL\tSTATUS\tPAYMENT")
	} else {
		fmt.Fprintln(w, "ORDER\tDATE\tTOTAL\tSTATUS\tPAYMENT")
	}
	for _, o := range orders {
		date := o.CreatedAt.Format("2006-01-02")
		if withCustomer {
			fmt.Fprintf(w, "#%s\t%s\t%s\t%s\t%s\t%s\n",
				o.ShortID(), o.CustomerName(), date, domain.FormatPrice(o.TotalAmount), o.Status.Label(), o.PaymentStatus.Label())
			continue
		}
		fmt.Fprintf(w, "#%s\t%s\t%s\t%s\t%s\n",
			o.ShortID(), date, domain.FormatPrice(o.TotalAmount), o.Status.Label(), o.PaymentStatus.Label())
	}
}

func orderDetail(w io.Writer, o *domain.Order) {
	fmt.Fprintf(w, "Order #%s\n\n", o.ShortID())
	fmt.Fprintf(w, "Placed:\t%s\n", o.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Status:\t%s\n", o.Status.Label())
	fmt.Fprintf(w, "Payment:\t%s\n", o.PaymentStatus.Label())
	a := o.ShippingAddress
	fmt.Fprintf(w, "Ship to:\t%s, %s, %s %s, %s\n\n", a.Street, a.City, a.State, a.ZipCode, a.Country)
	fmt.Fprintln(w, "ITEM\tQTY\tPRICE")
	for _, it := range o.Items {
		fmt.Fprintf(w, "%s\t%d\t%s\n", it.ProductName(), it.Quantity, domain.FormatPrice(it.Price))
	}
	fmt.Fprintf(w, "\nTotal:\t\t%s\n", domain.FormatPrice(o.TotalAmount))
}
