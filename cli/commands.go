// Package cli provides the Cobra-based CLI for the allocation service.
package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"allocation/domain"
	"allocation/service"
	"allocation/store"
	"allocation/util"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rootCmd = &cobra.Command{
		Use:           "allocation",
		Short:         "Allocate order lines to stock batches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// tests inject the store directly
			if batchStore != nil {
				ensureService()
				return nil
			}

			if cfg := viper.GetString("config"); cfg != "" {
				viper.SetConfigFile(cfg)
				if err := viper.ReadInConfig(); err != nil {
					return err
				}
			}

			slog.SetDefault(slog.New(
				slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(viper.GetString("log-level"))}),
			))

			var err error
			batchStore, err = store.NewStore(
				viper.GetString("store"),
				viper.GetString("store-file"),
			)
			if err != nil {
				return err
			}
			ensureService()
			return nil
		},
	}

	batchStore domain.BatchStore
	allocator  *service.AllocationService
)

func ensureService() {
	if allocator == nil {
		allocator = service.New(batchStore, nil, slog.Default())
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// parseLine parses a SKU:QTY pair.
func parseLine(orderID, s string) (domain.OrderLine, error) {
	sku, qtyStr, ok := strings.Cut(s, ":")
	if !ok || sku == "" {
		return domain.OrderLine{}, fmt.Errorf("invalid line %q: want SKU:QTY", s)
	}
	qty, err := strconv.Atoi(qtyStr)
	if err != nil || qty <= 0 {
		return domain.OrderLine{}, fmt.Errorf("invalid line %q: quantity must be a positive integer", s)
	}
	return domain.OrderLine{OrderID: orderID, SKU: sku, Qty: qty}, nil
}

// decodeBatches reads a JSON array, a single JSON object or NDJSON.
func decodeBatches(b []byte) ([]*domain.Batch, error) {
	btrim := bytes.TrimSpace(b)
	if len(btrim) == 0 {
		return nil, errors.New("empty file")
	}

	var batches []*domain.Batch
	if btrim[0] == '[' {
		if err := json.Unmarshal(btrim, &batches); err != nil {
			return nil, err
		}
		return batches, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(btrim))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		b := new(domain.Batch)
		if err := json.Unmarshal(line, b); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func init() {
	// shell
	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := bufio.NewReader(cmd.InOrStdin())
			for {
				fmt.Fprint(cmd.OutOrStdout(), "allocation> ")
				line, err := r.ReadString('\n')
				if err != nil {
					return nil
				}
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					return nil
				}
				rootCmd.SetArgs(strings.Fields(line))
				if err := rootCmd.Execute(); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
				}
				rootCmd.SetArgs(nil)
			}
		},
	}
	rootCmd.AddCommand(shellCmd)

	rootCmd.PersistentFlags().String("store", "memory", "store backend: memory|file|pebble")
	rootCmd.PersistentFlags().String("store-file", "data/batches.json", "file store path or pebble directory")
	rootCmd.PersistentFlags().String("config", "", "config file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level")

	viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("store-file", rootCmd.PersistentFlags().Lookup("store-file"))
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.SetEnvPrefix("ALLOCATION")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// add-batch
	var ref, sku, eta string
	var qty int
	addCmd := &cobra.Command{
		Use:   "add-batch",
		Short: "Add a stock batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sku == "" {
				return errors.New("--sku required")
			}
			batchRef := ref
			if batchRef == "" {
				batchRef = util.NewReference("batch")
			}
			etaTime, err := domain.ParseETA(eta)
			if err != nil {
				return err
			}
			b, err := allocator.AddBatch(cmd.Context(), batchRef, sku, qty, etaTime)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		},
	}
	addCmd.Flags().StringVar(&ref, "ref", "", "batch reference (generated when empty)")
	addCmd.Flags().StringVar(&sku, "sku", "", "sku")
	addCmd.Flags().IntVar(&qty, "qty", 0, "purchased quantity")
	addCmd.Flags().StringVar(&eta, "eta", "", "expected arrival YYYY-MM-DD (empty means in stock)")
	rootCmd.AddCommand(addCmd)

	// get-batch
	getCmd := &cobra.Command{
		Use:   "get-batch <ref>",
		Short: "Get batch by reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := allocator.GetBatch(cmd.Context(), args[0])
			if err != nil {
				if domain.IsBatchNotFoundError(err) {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					return nil
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		},
	}
	rootCmd.AddCommand(getCmd)

	// list-batches
	var lSKU, lOutput string
	listCmd := &cobra.Command{
		Use:   "list-batches",
		Short: "List batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := allocator.ListBatches(cmd.Context(), lSKU)
			if err != nil {
				return err
			}
			if lOutput == "json" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			for _, b := range out {
				arrival := "in-stock"
				if b.ETA != nil {
					arrival = b.ETA.Format(domain.DateLayout)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s | %s | %s | %d/%d\n",
					b.Reference, b.SKU, arrival, b.AvailableQuantity(), b.PurchasedQuantity())
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&lSKU, "sku", "", "only batches for this sku")
	listCmd.Flags().StringVar(&lOutput, "output", "", "output format")
	rootCmd.AddCommand(listCmd)

	// allocate
	var aOrderID, aSKU string
	var aQty int
	allocateCmd := &cobra.Command{
		Use:   "allocate",
		Short: "Allocate an order line to the preferred batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if aSKU == "" || aQty <= 0 {
				return errors.New("--sku and a positive --qty required")
			}
			orderID := aOrderID
			if orderID == "" {
				orderID = util.NewReference("order")
			}
			batchRef, err := allocator.Allocate(cmd.Context(), domain.OrderLine{OrderID: orderID, SKU: aSKU, Qty: aQty})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), batchRef)
			return nil
		},
	}
	allocateCmd.Flags().StringVar(&aOrderID, "order-id", "", "order id (generated when empty)")
	allocateCmd.Flags().StringVar(&aSKU, "sku", "", "sku")
	allocateCmd.Flags().IntVar(&aQty, "qty", 0, "quantity")
	rootCmd.AddCommand(allocateCmd)

	// allocate-order
	var oRef string
	allocateOrderCmd := &cobra.Command{
		Use:   "allocate-order [--order-id <id>] SKU:QTY [SKU:QTY ...]",
		Short: "Allocate every line of an order, or none of them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderRef := oRef
			if orderRef == "" {
				orderRef = util.NewReference("order")
			}
			order := domain.NewOrder(orderRef)
			for _, s := range args {
				line, err := parseLine(orderRef, s)
				if err != nil {
					return err
				}
				order.AddLine(line)
			}
			allocs, err := allocator.AllocateOrder(cmd.Context(), order)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), allocs)
		},
	}
	allocateOrderCmd.Flags().StringVar(&oRef, "order-id", "", "order reference (generated when empty)")
	rootCmd.AddCommand(allocateOrderCmd)

	// deallocate
	var dBatch, dOrderID, dSKU string
	var dQty int
	deallocateCmd := &cobra.Command{
		Use:   "deallocate",
		Short: "Release an order line from a batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dBatch == "" || dOrderID == "" || dSKU == "" {
				return errors.New("--batch, --order-id and --sku required")
			}
			line := domain.OrderLine{OrderID: dOrderID, SKU: dSKU, Qty: dQty}
			if err := allocator.Deallocate(cmd.Context(), dBatch, line); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deallocated")
			return nil
		},
	}
	deallocateCmd.Flags().StringVar(&dBatch, "batch", "", "batch reference")
	deallocateCmd.Flags().StringVar(&dOrderID, "order-id", "", "order id")
	deallocateCmd.Flags().StringVar(&dSKU, "sku", "", "sku")
	deallocateCmd.Flags().IntVar(&dQty, "qty", 0, "quantity")
	rootCmd.AddCommand(deallocateCmd)

	// import
	var importFile string
	importCmd := &cobra.Command{
		Use:   "import --file <file>",
		Short: "Import batches from JSON or NDJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if importFile == "" {
				return errors.New("--file required")
			}
			b, err := os.ReadFile(importFile)
			if err != nil {
				return err
			}
			batches, err := decodeBatches(b)
			if err != nil {
				return err
			}
			return allocator.ImportBatches(cmd.Context(), batches)
		},
	}
	importCmd.Flags().StringVar(&importFile, "file", "", "input file")
	rootCmd.AddCommand(importCmd)

	// export
	var exportFile, exportSKU string
	exportCmd := &cobra.Command{
		Use:   "export --file <file>",
		Short: "Export batches to JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if exportFile == "" {
				return errors.New("--file required")
			}
			out, err := allocator.ListBatches(cmd.Context(), exportSKU)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			return os.WriteFile(exportFile, b, 0o644)
		},
	}
	exportCmd.Flags().StringVar(&exportFile, "file", "", "output file")
	exportCmd.Flags().StringVar(&exportSKU, "sku", "", "sku")
	rootCmd.AddCommand(exportCmd)

	rootCmd.AddCommand(newServeCmd())
}

// Execute runs the root command and closes the store afterwards.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext is Execute with a caller supplied context.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if c, ok := batchStore.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
		batchStore = nil
		allocator = nil
	}
	return err
}
