package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

// Dataset is the file format accepted by the load command.
type Dataset struct {
	Orders       []OrderRow       `json:"orders" validate:"dive"`
	Requirements []RequirementRow `json:"requirements" validate:"dive"`
	Stock        []StockRow       `json:"stock" validate:"dive"`
}

type OrderRow struct {
	ID     int64   `json:"id" validate:"gt=0"`
	Number string  `json:"number" validate:"required"`
	Status string  `json:"status" validate:"oneof=new in_progress completed archived"`
	System *string `json:"system,omitempty"`
}

type RequirementRow struct {
	OrderID    int64  `json:"order_id" validate:"gt=0"`
	Material   string `json:"material" validate:"oneof=profiles steel hardware"`
	ArticleID  int64  `json:"article_id" validate:"gt=0"`
	ArticleRef string `json:"article_ref" validate:"required"`
	ColorID    *int64 `json:"color_id,omitempty" validate:"omitempty,gte=0"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
	Status     string `json:"status" validate:"omitempty,oneof=pending confirmed completed"`
}

type StockRow struct {
	Material      string `json:"material" validate:"oneof=profiles steel hardware"`
	ArticleID     int64  `json:"article_id" validate:"gt=0"`
	ColorID       int64  `json:"color_id" validate:"gte=0"`
	WarehouseType string `json:"warehouse_type" validate:"omitempty,oneof=alu pvc"`
	SubWarehouse  string `json:"sub_warehouse"`
	Quantity      int    `json:"quantity" validate:"gte=0"`
	MinQuantity   *int   `json:"min_quantity,omitempty" validate:"omitempty,gte=0"`
	MaxQuantity   *int   `json:"max_quantity,omitempty" validate:"omitempty,gte=0"`
}

type loadOptions struct {
	*RootOptions
	File string
}

func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &loadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load orders, requirement lines and stock from a JSON file",
		Long: "Writes the orders, requirement lines and stock records of a dataset file.\n" +
			"Orders are upserted; requirement lines and stock records are inserted.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "dataset file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func readDataset(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validator.New().Struct(&ds); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}
	for i, s := range ds.Stock {
		if domain.Material(s.Material) == domain.MaterialHardware && s.WarehouseType == "" {
			return nil, fmt.Errorf("invalid dataset: stock[%d] is hardware without a warehouse_type", i)
		}
	}
	return &ds, nil
}

func runLoad(opts *loadOptions, cmd *cobra.Command) error {
	ds, err := readDataset(opts.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "read dataset", err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, o := range ds.Orders {
		order := domain.Order{ID: o.ID, Number: o.Number, Status: domain.OrderStatus(o.Status), System: o.System}
		if err := a.Store.SaveOrder(ctx, order); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("order %d", o.ID), err)
		}
	}
	for _, r := range ds.Requirements {
		line := domain.RequirementLine{
			OrderID:          r.OrderID,
			Material:         domain.Material(r.Material),
			ArticleID:        r.ArticleID,
			ArticleRef:       r.ArticleRef,
			ColorID:          r.ColorID,
			QuantityDemanded: r.Quantity,
			Status:           domain.LineStatus(r.Status),
		}
		if _, err := a.Store.AddRequirement(ctx, line); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("requirement %s of order %d", r.ArticleRef, r.OrderID), err)
		}
	}
	for _, s := range ds.Stock {
		rec := domain.StockRecord{
			Scope: domain.ScopeKey{
				Material:      domain.Material(s.Material),
				ArticleID:     s.ArticleID,
				ColorID:       s.ColorID,
				WarehouseType: s.WarehouseType,
				SubWarehouse:  s.SubWarehouse,
			},
			CurrentQuantity: s.Quantity,
			MinQuantity:     s.MinQuantity,
			MaxQuantity:     s.MaxQuantity,
		}
		if _, err := a.Store.AddStock(ctx, rec); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("stock %s", rec.Scope), err)
		}
	}

	out := cmd.OutOrStdout()
	counts := map[string]int{"orders": len(ds.Orders), "requirements": len(ds.Requirements), "stock": len(ds.Stock)}
	if opts.Format == "json" {
		return writeJSON(out, counts)
	}
	fmt.Fprintf(out, "loaded %d orders, %d requirement lines, %d stock records\n",
		counts["orders"], counts["requirements"], counts["stock"])
	return nil
}
