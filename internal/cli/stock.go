package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/core/service"
)

type adjustOptions struct {
	*RootOptions
	Material        string
	ArticleID       int64
	ColorID         int64
	WarehouseType   string
	SubWarehouse    string
	Quantity        int
	ExpectedVersion int
	ActorID         int64
	Reason          string
}

func NewAdjustCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &adjustOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Set the quantity of one stock record",
		Long: "Overwrites the on-hand quantity of a stock record, for stocktakes and corrections.\n" +
			"--expected-version must match the record's current version.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdjust(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Material, "material", "", "profiles, steel or hardware (required)")
	cmd.Flags().Int64Var(&opts.ArticleID, "article", 0, "article ID (required)")
	cmd.Flags().Int64Var(&opts.ColorID, "color", domain.DefaultColorID, "color ID, profiles only")
	cmd.Flags().StringVar(&opts.WarehouseType, "warehouse-type", "", "alu or pvc, hardware only")
	cmd.Flags().StringVar(&opts.SubWarehouse, "sub-warehouse", "", "hardware sub-warehouse, empty for the main one")
	cmd.Flags().IntVar(&opts.Quantity, "quantity", 0, "new on-hand quantity (required)")
	cmd.Flags().IntVar(&opts.ExpectedVersion, "expected-version", 0, "version the correction was read at")
	cmd.Flags().Int64Var(&opts.ActorID, "actor", 0, "user ID recorded on the history entry")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "reason stored on the history entry (required)")
	_ = cmd.MarkFlagRequired("material")
	_ = cmd.MarkFlagRequired("article")
	_ = cmd.MarkFlagRequired("quantity")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func (o *adjustOptions) scope() (domain.ScopeKey, error) {
	material, err := domain.ParseMaterial(o.Material)
	if err != nil {
		return domain.ScopeKey{}, err
	}
	scope := domain.ScopeKey{Material: material, ArticleID: o.ArticleID}
	switch material {
	case domain.MaterialProfiles:
		scope.ColorID = o.ColorID
	case domain.MaterialHardware:
		if o.WarehouseType != domain.WarehouseAlu && o.WarehouseType != domain.WarehousePVC {
			return domain.ScopeKey{}, fmt.Errorf("hardware needs --warehouse-type alu or pvc, got %q", o.WarehouseType)
		}
		scope.WarehouseType = o.WarehouseType
		scope.SubWarehouse = o.SubWarehouse
	}
	return scope, nil
}

func runAdjust(opts *adjustOptions, cmd *cobra.Command) error {
	scope, err := opts.scope()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid stock scope", err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.Stock.Adjust(ctx, service.AdjustRequest{
		Scope:           scope,
		Quantity:        opts.Quantity,
		ExpectedVersion: opts.ExpectedVersion,
		ActorID:         actorPtr(opts.ActorID),
		Reason:          opts.Reason,
	})
	if err != nil {
		code := ExitFailure
		if errors.Is(err, service.ErrStockNotFound) || errors.Is(err, service.ErrInvalidQuantity) {
			code = ExitCommandError
		}
		return WrapExitError(code, "adjust stock", err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, entry)
	}
	fmt.Fprintf(out, "%s: %d -> %d (history #%d)\n", entry.Scope, entry.PreviousQty, entry.NewQty, entry.ID)
	return nil
}
