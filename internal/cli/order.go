package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rl1809/goods-issue/internal/core/domain"
	"github.com/rl1809/goods-issue/internal/core/service"
)

type orderOptions struct {
	*RootOptions
	OrderID   int64
	ActorID   int64
	RequestID string
}

func NewForwardCommand(rootOpts *RootOptions) *cobra.Command {
	return newOrderCommand(rootOpts, domain.DirectionForward,
		"forward",
		"Issue stock for a completed order",
		"Deducts the outstanding requirement lines of a completed order from stock.")
}

func NewReverseCommand(rootOpts *RootOptions) *cobra.Command {
	return newOrderCommand(rootOpts, domain.DirectionReverse,
		"reverse",
		"Return stock for an order that left completion",
		"Adds back what the most recent issue of each completed line took from stock.")
}

func newOrderCommand(rootOpts *RootOptions, direction domain.Direction, use, short, long string) *cobra.Command {
	opts := &orderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Long:          long,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(opts, direction, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.OrderID, "order", 0, "production order ID (required)")
	cmd.Flags().Int64Var(&opts.ActorID, "actor", 0, "user ID recorded on history entries")
	cmd.Flags().StringVar(&opts.RequestID, "request-id", "", "deduplication key for the event")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

func runOrder(opts *orderOptions, direction domain.Direction, cmd *cobra.Command) error {
	if opts.OrderID <= 0 {
		return WrapExitError(ExitCommandError, "invalid --order", fmt.Errorf("%d is not a positive ID", opts.OrderID))
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	actor := actorPtr(opts.ActorID)
	var summary domain.OrderSummary
	if direction == domain.DirectionForward {
		summary, err = a.Reconciler.OrderReachedCompletion(ctx, opts.RequestID, opts.OrderID, actor)
	} else {
		summary, err = a.Reconciler.OrderRegressedFromCompletion(ctx, opts.RequestID, opts.OrderID, actor)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		result := service.OrderResult{OrderID: opts.OrderID, Summary: summary, Err: err}
		if werr := writeJSON(out, orderOutput(result)); werr != nil {
			return werr
		}
	} else {
		writeSummaryText(out, summary)
	}

	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("order %d", opts.OrderID), err)
		}
		return WrapExitError(ExitFailure, fmt.Sprintf("reconcile order %d", opts.OrderID), err)
	}
	return nil
}

type batchOptions struct {
	*RootOptions
	OrderIDs []int64
	ActorID  int64
	Reverse  bool
}

func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &batchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Reconcile many orders one after the other",
		Long: "Reconciles each order in turn. A failing order is reported and the\n" +
			"batch continues; stock conflicts are retried.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, cmd)
		},
	}

	cmd.Flags().Int64SliceVar(&opts.OrderIDs, "orders", nil, "comma separated order IDs (required)")
	cmd.Flags().Int64Var(&opts.ActorID, "actor", 0, "user ID recorded on history entries")
	cmd.Flags().BoolVar(&opts.Reverse, "reverse", false, "return stock instead of issuing it")
	_ = cmd.MarkFlagRequired("orders")

	return cmd
}

type orderResultOutput struct {
	OrderID int64               `json:"order_id"`
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Summary domain.OrderSummary `json:"summary"`
}

func orderOutput(r service.OrderResult) orderResultOutput {
	out := orderResultOutput{OrderID: r.OrderID, Success: r.Err == nil, Summary: r.Summary}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

func runBatch(opts *batchOptions, cmd *cobra.Command) error {
	for _, id := range opts.OrderIDs {
		if id <= 0 {
			return WrapExitError(ExitCommandError, "invalid --orders", fmt.Errorf("%d is not a positive ID", id))
		}
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var results []service.OrderResult
	if opts.Reverse {
		results = a.Coordinator.Reverse(ctx, opts.OrderIDs, actorPtr(opts.ActorID))
	} else {
		results = a.Coordinator.Reconcile(ctx, opts.OrderIDs, actorPtr(opts.ActorID))
	}

	failed := 0
	out := cmd.OutOrStdout()
	outputs := make([]orderResultOutput, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		outputs = append(outputs, orderOutput(r))
	}

	if opts.Format == "json" {
		if err := writeJSON(out, outputs); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(out, "order %d FAILED: %v\n", r.OrderID, r.Err)
			}
			writeSummaryText(out, r.Summary)
		}
		fmt.Fprintf(out, "%d of %d orders reconciled\n", len(results)-failed, len(results))
	}

	if failed > 0 {
		return WrapExitError(ExitFailure, "batch", fmt.Errorf("%d of %d orders failed", failed, len(results)))
	}
	return nil
}

type historyOptions struct {
	*RootOptions
	OrderID int64
}

func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &historyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Show the stock history written for an order",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.OrderID, "order", 0, "production order ID (required)")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

func runHistory(opts *historyOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var entries []domain.HistoryEntry
	for _, ref := range []string{domain.OrderReference(opts.OrderID), domain.OrderReversalReference(opts.OrderID)} {
		found, err := a.Store.ListHistory(ctx, ref)
		if err != nil {
			return WrapExitError(ExitCommandError, "list history", err)
		}
		entries = append(entries, found...)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		if entries == nil {
			entries = []domain.HistoryEntry{}
		}
		return writeJSON(out, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintf(out, "no history for order %d\n", opts.OrderID)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "#%d %s %-6s %d %+d -> %d", e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.EventKind, e.PreviousQty, e.ChangeQty, e.NewQty)
		if e.Shortfall > 0 {
			fmt.Fprintf(out, " (short %d)", e.Shortfall)
		}
		fmt.Fprintf(out, " %s\n", e.Scope)
	}
	return nil
}

func writeSummaryText(w io.Writer, s domain.OrderSummary) {
	fmt.Fprintf(w, "order %d (%s) %s: processed=%d skipped=%d errors=%d\n",
		s.OrderID, s.OrderNumber, s.Direction, s.Processed(), s.Skipped(), s.ErrorCount())
	for _, m := range s.Materials {
		fmt.Fprintf(w, "  %-8s processed=%d skipped=%d errors=%d\n", m.Material, m.Processed, m.Skipped, len(m.Errors))
		for _, le := range m.Errors {
			fmt.Fprintf(w, "    line %d %s: %s\n", le.LineID, le.ArticleRef, le.Error)
		}
		for _, sf := range m.Shortfalls {
			fmt.Fprintf(w, "    line %d %s: short %d of %d\n", sf.LineID, sf.ArticleRef, sf.Missing, sf.Demanded)
		}
		for _, ref := range m.BelowMinimum {
			fmt.Fprintf(w, "    %s below minimum\n", ref)
		}
	}
}

func actorPtr(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}
