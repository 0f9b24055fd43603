package main

import (
	"fmt"

	financeapp "github.com/erp/dues/internal/application/finance"
	reportapp "github.com/erp/dues/internal/application/report"
	"github.com/erp/dues/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(listCmd)

	reportCmd.Flags().String("kind", "", "Obligation kind (sale, purchase, expense, payroll); empty for all")
	reportCmd.Flags().String("month", "", "Month to report, formatted YYYY-MM")
	reportCmd.Flags().String("status", "", "Payment status filter (unpaid, partial, paid); empty for all")
	_ = reportCmd.MarkFlagRequired("month")

	verifyCmd.Flags().String("kind", "", "Only verify obligations of this kind")
	verifyCmd.Flags().String("month", "", "Only verify obligations that occurred in this month (YYYY-MM)")

	listCmd.Flags().String("kind", "", "Obligation kind; empty for all")
	listCmd.Flags().String("status", "", "Payment status filter; empty for all")
	listCmd.Flags().String("from", "", "First occurrence date, YYYY-MM-DD")
	listCmd.Flags().String("to", "", "Last occurrence date, YYYY-MM-DD (inclusive)")
	listCmd.Flags().String("search", "", "Match counterparty, reference or external id")
	listCmd.Flags().Int("page", 1, "Page number")
	listCmd.Flags().Int("page-size", financeapp.DefaultPageSize, "Obligations per page")
}

// ─── report ─────────────────────────────────────────────────────────────────

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the dues report for a month as JSON",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, _ []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	month, _ := cmd.Flags().GetString("month")
	status, _ := cmd.Flags().GetString("status")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.reports.BuildReport(commandContext(cmd), reportapp.ReportFilter{
		Kind:   kind,
		Month:  month,
		Status: status,
	})
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

// ─── verify ─────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every obligation's paid amount matches its payment ledger",
	Long: `verify recomputes the ledger sum of each obligation and compares it with the
stored paid amount. It prints every mismatch and exits non-zero when any is found.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

// verifyResult is the JSON shape printed by verify
type verifyResult struct {
	Consistent bool             `json:"consistent"`
	Mismatches []verifyMismatch `json:"mismatches"`
}

type verifyMismatch struct {
	ObligationID string `json:"obligation_id"`
	StoredPaid   string `json:"stored_paid"`
	LedgerSum    string `json:"ledger_sum"`
}

func verifyFilter(cmd *cobra.Command) (finance.ObligationFilter, error) {
	var filter finance.ObligationFilter
	if raw, _ := cmd.Flags().GetString("kind"); raw != "" {
		kind, err := finance.ParseObligationKind(raw)
		if err != nil {
			return filter, err
		}
		filter.Kind = &kind
	}
	if raw, _ := cmd.Flags().GetString("month"); raw != "" {
		month, err := finance.ParseMonth(raw)
		if err != nil {
			return filter, err
		}
		filter = filter.ForMonth(month)
	}
	return filter, nil
}

func runVerify(cmd *cobra.Command, _ []string) error {
	filter, err := verifyFilter(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	mismatches, err := a.reconciliation.VerifyLedger(commandContext(cmd), filter)
	if err != nil {
		return err
	}

	out := verifyResult{Consistent: len(mismatches) == 0, Mismatches: make([]verifyMismatch, 0, len(mismatches))}
	for _, m := range mismatches {
		out.Mismatches = append(out.Mismatches, verifyMismatch{
			ObligationID: m.ObligationID.String(),
			StoredPaid:   m.StoredPaid.String(),
			LedgerSum:    m.LedgerSum.String(),
		})
	}
	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if !out.Consistent {
		return fmt.Errorf("%d obligation(s) failed integrity verification", len(mismatches))
	}
	return nil
}

// ─── history ────────────────────────────────────────────────────────────────

var historyCmd = &cobra.Command{
	Use:   "history OBLIGATION_ID",
	Short: "Print an obligation and its payment events",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid obligation id %q: %w", args[0], err)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	obligation, payments, err := a.reconciliation.PaymentHistory(commandContext(cmd), id)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), newHistoryView(obligation, payments))
}

// obligationView prints an obligation with its derived amounts
type obligationView struct {
	finance.ObligationState
	Status      finance.PaymentStatus `json:"status"`
	Outstanding string                `json:"outstanding"`
	Overpaid    bool                  `json:"overpaid"`
}

func newObligationView(o *finance.Obligation) obligationView {
	return obligationView{
		ObligationState: o.State(),
		Status:          o.Status(),
		Outstanding:     o.OutstandingAmount().String(),
		Overpaid:        o.IsOverpaid(),
	}
}

// historyView is the JSON shape printed by history
type historyView struct {
	Obligation obligationView          `json:"obligation"`
	Payments   []*finance.PaymentEvent `json:"payments"`
}

func newHistoryView(o *finance.Obligation, payments []*finance.PaymentEvent) historyView {
	v := historyView{Obligation: newObligationView(o), Payments: payments}
	if v.Payments == nil {
		v.Payments = []*finance.PaymentEvent{}
	}
	return v
}

// ─── list ───────────────────────────────────────────────────────────────────

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List obligations filtered by kind, status, date range and text",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// listResult is the JSON shape printed by list
type listResult struct {
	Total       int64            `json:"total"`
	Page        int              `json:"page"`
	PageSize    int              `json:"page_size"`
	Obligations []obligationView `json:"obligations"`
}

func runList(cmd *cobra.Command, _ []string) error {
	var filter financeapp.ObligationListFilter
	filter.Kind, _ = cmd.Flags().GetString("kind")
	filter.Status, _ = cmd.Flags().GetString("status")
	filter.From, _ = cmd.Flags().GetString("from")
	filter.To, _ = cmd.Flags().GetString("to")
	filter.Search, _ = cmd.Flags().GetString("search")
	filter.Page, _ = cmd.Flags().GetInt("page")
	filter.PageSize, _ = cmd.Flags().GetInt("page-size")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	page, err := a.reconciliation.ListObligations(commandContext(cmd), filter)
	if err != nil {
		return err
	}

	out := listResult{
		Total:       page.Total,
		Page:        page.Page,
		PageSize:    page.PageSize,
		Obligations: make([]obligationView, 0, len(page.Obligations)),
	}
	for _, o := range page.Obligations {
		out.Obligations = append(out.Obligations, newObligationView(o))
	}
	return writeJSON(cmd.OutOrStdout(), out)
}
