package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// render writes v as indented JSON or as a table built by table.
func render[T any](w io.Writer, format string, v T, table func(*tabwriter.Writer, T)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	table(tw, v)
	return tw.Flush()
}

func recommendationTable(tw *tabwriter.Writer, recs []core.Recommendation) {
	fmt.Fprintln(tw, "PRIORITY\tKIND\tTITLE\tSAVINGS")
	for _, r := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Priority, r.Kind, r.Title, r.PotentialSavings.StringFixed(2))
	}
	for _, r := range recs {
		fmt.Fprintf(tw, "\n%s: %s", r.Title, r.Message)
	}
	if len(recs) > 0 {
		fmt.Fprintln(tw)
	}
}

func fraudTable(tw *tabwriter.Writer, found []services.FraudAnomaly) {
	if len(found) == 0 {
		fmt.Fprintln(tw, "No unusual transactions.")
		return
	}
	fmt.Fprintln(tw, "DATE\tAMOUNT\tZ\tSEVERITY\tCATEGORY\tDESCRIPTION")
	for _, a := range found {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			a.Date, a.Amount.StringFixed(2), a.ZScore, a.Severity, a.Category, a.Description)
	}
}

func spikeTable(tw *tabwriter.Writer, spikes []services.SpendingSpike) {
	if len(spikes) == 0 {
		fmt.Fprintln(tw, "No spending spikes.")
		return
	}
	fmt.Fprintln(tw, "CATEGORY\tAMOUNT\tAVERAGE\tMULTIPLIER")
	for _, s := range spikes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1fx\n", s.Category, s.Amount.StringFixed(2), s.Average.StringFixed(2), s.Multiplier)
	}
}

func recurringTable(tw *tabwriter.Writer, items []core.RecurringTransaction) {
	if len(items) == 0 {
		fmt.Fprintln(tw, "No recurring transactions.")
		return
	}
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tAMOUNT\tFREQUENCY\tSTART\tLAST\tACTIVE")
	for _, r := range items {
		last := "-"
		if !r.LastExecution.IsZero() {
			last = r.LastExecution.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			r.ID, r.Name, r.Type, r.Amount.StringFixed(2), r.Frequency, r.StartDate, last, r.Active)
	}
}

func upcomingTable(tw *tabwriter.Writer, due []core.UpcomingTransaction) {
	if len(due) == 0 {
		fmt.Fprintln(tw, "Nothing due.")
		return
	}
	fmt.Fprintln(tw, "DUE\tIN\tNAME\tTYPE\tAMOUNT")
	for _, u := range due {
		fmt.Fprintf(tw, "%s\t%dd\t%s\t%s\t%s\n",
			u.DueDate, u.DaysUntil, u.Recurring.Name, u.Recurring.Type, u.Recurring.PaymentAmount().StringFixed(2))
	}
}
