package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/core"
)

func newRecurringCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recurring",
		Aliases: []string{"obligations"},
		Short:   "Manage recurring bills, subscriptions and debt payments",
	}
	cmd.AddCommand(
		newRecurringAddCmd(opts),
		newRecurringListCmd(opts),
		newRecurringToggleCmd(opts, "pause", "Stop posting a recurring transaction", false),
		newRecurringToggleCmd(opts, "resume", "Resume posting a paused recurring transaction", true),
		newRecurringDeleteCmd(opts),
		newRecurringUpcomingCmd(opts),
		newRecurringProcessCmd(opts),
	)
	return cmd
}

type recurringFlags struct {
	name          string
	amount        string
	balance       string
	obligation    string
	kind          string
	category      string
	frequency     string
	paymentMethod string
	start         string
	end           string
}

// build turns the flags into a template for userID, defaulting the start date
// to today.
func (f *recurringFlags) build(userID string, now time.Time) (core.RecurringTransaction, error) {
	amount, err := decimal.NewFromString(f.amount)
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("invalid --amount %q: %w", f.amount, err)
	}
	r := core.RecurringTransaction{
		UserID:        userID,
		Name:          f.name,
		Type:          core.ObligationType(f.obligation),
		Amount:        amount,
		Kind:          core.TransactionKind(f.kind),
		CategoryID:    f.category,
		Frequency:     core.Period(f.frequency),
		PaymentMethod: f.paymentMethod,
		StartDate:     core.DateOf(now),
	}
	if f.balance != "" {
		if r.Balance, err = decimal.NewFromString(f.balance); err != nil {
			return core.RecurringTransaction{}, fmt.Errorf("invalid --balance %q: %w", f.balance, err)
		}
	}
	if f.start != "" {
		if r.StartDate, err = core.ParseDate(f.start); err != nil {
			return core.RecurringTransaction{}, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if f.end != "" {
		if r.EndDate, err = core.ParseDate(f.end); err != nil {
			return core.RecurringTransaction{}, fmt.Errorf("invalid --end: %w", err)
		}
	}
	return r, nil
}

func newRecurringAddCmd(opts *rootOptions) *cobra.Command {
	f := &recurringFlags{}
	cmd := &cobra.Command{
		Use:   "add [user-id]",
		Short: "Create a recurring transaction template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			userID, err := a.userArg(args)
			if err != nil {
				return err
			}
			r, err := f.build(userID, time.Now())
			if err != nil {
				return err
			}
			created, err := a.backend.Store.CreateRecurring(cmd.Context(), r)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, []core.RecurringTransaction{created}, recurringTable)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "template name, used as the posted description")
	fl.StringVar(&f.amount, "amount", "", "amount posted each time")
	fl.StringVar(&f.balance, "balance", "", "outstanding balance of a debt")
	fl.StringVar(&f.obligation, "type", "", "bill, subscription, debt or other (default other)")
	fl.StringVar(&f.kind, "kind", "", "income or expense (default expense)")
	fl.StringVar(&f.category, "category", "", "category ID")
	fl.StringVar(&f.frequency, "frequency", "", "daily, weekly, monthly or yearly (default monthly)")
	fl.StringVar(&f.paymentMethod, "payment-method", "", "payment method recorded on postings")
	fl.StringVar(&f.start, "start", "", "first posting day, YYYY-MM-DD (default today)")
	fl.StringVar(&f.end, "end", "", "last posting day, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newRecurringListCmd(opts *rootOptions) *cobra.Command {
	var filter core.RecurringFilter
	var obligation string
	cmd := &cobra.Command{
		Use:   "list [user-id]",
		Short: "List a user's recurring transactions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			userID, err := a.userArg(args)
			if err != nil {
				return err
			}
			filter.Type = core.ObligationType(obligation)
			if filter.Type != "" && !filter.Type.IsValid() {
				return fmt.Errorf("invalid --type %q", obligation)
			}
			items, err := a.backend.Store.ListRecurring(cmd.Context(), userID, filter)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, items, recurringTable)
		},
	}
	cmd.Flags().BoolVar(&filter.ActiveOnly, "active", false, "only list active templates")
	cmd.Flags().StringVar(&obligation, "type", "", "only list one obligation type")
	return cmd
}

// recurringTarget splits "[user-id] <id>" arguments, falling back to the demo
// user when only the template ID is given.
func (a *app) recurringTarget(args []string) (userID, id string, err error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	userID, err = a.userArg(nil)
	return userID, args[0], err
}

func newRecurringToggleCmd(opts *rootOptions, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [user-id] <id>",
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			userID, id, err := a.recurringTarget(args)
			if err != nil {
				return err
			}
			updated, err := a.backend.Store.UpdateRecurring(cmd.Context(), userID, id,
				core.Patch{{Column: "is_active", Value: active}})
			if err != nil {
				return err
			}
			if a.backend.Cache != nil {
				a.backend.Cache.Invalidate(userID)
			}
			return render(cmd.OutOrStdout(), opts.output, []core.RecurringTransaction{updated}, recurringTable)
		},
	}
}

func newRecurringDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [user-id] <id>",
		Short: "Delete a recurring transaction template",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			userID, id, err := a.recurringTarget(args)
			if err != nil {
				return err
			}
			if err := a.backend.Store.DeleteRecurring(cmd.Context(), userID, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

func newRecurringUpcomingCmd(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "upcoming [user-id]",
		Short: "List recurring transactions due in the next few days",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			userID, err := a.userArg(args)
			if err != nil {
				return err
			}
			processor := cli.NewRecurringProcessor(a.backend, a.logger)
			due, err := processor.Upcoming(cmd.Context(), userID, days, time.Now())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, due, upcomingTable)
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 7, "look-ahead window in days")
	return cmd
}

func newRecurringProcessCmd(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Post every recurring transaction that is due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			if date != "" {
				day, err := core.ParseDate(date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				now = day.Time
			}

			a, closeFn, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			processor := cli.NewRecurringProcessor(a.backend, a.logger)
			posted, err := processor.ProcessDue(cmd.Context(), now)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "posted %d recurring transactions\n", posted)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "process as of this day, YYYY-MM-DD (default today)")
	return cmd
}
