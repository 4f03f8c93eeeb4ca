package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

const recurringSelect = `SELECT r.id, r.user_id, r.name, r.type, r.amount_cents, r.kind, r.category_id,
	r.payment_method, r.frequency, r.start_date, r.end_date, r.balance_cents, r.last_execution,
	r.is_active, c.name
FROM recurring_transactions r LEFT JOIN categories c ON c.id = r.category_id`

func scanRecurring(sc interface{ Scan(...any) error }) (core.RecurringTransaction, error) {
	var r core.RecurringTransaction
	var typ, kind, frequency string
	var category, categoryName sql.NullString
	var cents, balance int64
	var start, end, last sqlDate
	err := sc.Scan(&r.ID, &r.UserID, &r.Name, &typ, &cents, &kind, &category,
		&r.PaymentMethod, &frequency, &start, &end, &balance, &last, &r.Active, &categoryName)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	r.Type = core.ObligationType(typ)
	r.Amount = fromCents(cents)
	r.Kind = core.TransactionKind(kind)
	r.CategoryID = category.String
	r.CategoryName = categoryName.String
	r.Frequency = core.Period(frequency)
	r.StartDate = start.Date
	r.EndDate = end.Date
	r.Balance = fromCents(balance)
	r.LastExecution = last.Date
	return r, nil
}

func (s *SQLStore) CreateRecurring(ctx context.Context, r core.RecurringTransaction) (core.RecurringTransaction, error) {
	r.Name = strings.TrimSpace(r.Name)
	r, err := PrepareRecurring(r)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	if err := s.checkCategory(ctx, r.UserID, r.CategoryID); err != nil {
		return core.RecurringTransaction{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	_, err = s.exec(ctx, `INSERT INTO recurring_transactions (id, user_id, name, type, amount_cents, kind,
		category_id, payment_method, frequency, start_date, end_date, balance_cents, last_execution, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Name, string(r.Type), toCents(r.Amount), string(r.Kind),
		nullString(r.CategoryID), r.PaymentMethod, string(r.Frequency), r.StartDate.String(),
		nullDate(r.EndDate), toCents(r.Balance), nullDate(r.LastExecution), r.Active)
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("insert recurring transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Recurring transaction created",
		log.NewFields().WithUser(r.UserID).WithEntity(string(core.EntityRecurring), r.ID).ToSlice()...)
	return s.GetRecurring(ctx, r.UserID, r.ID)
}

func (s *SQLStore) GetRecurring(ctx context.Context, userID, id string) (core.RecurringTransaction, error) {
	r, err := scanRecurring(s.queryRow(ctx, recurringSelect+` WHERE r.id = ? AND r.user_id = ?`, id, userID))
	if err != nil {
		return core.RecurringTransaction{}, notFound(err, "recurring transaction", id)
	}
	return r, nil
}

func (s *SQLStore) ListRecurring(ctx context.Context, userID string, f core.RecurringFilter) ([]core.RecurringTransaction, error) {
	query := recurringSelect + ` WHERE r.user_id = ?`
	args := []any{userID}
	if f.ActiveOnly {
		query += ` AND r.is_active = ?`
		args = append(args, true)
	}
	if f.Type != "" {
		query += ` AND r.type = ?`
		args = append(args, string(f.Type))
	}
	return s.listRecurring(ctx, query+` ORDER BY r.start_date, r.name, r.id`, args...)
}

func (s *SQLStore) ListActiveRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	return s.listRecurring(ctx, recurringSelect+` WHERE r.is_active = ? ORDER BY r.user_id, r.start_date, r.id`, true)
}

func (s *SQLStore) listRecurring(ctx context.Context, query string, args ...any) ([]core.RecurringTransaction, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTransaction
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateRecurring(ctx context.Context, userID, id string, patch core.Patch) (core.RecurringTransaction, error) {
	var out core.RecurringTransaction
	err := s.WithTx(ctx, func(st Store) error {
		tx := st.(*SQLStore)
		if v, ok := patch.Get("category_id"); ok {
			if err := tx.checkCategory(ctx, userID, v.(string)); err != nil {
				return err
			}
		}
		if err := tx.applyPatch(ctx, core.EntityRecurring, userID, id, patch); err != nil {
			return err
		}
		r, err := tx.GetRecurring(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := r.Validate(); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

func (s *SQLStore) DeleteRecurring(ctx context.Context, userID, id string) error {
	return s.deleteRow(ctx, core.EntityRecurring, userID, id)
}

func (s *SQLStore) PostRecurring(ctx context.Context, userID, id string, day core.Date) (core.Transaction, error) {
	var out core.Transaction
	err := s.WithTx(ctx, func(st Store) error {
		tx := st.(*SQLStore)
		r, err := tx.GetRecurring(ctx, userID, id)
		if err != nil {
			return err
		}
		t, next, err := RecurringPosting(r, day)
		if err != nil {
			return err
		}
		if out, err = tx.CreateTransaction(ctx, t); err != nil {
			return fmt.Errorf("record recurring transaction: %w", err)
		}

		_, err = tx.exec(ctx, `UPDATE recurring_transactions SET last_execution = ?, balance_cents = ?, is_active = ?
			WHERE id = ? AND user_id = ?`,
			next.LastExecution.String(), toCents(next.Balance), next.Active, id, userID)
		if err != nil {
			return fmt.Errorf("advance recurring transaction: %w", err)
		}
		return nil
	})
	return out, err
}
