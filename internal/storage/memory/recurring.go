package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func (s *Store) withCategoryName(r core.RecurringTransaction) core.RecurringTransaction {
	r.CategoryName = s.categoryName(r.CategoryID)
	return r
}

func (s *Store) CreateRecurring(_ context.Context, r core.RecurringTransaction) (core.RecurringTransaction, error) {
	r.Name = strings.TrimSpace(r.Name)
	r, err := storage.PrepareRecurring(r)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	defer s.write()()
	if err := s.checkCategory(r.UserID, r.CategoryID); err != nil {
		return core.RecurringTransaction{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Amount, r.Balance = r.Amount.Round(2), r.Balance.Round(2)
	r.CategoryName = ""
	s.data.recurring[r.ID] = r
	return s.withCategoryName(r), nil
}

func (s *Store) GetRecurring(_ context.Context, userID, id string) (core.RecurringTransaction, error) {
	defer s.read()()
	r, ok := s.data.recurring[id]
	if !ok || r.UserID != userID {
		return core.RecurringTransaction{}, notFound("recurring transaction", id)
	}
	return s.withCategoryName(r), nil
}

func (s *Store) ListRecurring(_ context.Context, userID string, f core.RecurringFilter) ([]core.RecurringTransaction, error) {
	defer s.read()()
	var out []core.RecurringTransaction
	for _, r := range s.data.recurring {
		if r.UserID != userID || (f.ActiveOnly && !r.Active) || (f.Type != "" && r.Type != f.Type) {
			continue
		}
		out = append(out, s.withCategoryName(r))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.StartDate.Equal(b.StartDate.Time) {
			return a.StartDate.Before(b.StartDate.Time)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) ListActiveRecurring(context.Context) ([]core.RecurringTransaction, error) {
	defer s.read()()
	var out []core.RecurringTransaction
	for _, r := range s.data.recurring {
		if r.Active {
			out = append(out, s.withCategoryName(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if !a.StartDate.Equal(b.StartDate.Time) {
			return a.StartDate.Before(b.StartDate.Time)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) UpdateRecurring(_ context.Context, userID, id string, patch core.Patch) (core.RecurringTransaction, error) {
	defer s.write()()
	r, ok := s.data.recurring[id]
	if !ok || r.UserID != userID {
		return core.RecurringTransaction{}, notFound("recurring transaction", id)
	}
	if err := checkPatch(core.EntityRecurring, patch); err != nil {
		return core.RecurringTransaction{}, err
	}
	for _, u := range patch {
		switch u.Column {
		case "name":
			r.Name = u.Value.(string)
		case "amount":
			r.Amount = u.Value.(decimal.Decimal).Round(2)
		case "category_id":
			r.CategoryID = u.Value.(string)
		case "payment_method":
			r.PaymentMethod = u.Value.(string)
		case "end_date":
			r.EndDate = u.Value.(core.Date)
		case "balance":
			r.Balance = u.Value.(decimal.Decimal).Round(2)
		case "is_active":
			r.Active = u.Value.(bool)
		}
	}
	if err := s.checkCategory(userID, r.CategoryID); err != nil {
		return core.RecurringTransaction{}, err
	}
	if err := r.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	s.data.recurring[id] = r
	return s.withCategoryName(r), nil
}

func (s *Store) DeleteRecurring(_ context.Context, userID, id string) error {
	defer s.write()()
	if r, ok := s.data.recurring[id]; !ok || r.UserID != userID {
		return notFound("recurring transaction", id)
	}
	delete(s.data.recurring, id)
	return nil
}

func (s *Store) PostRecurring(ctx context.Context, userID, id string, day core.Date) (core.Transaction, error) {
	var out core.Transaction
	err := s.WithTx(ctx, func(st storage.Store) error {
		tx := st.(*Store)
		r, ok := tx.data.recurring[id]
		if !ok || r.UserID != userID {
			return notFound("recurring transaction", id)
		}
		t, next, err := storage.RecurringPosting(r, day)
		if err != nil {
			return err
		}
		if t, err = storage.PrepareTransaction(t); err != nil {
			return err
		}
		if out, err = tx.insertTransaction(t); err != nil {
			return fmt.Errorf("record recurring transaction: %w", err)
		}
		tx.data.recurring[id] = next
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}
