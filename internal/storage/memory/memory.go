// Package memory is a process-local storage.Store used by the CLI demo, tests
// and single-shot runs that need no database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type state struct {
	users        map[string]core.User
	categories   map[string]core.Category
	transactions map[string]core.Transaction
	budgets      map[string]core.Budget
	goals        map[string]core.Goal
	recurring    map[string]core.RecurringTransaction
}

func newState() *state {
	return &state{
		users:        make(map[string]core.User),
		categories:   make(map[string]core.Category),
		transactions: make(map[string]core.Transaction),
		budgets:      make(map[string]core.Budget),
		goals:        make(map[string]core.Goal),
		recurring:    make(map[string]core.RecurringTransaction),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.budgets {
		c.budgets[k] = v
	}
	for k, v := range s.goals {
		c.goals[k] = v
	}
	for k, v := range s.recurring {
		c.recurring[k] = v
	}
	return c
}

// Store keeps every entity in maps guarded by one RWMutex. WithTx works on a
// copy of the data and swaps it in when the callback succeeds.
type Store struct {
	mu   *sync.RWMutex
	data *state
	now  func() time.Time
	// tx is set on the store handed to a WithTx callback; the lock is already held.
	tx bool
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{mu: &sync.RWMutex{}, data: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) read() func() {
	if s.tx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) write() func() {
	if s.tx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) today() core.Date {
	return core.DateOf(s.now().UTC())
}

func (s *Store) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	if s.tx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	scoped := &Store{mu: s.mu, data: s.data.clone(), now: s.now, tx: true}
	if err := fn(scoped); err != nil {
		return err
	}
	s.data = scoped.data
	return nil
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, core.ErrNotFound)
}

// Users

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Name = strings.TrimSpace(u.Name)
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	defer s.write()()

	for _, existing := range s.data.users {
		if existing.Email == u.Email {
			return core.User{}, fmt.Errorf("insert user: email %s already registered", u.Email)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = s.now().UTC()
	s.data.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	defer s.read()()
	u, ok := s.data.users[id]
	if !ok {
		return core.User{}, notFound("user", id)
	}
	return u, nil
}

func (s *Store) ListUserIDs(context.Context) ([]string, error) {
	defer s.read()()
	ids := make([]string, 0, len(s.data.users))
	for id := range s.data.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Categories

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	defer s.write()()

	if _, ok := s.data.users[c.UserID]; !ok {
		return core.Category{}, notFound("user", c.UserID)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.data.categories[c.ID] = c
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	defer s.read()()
	var out []core.Category
	for _, c := range s.data.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// checkCategory must be called with the lock held.
func (s *Store) checkCategory(userID, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	if c, ok := s.data.categories[categoryID]; !ok || c.UserID != userID {
		return core.NewValidationError("category_id", "unknown category")
	}
	return nil
}

func (s *Store) categoryName(id string) string {
	if c, ok := s.data.categories[id]; ok {
		return c.Name
	}
	return ""
}

// Transactions

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	t, err := storage.PrepareTransaction(t)
	if err != nil {
		return core.Transaction{}, err
	}
	defer s.write()()
	return s.insertTransaction(t)
}

func (s *Store) insertTransaction(t core.Transaction) (core.Transaction, error) {
	if err := s.checkCategory(t.UserID, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Amount = t.Amount.Round(2)
	s.data.transactions[t.ID] = t
	return t, nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	defer s.read()()
	t, ok := s.data.transactions[id]
	if !ok || t.UserID != userID {
		return core.Transaction{}, notFound("transaction", id)
	}
	return t, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	defer s.read()()
	var out []core.Transaction
	for _, t := range s.data.transactions {
		if t.UserID != userID {
			continue
		}
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if f.CategoryID != "" && t.CategoryID != f.CategoryID {
			continue
		}
		if !f.Start.IsZero() && t.Date.Before(f.Start.Time) {
			continue
		}
		if !f.End.IsZero() && t.Date.After(f.End.Time) {
			continue
		}
		out = append(out, t)
	}
	sortNewestFirst(out, func(t core.Transaction) (core.Date, string) { return t.Date, t.ID })
	return out, nil
}

func (s *Store) UpdateTransaction(_ context.Context, userID, id string, patch core.Patch) (core.Transaction, error) {
	defer s.write()()
	t, ok := s.data.transactions[id]
	if !ok || t.UserID != userID {
		return core.Transaction{}, notFound("transaction", id)
	}
	if err := checkPatch(core.EntityTransaction, patch); err != nil {
		return core.Transaction{}, err
	}
	for _, u := range patch {
		switch u.Column {
		case "amount":
			t.Amount = u.Value.(decimal.Decimal).Round(2)
		case "kind":
			t.Kind = u.Value.(core.TransactionKind)
		case "category_id":
			t.CategoryID = u.Value.(string)
		case "description":
			t.Description = u.Value.(string)
		case "payment_method":
			t.PaymentMethod = u.Value.(string)
		case "date":
			t.Date = u.Value.(core.Date)
		}
	}
	if err := s.checkCategory(userID, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.data.transactions[id] = t
	return t, nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	defer s.write()()
	if t, ok := s.data.transactions[id]; !ok || t.UserID != userID {
		return notFound("transaction", id)
	}
	delete(s.data.transactions, id)
	return nil
}

// Budgets

// withSpend fills the derived fields of b; the lock must be held.
func (s *Store) withSpend(b core.Budget) core.Budget {
	b.CategoryName = s.categoryName(b.CategoryID)
	spent := decimal.Zero
	for _, t := range s.data.transactions {
		if t.UserID != b.UserID || t.Kind != core.Expense {
			continue
		}
		if b.CategoryID != "" && t.CategoryID != b.CategoryID {
			continue
		}
		if t.Date.Before(b.PeriodStart.Time) || t.Date.After(b.PeriodEnd.Time) {
			continue
		}
		spent = spent.Add(t.Amount)
	}
	b.Spent = spent
	return b
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	b, err := storage.PrepareBudget(b)
	if err != nil {
		return core.Budget{}, err
	}
	defer s.write()()

	if err := s.checkCategory(b.UserID, b.CategoryID); err != nil {
		return core.Budget{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Amount = b.Amount.Round(2)
	b.CategoryName, b.Spent = "", decimal.Zero
	s.data.budgets[b.ID] = b
	return s.withSpend(b), nil
}

func (s *Store) GetBudget(_ context.Context, userID, id string) (core.Budget, error) {
	defer s.read()()
	b, ok := s.data.budgets[id]
	if !ok || b.UserID != userID {
		return core.Budget{}, notFound("budget", id)
	}
	return s.withSpend(b), nil
}

func (s *Store) ListBudgets(_ context.Context, userID string) ([]core.Budget, error) {
	defer s.read()()
	return s.listBudgets(userID, false), nil
}

func (s *Store) listBudgets(userID string, activeOnly bool) []core.Budget {
	var out []core.Budget
	for _, b := range s.data.budgets {
		if b.UserID != userID || (activeOnly && !b.Active) {
			continue
		}
		out = append(out, s.withSpend(b))
	}
	sortNewestFirst(out, func(b core.Budget) (core.Date, string) { return b.PeriodStart, b.ID })
	return out
}

func (s *Store) UpdateBudget(_ context.Context, userID, id string, patch core.Patch) (core.Budget, error) {
	defer s.write()()
	b, ok := s.data.budgets[id]
	if !ok || b.UserID != userID {
		return core.Budget{}, notFound("budget", id)
	}
	if err := checkPatch(core.EntityBudget, patch); err != nil {
		return core.Budget{}, err
	}
	for _, u := range patch {
		switch u.Column {
		case "amount":
			b.Amount = u.Value.(decimal.Decimal).Round(2)
		case "category_id":
			b.CategoryID = u.Value.(string)
		case "period_start":
			b.PeriodStart = u.Value.(core.Date)
		case "period_end":
			b.PeriodEnd = u.Value.(core.Date)
		case "is_active":
			b.Active = u.Value.(bool)
		}
	}
	if err := s.checkCategory(userID, b.CategoryID); err != nil {
		return core.Budget{}, err
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.data.budgets[id] = b
	return s.withSpend(b), nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	defer s.write()()
	if b, ok := s.data.budgets[id]; !ok || b.UserID != userID {
		return notFound("budget", id)
	}
	delete(s.data.budgets, id)
	return nil
}

// Goals

func (s *Store) CreateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	g, err := storage.PrepareGoal(g, s.today())
	if err != nil {
		return core.Goal{}, err
	}
	defer s.write()()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.Target, g.Current = g.Target.Round(2), g.Current.Round(2)
	s.data.goals[g.ID] = g
	return g, nil
}

func (s *Store) GetGoal(_ context.Context, userID, id string) (core.Goal, error) {
	defer s.read()()
	g, ok := s.data.goals[id]
	if !ok || g.UserID != userID {
		return core.Goal{}, notFound("goal", id)
	}
	return g, nil
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.Goal, error) {
	defer s.read()()
	var out []core.Goal
	for _, g := range s.data.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.TargetDate.Equal(b.TargetDate.Time) {
			return a.TargetDate.Before(b.TargetDate.Time)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) UpdateGoal(_ context.Context, userID, id string, patch core.Patch) (core.Goal, error) {
	defer s.write()()
	g, ok := s.data.goals[id]
	if !ok || g.UserID != userID {
		return core.Goal{}, notFound("goal", id)
	}
	if err := checkPatch(core.EntityGoal, patch); err != nil {
		return core.Goal{}, err
	}
	for _, u := range patch {
		switch u.Column {
		case "name":
			g.Name = u.Value.(string)
		case "description":
			g.Description = u.Value.(string)
		case "target_amount":
			g.Target = u.Value.(decimal.Decimal).Round(2)
		case "target_date":
			g.TargetDate = u.Value.(core.Date)
		case "priority":
			g.Priority = u.Value.(int)
		}
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.data.goals[id] = g
	return g, nil
}

func (s *Store) DeleteGoal(_ context.Context, userID, id string) error {
	defer s.write()()
	if g, ok := s.data.goals[id]; !ok || g.UserID != userID {
		return notFound("goal", id)
	}
	delete(s.data.goals, id)
	return nil
}

func (s *Store) AddContribution(ctx context.Context, userID, goalID string, amount decimal.Decimal) (core.Goal, error) {
	var out core.Goal
	err := s.WithTx(ctx, func(st storage.Store) error {
		tx := st.(*Store)
		g, ok := tx.data.goals[goalID]
		if !ok || g.UserID != userID {
			return notFound("goal", goalID)
		}
		today := tx.today()
		g, err := storage.ApplyContribution(g, amount.Round(2), today)
		if err != nil {
			return err
		}
		tx.data.goals[goalID] = g

		_, err = tx.insertTransaction(core.Transaction{
			UserID:        userID,
			Amount:        amount,
			Kind:          core.Expense,
			Description:   storage.ContributionDescription(g.Name),
			PaymentMethod: storage.DefaultPaymentMethod,
			Date:          today,
		})
		if err != nil {
			return fmt.Errorf("record contribution: %w", err)
		}
		out = g
		return nil
	})
	if err != nil {
		return core.Goal{}, err
	}
	return out, nil
}

// checkPatch rejects columns outside the entity's allow-list.
func checkPatch(entity core.Entity, patch core.Patch) error {
	if len(patch) == 0 {
		return core.NewValidationError("", "no fields to update")
	}
	allowed := core.MutableFields(entity)
	for _, u := range patch {
		i := sort.SearchStrings(allowed, u.Column)
		if i == len(allowed) || allowed[i] != u.Column {
			return core.NewValidationError(u.Column, "field cannot be updated")
		}
	}
	return nil
}

// sortNewestFirst orders by date descending, then id ascending.
func sortNewestFirst[T any](items []T, key func(T) (core.Date, string)) {
	sort.Slice(items, func(i, j int) bool {
		di, idi := key(items[i])
		dj, idj := key(items[j])
		if !di.Equal(dj.Time) {
			return di.After(dj.Time)
		}
		return idi < idj
	})
}
