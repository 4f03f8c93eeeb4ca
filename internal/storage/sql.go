package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on sqlite or postgres.
type SQLStore struct {
	db      *sql.DB
	q       querier
	dialect Dialect
	logger  *log.Logger
	now     func() time.Time
	inTx    bool
}

type Option func(*SQLStore)

func WithLogger(l *log.Logger) Option {
	return func(s *SQLStore) { s.logger = l }
}

// WithClock replaces time.Now for created_at stamps and recent-transaction windows.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) { s.now = now }
}

// Open connects to the database, applies pending migrations and returns a ready store.
func Open(ctx context.Context, d Dialect, dsn string, opts ...Option) (*SQLStore, error) {
	if d == SQLite {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	if err := RunMigrations(d, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open(d.DriverName(), d.DSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}
	switch d {
	case SQLite:
		// One writer at a time; concurrent readers queue on the pool.
		db.SetMaxOpenConns(1)
	case Postgres:
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{
		db:      db,
		q:       db,
		dialect: d,
		logger:  log.Default(log.ComponentStorage),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.FieldBackend, string(d))
	return s, nil
}

func (s *SQLStore) Dialect() Dialect { return s.dialect }

func (s *SQLStore) Close() error {
	if s.inTx || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	scoped := *s
	scoped.q = tx
	scoped.inTx = true
	if err := fn(&scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WarnContext(ctx, "Rollback failed", log.FieldError, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *SQLStore) today() core.Date {
	return core.DateOf(s.now().UTC())
}

// notFound maps sql.ErrNoRows onto core.ErrNotFound.
func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", entity, err)
}

// Users

func (s *SQLStore) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Name = strings.TrimSpace(u.Name)
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = s.now().UTC().Truncate(time.Microsecond)

	_, err := s.exec(ctx, `INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	s.logger.InfoContext(ctx, "User created", log.FieldUserID, u.ID)
	return u, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (core.User, error) {
	var u core.User
	var created sqlTime
	err := s.queryRow(ctx, `SELECT id, email, name, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.Name, &created)
	if err != nil {
		return core.User{}, notFound(err, "user", id)
	}
	u.CreatedAt = created.Time
	return u, nil
}

func (s *SQLStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Categories

func (s *SQLStore) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.exec(ctx, `INSERT INTO categories (id, user_id, name, kind) VALUES (?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Kind))
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (s *SQLStore) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.query(ctx, `SELECT id, user_id, name, kind FROM categories WHERE user_id = ? ORDER BY kind, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var kind string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &kind); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.TransactionKind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

// checkCategory rejects category ids that do not belong to the user.
func (s *SQLStore) checkCategory(ctx context.Context, userID, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM categories WHERE id = ? AND user_id = ?`, categoryID, userID).Scan(&n)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if n == 0 {
		return core.NewValidationError("category_id", "unknown category")
	}
	return nil
}

// Transactions

const transactionColumns = `id, user_id, amount_cents, kind, category_id, description, payment_method, date`

func (s *SQLStore) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t, err := PrepareTransaction(t)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, t.UserID, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	_, err = s.exec(ctx, `INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, toCents(t.Amount), string(t.Kind), nullString(t.CategoryID),
		t.Description, t.PaymentMethod, t.Date.String())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Transaction saved",
		log.NewFields().WithUser(t.UserID).WithEntity(string(core.EntityTransaction), t.ID).ToSlice()...)
	return t, nil
}

func scanTransaction(sc interface{ Scan(...any) error }) (core.Transaction, error) {
	var t core.Transaction
	var cents int64
	var kind string
	var category sql.NullString
	var date sqlDate
	if err := sc.Scan(&t.ID, &t.UserID, &cents, &kind, &category, &t.Description, &t.PaymentMethod, &date); err != nil {
		return core.Transaction{}, err
	}
	t.Amount = fromCents(cents)
	t.Kind = core.TransactionKind(kind)
	t.CategoryID = category.String
	t.Date = date.Date
	return t, nil
}

func (s *SQLStore) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := s.queryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", id)
	}
	return t, nil
}

func (s *SQLStore) ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	if f.CategoryID != "" {
		query += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	if !f.Start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, f.Start.String())
	}
	if !f.End.IsZero() {
		query += ` AND date <= ?`
		args = append(args, f.End.String())
	}
	query += ` ORDER BY date DESC, id`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateTransaction(ctx context.Context, userID, id string, patch core.Patch) (core.Transaction, error) {
	var out core.Transaction
	err := s.WithTx(ctx, func(st Store) error {
		tx := st.(*SQLStore)
		if v, ok := patch.Get("category_id"); ok {
			if err := tx.checkCategory(ctx, userID, v.(string)); err != nil {
				return err
			}
		}
		if err := tx.applyPatch(ctx, core.EntityTransaction, userID, id, patch); err != nil {
			return err
		}
		t, err := tx.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := t.Validate(); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

func (s *SQLStore) DeleteTransaction(ctx context.Context, userID, id string) error {
	return s.deleteRow(ctx, core.EntityTransaction, userID, id)
}

// Budgets

const budgetSelect = `SELECT b.id, b.user_id, b.category_id, b.amount_cents, b.period,
	b.period_start, b.period_end, b.is_active, c.name,
	(SELECT CAST(COALESCE(SUM(t.amount_cents), 0) AS BIGINT) FROM transactions t
		WHERE t.user_id = b.user_id AND t.kind = 'expense'
		AND (b.category_id IS NULL OR t.category_id = b.category_id)
		AND t.date >= b.period_start AND t.date <= b.period_end) AS spent_cents
FROM budgets b LEFT JOIN categories c ON c.id = b.category_id`

func scanBudget(sc interface{ Scan(...any) error }) (core.Budget, error) {
	var b core.Budget
	var category, categoryName sql.NullString
	var cents, spent int64
	var period string
	var start, end sqlDate
	err := sc.Scan(&b.ID, &b.UserID, &category, &cents, &period, &start, &end, &b.Active, &categoryName, &spent)
	if err != nil {
		return core.Budget{}, err
	}
	b.CategoryID = category.String
	b.CategoryName = categoryName.String
	b.Amount = fromCents(cents)
	b.Spent = fromCents(spent)
	b.Period = core.Period(period)
	b.PeriodStart = start.Date
	b.PeriodEnd = end.Date
	return b, nil
}

func (s *SQLStore) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b, err := PrepareBudget(b)
	if err != nil {
		return core.Budget{}, err
	}
	if err := s.checkCategory(ctx, b.UserID, b.CategoryID); err != nil {
		return core.Budget{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	_, err = s.exec(ctx, `INSERT INTO budgets (id, user_id, category_id, amount_cents, period, period_start, period_end, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, nullString(b.CategoryID), toCents(b.Amount), string(b.Period),
		b.PeriodStart.String(), b.PeriodEnd.String(), b.Active)
	if err != nil {
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	return s.GetBudget(ctx, b.UserID, b.ID)
}

func (s *SQLStore) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	b, err := scanBudget(s.queryRow(ctx, budgetSelect+` WHERE b.id = ? AND b.user_id = ?`, id, userID))
	if err != nil {
		return core.Budget{}, notFound(err, "budget", id)
	}
	return b, nil
}

func (s *SQLStore) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	return s.listBudgets(ctx, budgetSelect+` WHERE b.user_id = ? ORDER BY b.period_start DESC, b.id`, userID)
}

func (s *SQLStore) listBudgets(ctx context.Context, query string, args ...any) ([]core.Budget, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateBudget(ctx context.Context, userID, id string, patch core.Patch) (core.Budget, error) {
	var out core.Budget
	err := s.WithTx(ctx, func(st Store) error {
		tx := st.(*SQLStore)
		if v, ok := patch.Get("category_id"); ok {
			if err := tx.checkCategory(ctx, userID, v.(string)); err != nil {
				return err
			}
		}
		if err := tx.applyPatch(ctx, core.EntityBudget, userID, id, patch); err != nil {
			return err
		}
		b, err := tx.GetBudget(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := b.Validate(); err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

func (s *SQLStore) DeleteBudget(ctx context.Context, userID, id string) error {
	return s.deleteRow(ctx, core.EntityBudget, userID, id)
}

// Goals

const goalColumns = `id, user_id, name, description, target_cents, current_cents,
	start_date, target_date, priority, is_completed, completed_date`

func scanGoal(sc interface{ Scan(...any) error }) (core.Goal, error) {
	var g core.Goal
	var target, current int64
	var start, targetDate, completed sqlDate
	err := sc.Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &target, &current,
		&start, &targetDate, &g.Priority, &g.Completed, &completed)
	if err != nil {
		return core.Goal{}, err
	}
	g.Target = fromCents(target)
	g.Current = fromCents(current)
	g.StartDate = start.Date
	g.TargetDate = targetDate.Date
	g.CompletedDate = completed.Date
	return g, nil
}

func (s *SQLStore) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g, err := PrepareGoal(g, s.today())
	if err != nil {
		return core.Goal{}, err
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}

	_, err = s.exec(ctx, `INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.Description, toCents(g.Target), toCents(g.Current),
		g.StartDate.String(), g.TargetDate.String(), g.Priority, g.Completed, nullDate(g.CompletedDate))
	if err != nil {
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

func (s *SQLStore) GetGoal(ctx context.Context, userID, id string) (core.Goal, error) {
	g, err := scanGoal(s.queryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Goal{}, notFound(err, "goal", id)
	}
	return g, nil
}

func (s *SQLStore) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := s.query(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = ?
		ORDER BY is_completed, priority DESC, target_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateGoal(ctx context.Context, userID, id string, patch core.Patch) (core.Goal, error) {
	var out core.Goal
	err := s.WithTx(ctx, func(st Store) error {
		tx := st.(*SQLStore)
		if err := tx.applyPatch(ctx, core.EntityGoal, userID, id, patch); err != nil {
			return err
		}
		g, err := tx.GetGoal(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := g.Validate(); err != nil {
			return err
		}
		out = g
		return nil
	})
	return out, err
}

func (s *SQLStore) DeleteGoal(ctx context.Context, userID, id string) error {
	return s.deleteRow(ctx, core.EntityGoal, userID, id)
}

func (s *SQLStore) AddContribution(ctx context.Context, userID, goalID string, amount decimal.Decimal) (core.Goal, error) {
	var out core.Goal
	err := s.WithTx(ctx, func(st Store) error {
		tx := st.(*SQLStore)
		g, err := tx.GetGoal(ctx, userID, goalID)
		if err != nil {
			return err
		}
		today := tx.today()
		if g, err = ApplyContribution(g, amount, today); err != nil {
			return err
		}

		_, err = tx.exec(ctx, `UPDATE goals SET current_cents = ?, is_completed = ?, completed_date = ?
			WHERE id = ? AND user_id = ?`,
			toCents(g.Current), g.Completed, nullDate(g.CompletedDate), g.ID, userID)
		if err != nil {
			return fmt.Errorf("update goal progress: %w", err)
		}

		_, err = tx.CreateTransaction(ctx, core.Transaction{
			UserID:        userID,
			Amount:        amount,
			Kind:          core.Expense,
			Description:   ContributionDescription(g.Name),
			PaymentMethod: DefaultPaymentMethod,
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

	s.logger.InfoContext(ctx, "Goal contribution recorded",
		log.FieldUserID, userID,
		log.FieldEntityID, goalID,
		"amount", amount.StringFixed(2),
		"completed", out.Completed)
	return out, nil
}

// Patches and deletes

var tables = map[core.Entity]string{
	core.EntityTransaction: "transactions",
	core.EntityBudget:      "budgets",
	core.EntityGoal:        "goals",
	core.EntityRecurring:   "recurring_transactions",
}

// columnNames maps patch fields onto columns whose name differs.
var columnNames = map[string]string{
	"amount":        "amount_cents",
	"target_amount": "target_cents",
	"balance":       "balance_cents",
}

// applyPatch issues one UPDATE for the allow-listed columns of patch.
func (s *SQLStore) applyPatch(ctx context.Context, entity core.Entity, userID, id string, patch core.Patch) error {
	if len(patch) == 0 {
		return core.NewValidationError("", "no fields to update")
	}
	allowed := make(map[string]bool)
	for _, f := range core.MutableFields(entity) {
		allowed[f] = true
	}

	sets := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)+2)
	for _, u := range patch {
		if !allowed[u.Column] {
			return core.NewValidationError(u.Column, "field cannot be updated")
		}
		col := u.Column
		if mapped, ok := columnNames[col]; ok {
			col = mapped
		}
		sets = append(sets, col+" = ?")
		args = append(args, patchArg(u))
	}
	args = append(args, id, userID)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ? AND user_id = ?`, tables[entity], strings.Join(sets, ", "))
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, core.ErrNotFound)
	}

	s.logger.DebugContext(ctx, "Entity updated",
		log.NewFields().WithUser(userID).WithEntity(string(entity), id).WithOperation(log.OpUpdate).ToSlice()...)
	return nil
}

func patchArg(u core.FieldUpdate) any {
	switch v := u.Value.(type) {
	case decimal.Decimal:
		return toCents(v)
	case core.Date:
		return v.String()
	case core.TransactionKind:
		return string(v)
	case string:
		if u.Column == "category_id" {
			return nullString(v)
		}
		return v
	default:
		return v
	}
}

func (s *SQLStore) deleteRow(ctx context.Context, entity core.Entity, userID, id string) error {
	res, err := s.exec(ctx, `DELETE FROM `+tables[entity]+` WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, core.ErrNotFound)
	}
	s.logger.InfoContext(ctx, "Entity deleted",
		log.NewFields().WithUser(userID).WithEntity(string(entity), id).ToSlice()...)
	return nil
}
