package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"spendbook/internal/amqp"
	"spendbook/internal/cache"
	"spendbook/internal/core"
	applog "spendbook/internal/log"
)

// ErrExpenseNotFound is returned for an id absent from the user's set.
var ErrExpenseNotFound = errors.New("expense not found")

// ExpenseStore loads and saves a user's whole expense set.
type ExpenseStore interface {
	Load(ctx context.Context, username string) ([]core.Expense, error)
	Save(ctx context.Context, username string, expenses []core.Expense) error
}

// EventPublisher announces changes to other processes.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// ChangeNotifier tells the user's open pages that their set changed.
type ChangeNotifier interface {
	NotifyExpensesChanged(username string)
}

// Change is the result of a mutation, with a human readable summary for the UI.
type Change struct {
	Expense core.Expense
	Message string
}

// View is everything the expense page renders for one query.
type View struct {
	Query      core.Query
	Result     core.Result
	Page       core.Page
	Summary    []core.CategoryAmount
	Categories []string
	PageSizes  []int
	Window     []int
}

type ExpenseServiceOptions struct {
	CacheSize int
	CacheTTL  time.Duration
	Publisher EventPublisher
	Notifier  ChangeNotifier
	Logger    *applog.Logger
	// NewID overrides id generation in tests.
	NewID func() string
}

// ExpenseService orchestrates reads and whole-set writes of user expenses.
type ExpenseService struct {
	store     ExpenseStore
	cache     *cache.LRUCache[[]core.Expense]
	group     singleflight.Group
	locks     sync.Map // username -> *sync.Mutex
	genMu     sync.Mutex
	gens      map[string]uint64
	publisher EventPublisher
	notifier  ChangeNotifier
	logger    *applog.Logger
	structLog *applog.StructuredLogger
	newID     func() string
}

func NewExpenseService(store ExpenseStore, opts ExpenseServiceOptions) *ExpenseService {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := opts.Logger.WithComponent(applog.ComponentExpense)
	return &ExpenseService{
		store:     store,
		cache:     cache.NewLRUCache[[]core.Expense](opts.CacheSize, opts.CacheTTL),
		publisher: opts.Publisher,
		notifier:  opts.Notifier,
		logger:    logger,
		structLog: applog.NewStructuredLogger(logger),
		newID:     opts.NewID,
		gens:      make(map[string]uint64),
	}
}

// Cache exposes the expense cache for cleanup and metrics.
func (s *ExpenseService) Cache() *cache.LRUCache[[]core.Expense] {
	return s.cache
}

// List returns the user's expenses, newest first as stored. The returned
// slice is shared and must not be modified.
func (s *ExpenseService) List(ctx context.Context, username string) ([]core.Expense, error) {
	if list, ok := s.cache.Get(username); ok {
		return list, nil
	}
	v, err, _ := s.group.Do(username, func() (any, error) {
		gen := s.generation(username)
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		list, err := s.store.Load(context.WithoutCancel(ctx), username)
		if err != nil {
			return nil, err
		}
		// A write that landed during the load already cached a newer set.
		s.genMu.Lock()
		if s.gens[username] == gen {
			s.cache.Set(username, list)
		}
		s.genMu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return v.([]core.Expense), nil
}

// Query filters, summarises and paginates the user's expenses.
func (s *ExpenseService) Query(ctx context.Context, username string, q core.Query) (View, error) {
	all, err := s.List(ctx, username)
	if err != nil {
		return View{}, err
	}
	res := core.Apply(all, q.Filter)
	page := core.Paginate(res.Expenses, q.Page, q.PageSize)
	q.Page = page.Page
	q.PageSize = page.PageSize
	return View{
		Query:      q,
		Result:     res,
		Page:       page,
		Summary:    core.Summarize(res.Expenses),
		Categories: mergeCategories(core.DefaultCategories(), core.Categories(all)),
		PageSizes:  core.IncludePageSize(core.PageSizeOptions(res.Count), q.PageSize),
		Window:     core.PageWindow(page.Page, page.TotalPages),
	}, nil
}

// Get returns one expense by id.
func (s *ExpenseService) Get(ctx context.Context, username, id string) (core.Expense, error) {
	all, err := s.List(ctx, username)
	if err != nil {
		return core.Expense{}, err
	}
	for _, e := range all {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, ErrExpenseNotFound
}

// Create assigns an id, puts the expense first and saves the whole set.
func (s *ExpenseService) Create(ctx context.Context, username string, in core.NewExpense) (Change, error) {
	in = normalize(in)
	if err := in.Validate(); err != nil {
		return Change{}, err
	}

	var created core.Expense
	err := s.mutate(ctx, username, func(all []core.Expense) ([]core.Expense, error) {
		created = in.WithID(s.newID())
		return append([]core.Expense{created}, all...), nil
	})
	if err != nil {
		return Change{}, err
	}

	s.afterChange(ctx, username, amqp.ActionCreated, applog.OpCreate, created)
	return Change{Expense: created, Message: created.Title + " added to List"}, nil
}

// Update replaces every field except the id.
func (s *ExpenseService) Update(ctx context.Context, username, id string, in core.NewExpense) (Change, error) {
	in = normalize(in)
	if err := in.Validate(); err != nil {
		return Change{}, err
	}

	var before, after core.Expense
	err := s.mutate(ctx, username, func(all []core.Expense) ([]core.Expense, error) {
		i := slices.IndexFunc(all, func(e core.Expense) bool { return e.ID == id })
		if i < 0 {
			return nil, ErrExpenseNotFound
		}
		before = all[i]
		after = in.WithID(id)
		out := slices.Clone(all)
		out[i] = after
		return out, nil
	})
	if err != nil {
		return Change{}, err
	}

	s.afterChange(ctx, username, amqp.ActionUpdated, applog.OpUpdate, after)
	return Change{Expense: after, Message: DescribeChanges(before, after)}, nil
}

// Delete removes the expense with the given id.
func (s *ExpenseService) Delete(ctx context.Context, username, id string) (Change, error) {
	var removed core.Expense
	err := s.mutate(ctx, username, func(all []core.Expense) ([]core.Expense, error) {
		i := slices.IndexFunc(all, func(e core.Expense) bool { return e.ID == id })
		if i < 0 {
			return nil, ErrExpenseNotFound
		}
		removed = all[i]
		return slices.Delete(slices.Clone(all), i, i+1), nil
	})
	if err != nil {
		return Change{}, err
	}

	s.afterChange(ctx, username, amqp.ActionDeleted, applog.OpDelete, removed)
	return Change{Expense: removed, Message: removed.Title + " deleted"}, nil
}

// mutate runs a read-modify-write of the user's set under the user's lock.
// fn must not modify its argument.
func (s *ExpenseService) mutate(ctx context.Context, username string, fn func([]core.Expense) ([]core.Expense, error)) error {
	mu := s.userLock(username)
	mu.Lock()
	defer mu.Unlock()

	// Read through the store so a stale cache entry never wins.
	all, err := s.store.Load(ctx, username)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	next, err := fn(all)
	if err != nil {
		return err
	}
	err = s.store.Save(ctx, username, next)

	s.genMu.Lock()
	s.gens[username]++
	if err != nil {
		s.cache.Delete(username)
	} else {
		s.cache.Set(username, next)
	}
	s.genMu.Unlock()

	if err != nil {
		return fmt.Errorf("save expenses: %w", err)
	}
	return nil
}

func (s *ExpenseService) generation(username string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[username]
}

func (s *ExpenseService) userLock(username string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(username, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *ExpenseService) afterChange(ctx context.Context, username string, action amqp.Action, op string, e core.Expense) {
	s.structLog.LogExpenseChange(ctx, op, username, applog.ExpenseFields{
		ID: e.ID, Title: e.Title, AmountCents: e.Amount.Cents, Category: e.Category,
	})

	if s.notifier != nil {
		s.notifier.NotifyExpensesChanged(username)
	}

	if s.publisher == nil {
		return
	}
	// The expense is already saved; a lost event is repaired by the next reconcile.
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(username, action, e.ID)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldUsername, username,
			applog.FieldExpenseID, e.ID,
			applog.FieldError, err.Error())
	}
}

// DescribeChanges lists the fields that differ between two versions of an
// expense, or "No changes made." when none do.
func DescribeChanges(before, after core.Expense) string {
	var changes []string
	if strings.TrimSpace(before.Title) != strings.TrimSpace(after.Title) {
		changes = append(changes, fmt.Sprintf("title: %q → %q", before.Title, after.Title))
	}
	if before.Amount != after.Amount {
		changes = append(changes, fmt.Sprintf("amount: %s → %s", before.Amount.Decimal(), after.Amount.Decimal()))
	}
	if !before.Date.Equal(after.Date.Time) {
		changes = append(changes, fmt.Sprintf("date: %s → %s", before.Date, after.Date))
	}
	if oldCat, newCat := core.DisplayCategory(before.Category), core.DisplayCategory(after.Category); oldCat != newCat {
		changes = append(changes, fmt.Sprintf("category: %s → %s", oldCat, newCat))
	}
	if len(changes) == 0 {
		return "No changes made."
	}
	return fmt.Sprintf("%q updated: %s", after.Title, strings.Join(changes, ", "))
}

// normalize trims text fields and files blank categories under Other.
func normalize(in core.NewExpense) core.NewExpense {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		in.Category = core.CategoryOther
	}
	return in
}

func mergeCategories(base, extra []string) []string {
	out := slices.Clone(base)
	for _, c := range extra {
		c = strings.TrimSpace(c)
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
