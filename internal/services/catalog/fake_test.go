package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"littlelemon/internal/database"
	"littlelemon/internal/models"
)

// fakeStore is an in-memory Store. InTx holds the mutex for the whole transaction
// and restores the previous state when fn fails.
type fakeStore struct {
	mu         sync.Mutex
	categories map[int64]models.Category
	items      map[int64]models.MenuItem
	nextID     int64

	locks     []int64
	skipClear bool
	txCommits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories: map[int64]models.Category{1: {ID: 1, Name: "Mains"}, 2: {ID: 2, Name: "Desserts"}},
		items:      map[int64]models.MenuItem{},
		nextID:     100,
	}
}

func (f *fakeStore) addItem(item models.MenuItem) {
	f.items[item.ID] = item
}

func (f *fakeStore) featuredIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, item := range f.items {
		if item.Featured {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fakeStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Category
	for _, c := range f.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

func (f *fakeStore) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := models.Category{ID: f.nextID, Name: name}
	f.categories[c.ID] = c
	return &c, nil
}

func (f *fakeStore) UpdateCategory(ctx context.Context, id int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return database.ErrNotFound
	}
	f.categories[id] = models.Category{ID: id, Name: name}
	return nil
}

func (f *fakeStore) DeleteCategory(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.categories, id)
	for itemID, item := range f.items {
		if item.CategoryID == id {
			delete(f.items, itemID)
		}
	}
	return nil
}

func (f *fakeStore) ListMenuItems(ctx context.Context, q ListQuery) ([]models.MenuItem, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []models.MenuItem
	for _, item := range f.items {
		if q.CategoryID != nil && item.CategoryID != *q.CategoryID {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(item.Title), strings.ToLower(q.Search)) {
			continue
		}
		matched = append(matched, item)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.Ordering {
		case "price":
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case "-price":
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		case "title":
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		}
		return a.ID < b.ID
	})

	start := (q.Page - 1) * q.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (f *fakeStore) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &item, nil
}

func (f *fakeStore) DeleteMenuItem(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := make(map[int64]models.MenuItem, len(f.items))
	for id, item := range f.items {
		snapshot[id] = item
	}
	nextID := f.nextID

	if err := fn(&fakeTx{f: f}); err != nil {
		f.items = snapshot
		f.nextID = nextID
		return err
	}
	f.txCommits++
	return nil
}

type fakeTx struct {
	f *fakeStore
}

func (t *fakeTx) LockFeaturedCandidates(ctx context.Context, targetID int64) error {
	t.f.locks = append(t.f.locks, targetID)
	return nil
}

func (t *fakeTx) GetMenuItemForUpdate(ctx context.Context, id int64) (*models.MenuItem, error) {
	item, ok := t.f.items[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &item, nil
}

func (t *fakeTx) ClearFeatured(ctx context.Context, exceptID int64) error {
	if t.f.skipClear {
		return nil
	}
	for id, item := range t.f.items {
		if id != exceptID && item.Featured {
			item.Featured = false
			t.f.items[id] = item
		}
	}
	return nil
}

func (t *fakeTx) InsertMenuItem(ctx context.Context, item *models.MenuItem) error {
	if _, ok := t.f.categories[item.CategoryID]; !ok {
		return &database.StoreError{Kind: database.ErrForeignKey, Constraint: "menu_items_category_id_fkey"}
	}
	if err := t.checkFeatured(item); err != nil {
		return err
	}
	t.f.nextID++
	item.ID = t.f.nextID
	t.f.items[item.ID] = *item
	return nil
}

func (t *fakeTx) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	if _, ok := t.f.items[item.ID]; !ok {
		return database.ErrNotFound
	}
	if err := t.checkFeatured(item); err != nil {
		return err
	}
	t.f.items[item.ID] = *item
	return nil
}

// checkFeatured mimics the partial unique index on menu_items(featured).
func (t *fakeTx) checkFeatured(item *models.MenuItem) error {
	if !item.Featured {
		return nil
	}
	for id, other := range t.f.items {
		if id != item.ID && other.Featured {
			return &database.StoreError{Kind: database.ErrDuplicate, Constraint: "menu_items_single_featured"}
		}
	}
	return nil
}
