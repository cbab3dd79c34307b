package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/abgdnv/productcatalog/internal/catalog/errors"
)

var _ ProductStore = (*InMemory)(nil)

// InMemory implements ProductStore using an in-memory map.
// Every stock mutation holds the write lock for the whole read-check-write sequence.
type InMemory struct {
	mu       sync.RWMutex
	products map[int64]Product
	nextID   int64
	now      func() time.Time
}

// NewInMemoryStore creates a new instance of ProductStore
func NewInMemoryStore() *InMemory {
	return &InMemory{
		products: make(map[int64]Product),
		nextID:   1,
		now:      time.Now,
	}
}

// FindByID retrieves a product by its ID.
func (s *InMemory) FindByID(_ context.Context, id int64) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, errors.ErrProductNotFound
	}
	return clone(p), nil
}

// FindByName retrieves a product by its name.
func (s *InMemory) FindByName(_ context.Context, name string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.findByName(name); ok {
		return clone(p), nil
	}
	return nil, errors.ErrProductNotFound
}

func (s *InMemory) ExistsByID(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.products[id]
	return ok, nil
}

func (s *InMemory) ExistsByName(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.findByName(name)
	return ok, nil
}

// FindAll retrieves all products ordered by ID.
func (s *InMemory) FindAll(_ context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		list = append(list, *clone(p))
	}
	slices.SortFunc(list, func(a, b Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return list, nil
}

// Create creates a new product and returns it.
func (s *InMemory) Create(_ context.Context, params CreateParams) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.findByName(params.Name); taken {
		return nil, errors.ErrNameConflict
	}
	if params.Stock < 0 {
		return nil, errors.ErrInvalidStock
	}
	if params.Price.IsNegative() {
		return nil, errors.ErrInvalidPrice
	}

	now := s.now()
	product := Product{
		ID:          s.nextID,
		Name:        params.Name,
		Description: copyString(params.Description),
		Price:       params.Price,
		Stock:       params.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.products[product.ID] = product

	return clone(product), nil
}

// UpdateFunc applies fn to the product while holding the write lock.
func (s *InMemory) UpdateFunc(_ context.Context, id int64, fn ProductFunc) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[id]
	if !ok {
		return nil, errors.ErrProductNotFound
	}
	next, err := fn(*clone(existing))
	if err != nil {
		return nil, err
	}
	if other, taken := s.findByName(next.Name); taken && other.ID != id {
		return nil, errors.ErrNameConflict
	}
	if next.Stock < 0 {
		return nil, errors.ErrInvalidStock
	}
	if next.Price.IsNegative() {
		return nil, errors.ErrInvalidPrice
	}

	existing.Name = next.Name
	existing.Description = copyString(next.Description)
	existing.Price = next.Price
	existing.Stock = next.Stock
	existing.UpdatedAt = s.now()
	s.products[id] = existing

	return clone(existing), nil
}

// UpdateStockFunc applies fn to the product while holding the write lock.
func (s *InMemory) UpdateStockFunc(_ context.Context, id int64, fn StockFunc) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[id]
	if !ok {
		return nil, errors.ErrProductNotFound
	}
	stock, write, err := fn(*clone(current))
	if err != nil {
		return nil, err
	}
	if !write {
		return clone(current), nil
	}
	if stock < 0 {
		return nil, errors.ErrInsufficientStock
	}
	current.Stock = stock
	current.UpdatedAt = s.now()
	s.products[id] = current

	return clone(current), nil
}

// DeleteByID deletes a product by its ID.
func (s *InMemory) DeleteByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return errors.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

// findByName must be called with the lock held.
func (s *InMemory) findByName(name string) (Product, bool) {
	for _, p := range s.products {
		if p.Name == name {
			return p, true
		}
	}
	return Product{}, false
}

// clone returns a copy that shares no pointers with the stored product.
func clone(p Product) *Product {
	p.Description = copyString(p.Description)
	return &p
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
