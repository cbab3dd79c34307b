package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	perrors "github.com/abgdnv/productcatalog/internal/catalog/errors"
	"github.com/abgdnv/productcatalog/internal/catalog/store"
	"github.com/abgdnv/productcatalog/pkg/messaging"
	"github.com/abgdnv/productcatalog/pkg/messaging/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProductStore is a mock implementation of the ProductStore interface
type mockProductStore struct {
	products     []store.Product
	product      store.Product
	exists       bool
	existsByName bool
	error        error

	created *store.CreateParams
	updated *store.Product
	deleted int64
}

func (m *mockProductStore) FindByID(_ context.Context, _ int64) (*store.Product, error) {
	if m.error != nil {
		return nil, m.error
	}
	p := m.product
	return &p, nil
}

func (m *mockProductStore) FindByName(_ context.Context, _ string) (*store.Product, error) {
	if m.error != nil {
		return nil, m.error
	}
	p := m.product
	return &p, nil
}

func (m *mockProductStore) ExistsByID(_ context.Context, _ int64) (bool, error) {
	return m.exists, m.error
}

func (m *mockProductStore) ExistsByName(_ context.Context, _ string) (bool, error) {
	return m.existsByName, m.error
}

func (m *mockProductStore) FindAll(_ context.Context) ([]store.Product, error) {
	return m.products, m.error
}

// Simulate creating a product, echoing the params back with the mocked ID
func (m *mockProductStore) Create(_ context.Context, params store.CreateParams) (*store.Product, error) {
	m.created = &params
	if m.error != nil {
		return nil, m.error
	}
	return &store.Product{
		ID:          m.product.ID,
		Name:        params.Name,
		Description: params.Description,
		Price:       params.Price,
		Stock:       params.Stock,
	}, nil
}

func (m *mockProductStore) UpdateFunc(_ context.Context, _ int64, fn store.ProductFunc) (*store.Product, error) {
	if m.error != nil {
		return nil, m.error
	}
	next, err := fn(m.product)
	if err != nil {
		return nil, err
	}
	m.updated = &next
	return &next, nil
}

func (m *mockProductStore) UpdateStockFunc(_ context.Context, _ int64, fn store.StockFunc) (*store.Product, error) {
	if m.error != nil {
		return nil, m.error
	}
	stock, write, err := fn(m.product)
	if err != nil {
		return nil, err
	}
	p := m.product
	if write {
		p.Stock = stock
	}
	return &p, nil
}

func (m *mockProductStore) DeleteByID(_ context.Context, id int64) error {
	m.deleted = id
	return m.error
}

// mockPublisher records published events
type mockPublisher struct {
	events []messaging.Event
	error  error
}

func (m *mockPublisher) Publish(_ context.Context, event messaging.Event) error {
	m.events = append(m.events, event)
	return m.error
}

func newTestService(repo store.ProductStore, publisher messaging.Publisher) *Service {
	return NewService(repo, publisher, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func ptr[T any](v T) *T {
	return &v
}

func Test_ProductService_FindAll(t *testing.T) {
	ErrStoreError := errors.New("store error")
	testCases := []struct {
		name        string
		mockStore   *mockProductStore
		expected    []ProductSummaryDto
		expectError error
	}{
		{
			name: "Success - products found",
			mockStore: &mockProductStore{
				products: []store.Product{
					{ID: 1, Name: "Toy", Description: ptr("a toy"), Price: decimal.RequireFromString("9.99"), Stock: 3},
					{ID: 2, Name: "Ball", Price: decimal.Zero, Stock: 0},
				},
			},
			expected: []ProductSummaryDto{
				{ID: 1, Name: "Toy", Price: decimal.RequireFromString("9.99"), Stock: 3},
				{ID: 2, Name: "Ball", Price: decimal.Zero, Stock: 0},
			},
		},
		{
			name:      "Success - no products",
			mockStore: &mockProductStore{products: []store.Product{}},
			expected:  []ProductSummaryDto{},
		},
		{
			name:        "Error - store error",
			mockStore:   &mockProductStore{error: ErrStoreError},
			expectError: ErrStoreError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			service := newTestService(tc.mockStore, nil)
			// when
			list, err := service.FindAll(context.Background())
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, list)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, list)
			assert.Equal(t, tc.expected, list)
		})
	}
}

func Test_ProductService_FindByID(t *testing.T) {
	testCases := []struct {
		name        string
		mockStore   *mockProductStore
		expected    *ProductDto
		expectError error
	}{
		{
			name: "Success - product found",
			mockStore: &mockProductStore{
				product: store.Product{ID: 7, Name: "Toy", Description: ptr("wooden"), Price: decimal.NewFromInt(5), Stock: 2},
			},
			expected: &ProductDto{ID: 7, Name: "Toy", Description: ptr("wooden"), Price: decimal.NewFromInt(5), Stock: 2},
		},
		{
			name:        "Error - product not found",
			mockStore:   &mockProductStore{error: perrors.ErrProductNotFound},
			expectError: perrors.ErrProductNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			service := newTestService(tc.mockStore, nil)
			// when
			found, err := service.FindByID(context.Background(), 7)
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, found)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, found)
		})
	}
}

func Test_ProductService_FindIDByName(t *testing.T) {
	// given
	service := newTestService(&mockProductStore{product: store.Product{ID: 42, Name: "Toy"}}, nil)
	// when
	id, err := service.FindIDByName(context.Background(), "Toy")
	// then
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	// given
	service = newTestService(&mockProductStore{error: perrors.ErrProductNotFound}, nil)
	// when
	id, err = service.FindIDByName(context.Background(), "Missing")
	// then
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)
	assert.Zero(t, id)
}

func Test_ProductService_Create(t *testing.T) {
	testCases := []struct {
		name        string
		mockStore   *mockProductStore
		input       ProductCreateDto
		expected    *ProductDto
		expectError error
	}{
		{
			name:      "Success - all fields",
			mockStore: &mockProductStore{product: store.Product{ID: 1}},
			input: ProductCreateDto{
				Name:        "Toy",
				Description: ptr("wooden"),
				Price:       ptr(decimal.RequireFromString("12.50")),
				Stock:       ptr(int32(4)),
			},
			expected: &ProductDto{ID: 1, Name: "Toy", Description: ptr("wooden"), Price: decimal.RequireFromString("12.50"), Stock: 4},
		},
		{
			name:      "Success - price and stock default to zero",
			mockStore: &mockProductStore{product: store.Product{ID: 2}},
			input:     ProductCreateDto{Name: "Free sample"},
			expected:  &ProductDto{ID: 2, Name: "Free sample", Price: decimal.Zero, Stock: 0},
		},
		{
			name:        "Error - blank name",
			mockStore:   &mockProductStore{},
			input:       ProductCreateDto{Name: "   "},
			expectError: perrors.ErrInvalidName,
		},
		{
			name:        "Error - empty name",
			mockStore:   &mockProductStore{},
			input:       ProductCreateDto{},
			expectError: perrors.ErrInvalidName,
		},
		{
			name:        "Error - name taken",
			mockStore:   &mockProductStore{existsByName: true},
			input:       ProductCreateDto{Name: "Toy"},
			expectError: perrors.ErrNameConflict,
		},
		{
			name:        "Error - negative price",
			mockStore:   &mockProductStore{},
			input:       ProductCreateDto{Name: "Toy", Price: ptr(decimal.NewFromInt(-1))},
			expectError: perrors.ErrInvalidPrice,
		},
		{
			name:        "Error - negative stock",
			mockStore:   &mockProductStore{},
			input:       ProductCreateDto{Name: "Toy", Stock: ptr(int32(-1))},
			expectError: perrors.ErrInvalidStock,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			publisher := &mockPublisher{}
			service := newTestService(tc.mockStore, publisher)
			// when
			created, err := service.Create(context.Background(), tc.input)
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, created)
				assert.Nil(t, tc.mockStore.created, "store must not be called")
				assert.Empty(t, publisher.events)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected.ID, created.ID)
			assert.Equal(t, tc.expected.Name, created.Name)
			assert.Equal(t, tc.expected.Description, created.Description)
			assert.True(t, tc.expected.Price.Equal(created.Price), "price %s != %s", tc.expected.Price, created.Price)
			assert.Equal(t, tc.expected.Stock, created.Stock)

			require.Len(t, publisher.events, 1)
			event, ok := publisher.events[0].(events.ProductCreatedEvent)
			require.True(t, ok)
			assert.Equal(t, created.ID, event.ProductID)
			assert.Equal(t, messaging.ProductsCreatedSubject, event.Subject())
		})
	}
}

func Test_ProductService_Create_PublishFailureIsIgnored(t *testing.T) {
	// given
	publisher := &mockPublisher{error: errors.New("broker down")}
	service := newTestService(&mockProductStore{product: store.Product{ID: 3}}, publisher)
	// when
	created, err := service.Create(context.Background(), ProductCreateDto{Name: "Toy"})
	// then
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.ID)
	assert.Len(t, publisher.events, 1)
}

func Test_ProductService_Update(t *testing.T) {
	current := store.Product{ID: 5, Name: "Toy", Description: ptr("wooden"), Price: decimal.NewFromInt(10), Stock: 3}
	testCases := []struct {
		name          string
		mockStore     *mockProductStore
		patch         ProductPatchDto
		expected      *store.Product
		expectError   error
		expectedEvent bool
	}{
		{
			name:      "Success - price patched, rest unchanged",
			mockStore: &mockProductStore{product: current},
			patch:     ProductPatchDto{Price: ptr(decimal.NewFromInt(5))},
			expected:  &store.Product{ID: 5, Name: "Toy", Description: ptr("wooden"), Price: decimal.NewFromInt(5), Stock: 3},
		},
		{
			name:          "Success - stock patched publishes stock change",
			mockStore:     &mockProductStore{product: current},
			patch:         ProductPatchDto{Stock: ptr(int32(8))},
			expected:      &store.Product{ID: 5, Name: "Toy", Description: ptr("wooden"), Price: decimal.NewFromInt(10), Stock: 8},
			expectedEvent: true,
		},
		{
			name:      "Success - same name is not a conflict",
			mockStore: &mockProductStore{product: current, existsByName: true},
			patch:     ProductPatchDto{Name: ptr("Toy")},
			expected:  &current,
		},
		{
			name:      "Success - blank description is ignored",
			mockStore: &mockProductStore{product: current},
			patch:     ProductPatchDto{Description: ptr("  ")},
			expected:  &current,
		},
		{
			name:      "Success - empty patch leaves product unchanged",
			mockStore: &mockProductStore{product: current},
			patch:     ProductPatchDto{},
			expected:  &current,
		},
		{
			name:      "Success - new name",
			mockStore: &mockProductStore{product: current},
			patch:     ProductPatchDto{Name: ptr("Robot")},
			expected:  &store.Product{ID: 5, Name: "Robot", Description: ptr("wooden"), Price: decimal.NewFromInt(10), Stock: 3},
		},
		{
			name:        "Error - new name taken",
			mockStore:   &mockProductStore{product: current, existsByName: true},
			patch:       ProductPatchDto{Name: ptr("Robot")},
			expectError: perrors.ErrNameConflict,
		},
		{
			name:        "Error - blank new name",
			mockStore:   &mockProductStore{product: current},
			patch:       ProductPatchDto{Name: ptr("")},
			expectError: perrors.ErrInvalidName,
		},
		{
			name:        "Error - negative stock",
			mockStore:   &mockProductStore{product: current},
			patch:       ProductPatchDto{Stock: ptr(int32(-2))},
			expectError: perrors.ErrInvalidStock,
		},
		{
			name:        "Error - negative price",
			mockStore:   &mockProductStore{product: current},
			patch:       ProductPatchDto{Price: ptr(decimal.RequireFromString("-0.01"))},
			expectError: perrors.ErrInvalidPrice,
		},
		{
			name:        "Error - product not found",
			mockStore:   &mockProductStore{error: perrors.ErrProductNotFound},
			patch:       ProductPatchDto{Stock: ptr(int32(1))},
			expectError: perrors.ErrProductNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			publisher := &mockPublisher{}
			service := newTestService(tc.mockStore, publisher)
			// when
			updated, err := service.Update(context.Background(), 5, tc.patch)
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, updated)
				assert.Nil(t, tc.mockStore.updated, "store must not be updated")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, tc.mockStore.updated)
			assert.Equal(t, *tc.expected, *tc.mockStore.updated)
			assert.Equal(t, &ProductSummaryDto{ID: tc.expected.ID, Name: tc.expected.Name, Price: tc.expected.Price, Stock: tc.expected.Stock}, updated)
			if tc.expectedEvent {
				require.Len(t, publisher.events, 1)
				event := publisher.events[0].(events.StockChangedEvent)
				assert.Equal(t, int32(3), event.Previous)
				assert.Equal(t, int32(8), event.Current)
				assert.Equal(t, events.ReasonUpdate, event.Reason)
			} else {
				assert.Empty(t, publisher.events)
			}
		})
	}
}

// reservingStore runs a stock reservation right after the first FindByID, before the caller writes.
type reservingStore struct {
	*store.InMemory
	reserve func()
	once    sync.Once
}

func (s *reservingStore) FindByID(ctx context.Context, id int64) (*store.Product, error) {
	p, err := s.InMemory.FindByID(ctx, id)
	s.once.Do(s.reserve)
	return p, err
}

func Test_ProductService_Update_KeepsConcurrentReservation(t *testing.T) {
	// given
	repo := &reservingStore{InMemory: store.NewInMemoryStore()}
	ids := seed(t, repo, 10)
	service := newTestService(repo, nil)
	var reservation *ReservationDto
	repo.reserve = func() {
		var err error
		reservation, err = service.ReserveOne(context.Background(), ids[0], 10)
		require.NoError(t, err)
	}

	// when
	updated, err := service.Update(context.Background(), ids[0], ProductPatchDto{Price: ptr(decimal.RequireFromString("3.75"))})

	// then
	require.NoError(t, err)
	require.NotNil(t, reservation)
	assert.NotNil(t, reservation.Price, "reservation must be granted")
	assert.Equal(t, int32(0), updated.Stock)
	assert.Equal(t, "3.75", updated.Price.String())
	assert.Equal(t, int32(0), stockOf(t, repo, ids[0]))
}

func Test_ProductService_Update_EmptyPatch(t *testing.T) {
	// given
	repo := store.NewInMemoryStore()
	original, err := repo.Create(context.Background(), store.CreateParams{
		Name:        "Lamp",
		Description: ptr("desk lamp"),
		Price:       decimal.RequireFromString("19.90"),
		Stock:       4,
	})
	require.NoError(t, err)
	publisher := &mockPublisher{}
	service := newTestService(repo, publisher)

	// when
	updated, err := service.Update(context.Background(), original.ID, ProductPatchDto{})

	// then
	require.NoError(t, err)
	assert.Equal(t, &ProductSummaryDto{ID: original.ID, Name: "Lamp", Price: original.Price, Stock: 4}, updated)
	stored, err := repo.FindByID(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.Name, stored.Name)
	assert.Equal(t, original.Description, stored.Description)
	assert.True(t, original.Price.Equal(stored.Price))
	assert.Equal(t, original.Stock, stored.Stock)
	assert.Empty(t, publisher.events)
}

func Test_ProductService_DeleteByID(t *testing.T) {
	ErrStoreError := errors.New("store error")
	testCases := []struct {
		name        string
		mockStore   *mockProductStore
		expectError error
	}{
		{
			name:      "Success - product deleted",
			mockStore: &mockProductStore{exists: true},
		},
		{
			name:        "Error - product not found",
			mockStore:   &mockProductStore{exists: false},
			expectError: perrors.ErrProductNotFound,
		},
		{
			name:        "Error - store error",
			mockStore:   &mockProductStore{error: ErrStoreError},
			expectError: ErrStoreError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			publisher := &mockPublisher{}
			service := newTestService(tc.mockStore, publisher)
			// when
			msg, err := service.DeleteByID(context.Background(), 9)
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Empty(t, msg)
				assert.Empty(t, publisher.events)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DeletedMessage, msg)
			assert.Equal(t, int64(9), tc.mockStore.deleted)
			require.Len(t, publisher.events, 1)
			assert.Equal(t, messaging.ProductsDeletedSubject, publisher.events[0].Subject())
		})
	}
}
