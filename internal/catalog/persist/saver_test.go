package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/marketplace/internal/catalog"
)

// mockUploader records uploads and deletes.
type mockUploader struct {
	uploads []string
	deletes []string
	failOn  string
}

func (m *mockUploader) Upload(_ context.Context, name, _ string, _ []byte) (string, error) {
	if name == m.failOn {
		return "", errors.New("bucket unreachable")
	}
	m.uploads = append(m.uploads, name)
	return "https://img.example/" + name, nil
}

func (m *mockUploader) Delete(_ context.Context, uri string) error {
	m.deletes = append(m.deletes, uri)
	return nil
}

// mockProductStore implements ProductStore for unit tests.
type mockProductStore struct {
	stored  *catalog.Product
	saveErr error

	saved        *catalog.Product
	savedUpdated []catalog.Variant
	savedCreated []catalog.Variant
}

func (m *mockProductStore) FindByID(_ context.Context, _ uuid.UUID) (*catalog.Product, error) {
	if m.stored == nil {
		return nil, ErrProductNotFound
	}
	return m.stored, nil
}

func (m *mockProductStore) Save(_ context.Context, p *catalog.Product, updated, created []catalog.Variant) (map[string]uuid.UUID, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.saved, m.savedUpdated, m.savedCreated = p, updated, created

	idMap := make(map[string]uuid.UUID, len(created))
	for _, v := range created {
		idMap[v.ID.String()] = uuid.New()
	}
	return idMap, nil
}

func pendingImage(name string) catalog.Image {
	return catalog.Image{Pending: true, Name: name, ContentType: "image/jpeg", Data: []byte{0xff}}
}

func newTestSaver(store ProductStore, uploader *mockUploader) *Saver {
	return NewSaver(store, uploader, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSaver_Save_newProduct(t *testing.T) {
	// given
	size := catalog.Category{ID: uuid.New(), Name: "Size", Values: []string{"S", "M"}}
	ledger := catalog.NewLedger(nil, nil)
	_, err := ledger.UpsertCategory(size, 1500)
	require.NoError(t, err)

	store := &mockProductStore{}
	uploader := &mockUploader{}
	saver := newTestSaver(store, uploader)

	product := &catalog.Product{
		SellerID: uuid.New(),
		Name:     "Shirt",
		Images:   []catalog.Image{pendingImage("front.jpg"), pendingImage("back.jpg")},
	}

	// when
	saved, err := saver.Save(context.Background(), product, ledger)

	// then
	require.NoError(t, err)
	require.NotNil(t, store.saved)
	assert.NotEqual(t, uuid.Nil, saved.ID)
	assert.True(t, saved.HasVariants)

	// uploads happened in image order, URIs swapped in
	assert.Equal(t, []string{"front.jpg", "back.jpg"}, uploader.uploads)
	assert.Equal(t, "https://img.example/front.jpg", saved.Images[0].URI)
	assert.False(t, saved.Images[0].Pending)

	// every variant was new, so all went through the create path and came
	// back with durable ids
	assert.Empty(t, store.savedUpdated)
	assert.Len(t, store.savedCreated, 2)
	for _, v := range saved.Variants {
		_, durable := v.ID.Durable()
		assert.True(t, durable)
	}
	assert.Empty(t, uploader.deletes)
}

func TestSaver_Save_partitionsByIDKind(t *testing.T) {
	// given
	size := catalog.Category{ID: uuid.New(), Name: "Size", Values: []string{"S", "M"}}
	durable := uuid.New()
	ledger := catalog.NewLedger(
		[]catalog.Category{size},
		[]catalog.Variant{{ID: catalog.DurableID(durable), Combination: []string{"S"}, Price: 2000, Stock: 3}},
	)
	// adding M generates one new, ephemeral variant
	_, err := ledger.UpsertCategory(size, 1500)
	require.NoError(t, err)

	store := &mockProductStore{stored: &catalog.Product{ID: uuid.New()}}
	saver := newTestSaver(store, &mockUploader{})

	// when
	saved, err := saver.Save(context.Background(), &catalog.Product{ID: store.stored.ID}, ledger)

	// then
	require.NoError(t, err)
	require.Len(t, store.savedUpdated, 1)
	key, _ := store.savedUpdated[0].ID.Durable()
	assert.Equal(t, durable, key)
	require.Len(t, store.savedCreated, 1)
	assert.Equal(t, []string{"M"}, store.savedCreated[0].Combination)

	for _, v := range saved.Variants {
		_, ok := v.ID.Durable()
		assert.True(t, ok, "variant %v should have a durable id after save", v.Combination)
	}
}

func TestSaver_Save_uploadFailureAborts(t *testing.T) {
	// given
	ledger := catalog.NewLedger(nil, nil)
	store := &mockProductStore{}
	uploader := &mockUploader{failOn: "back.jpg"}
	saver := newTestSaver(store, uploader)

	product := &catalog.Product{
		Name:   "Shirt",
		Images: []catalog.Image{pendingImage("front.jpg"), pendingImage("back.jpg")},
	}

	// when
	_, err := saver.Save(context.Background(), product, ledger)

	// then
	require.ErrorIs(t, err, ErrUploadFailure)
	assert.Contains(t, err.Error(), "back.jpg")
	assert.Contains(t, err.Error(), "bucket unreachable", "the uploader's cause must survive wrapping")
	assert.Nil(t, store.saved, "nothing may be persisted after a failed upload")
	// the upload that did succeed was taken back down
	assert.Equal(t, []string{"https://img.example/front.jpg"}, uploader.deletes)
}

func TestSaver_Save_storeFailureRemovesFreshUploads(t *testing.T) {
	// given
	ledger := catalog.NewLedger(nil, nil)
	store := &mockProductStore{saveErr: errors.New("connection reset")}
	uploader := &mockUploader{}
	saver := newTestSaver(store, uploader)

	product := &catalog.Product{Name: "Shirt", Images: []catalog.Image{pendingImage("front.jpg")}}

	// when
	_, err := saver.Save(context.Background(), product, ledger)

	// then
	require.Error(t, err)
	assert.Equal(t, []string{"https://img.example/front.jpg"}, uploader.deletes)
}

func TestSaver_Save_imageDiff(t *testing.T) {
	// given: the stored product references kept.jpg and dropped.jpg
	productID := uuid.New()
	store := &mockProductStore{stored: &catalog.Product{
		ID: productID,
		Images: []catalog.Image{
			{URI: "https://img.example/kept.jpg"},
			{URI: "https://img.example/dropped.jpg"},
		},
	}}
	uploader := &mockUploader{}
	saver := newTestSaver(store, uploader)

	// the save keeps one, drops one, adds one
	product := &catalog.Product{
		ID: productID,
		Images: []catalog.Image{
			{URI: "https://img.example/kept.jpg"},
			pendingImage("new.jpg"),
		},
	}

	// when
	saved, err := saver.Save(context.Background(), product, catalog.NewLedger(nil, nil))

	// then
	require.NoError(t, err)
	require.Len(t, saved.Images, 2)
	assert.Equal(t, []string{"https://img.example/dropped.jpg"}, uploader.deletes)
}

func TestSaver_Save_variantImageDiff(t *testing.T) {
	// given: a durable variant whose image gets replaced by a pending one
	size := catalog.Category{ID: uuid.New(), Name: "Size", Values: []string{"S"}}
	durable := uuid.New()
	old := catalog.Variant{
		ID:          catalog.DurableID(durable),
		Combination: []string{"S"},
		Price:       2000,
		Stock:       3,
		Image:       catalog.Image{URI: "https://img.example/old.jpg"},
	}

	productID := uuid.New()
	store := &mockProductStore{stored: &catalog.Product{ID: productID, Variants: []catalog.Variant{old}}}
	uploader := &mockUploader{}
	saver := newTestSaver(store, uploader)

	replaced := old
	replaced.Image = pendingImage("new.jpg")
	ledger := catalog.NewLedger([]catalog.Category{size}, []catalog.Variant{replaced})

	// when
	saved, err := saver.Save(context.Background(), &catalog.Product{ID: productID}, ledger)

	// then
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/new.jpg", saved.Variants[0].Image.URI)
	assert.Equal(t, []string{"https://img.example/old.jpg"}, uploader.deletes)
}

func TestSaver_Save_invalidLedgerRejected(t *testing.T) {
	// given: a variant priced at zero
	size := catalog.Category{ID: uuid.New(), Name: "Size", Values: []string{"S"}}
	ledger := catalog.NewLedger([]catalog.Category{size},
		[]catalog.Variant{{ID: catalog.EphemeralID(), Combination: []string{"S"}, Price: 0}})

	store := &mockProductStore{}
	uploader := &mockUploader{}
	saver := newTestSaver(store, uploader)

	// when
	_, err := saver.Save(context.Background(), &catalog.Product{Name: "Shirt"}, ledger)

	// then
	require.ErrorIs(t, err, catalog.ErrInvalidVariantPrice)
	assert.Empty(t, uploader.uploads, "validation happens before any upload")
	assert.Nil(t, store.saved)
}

func TestSaver_Save_duplicateCombinationRejected(t *testing.T) {
	// given: client state carrying two variants over the same tuple
	size := catalog.Category{ID: uuid.New(), Name: "Size", Values: []string{"S"}}
	ledger := catalog.NewLedger([]catalog.Category{size}, []catalog.Variant{
		{ID: catalog.EphemeralID(), Combination: []string{"S"}, Price: 1000},
		{ID: catalog.EphemeralID(), Combination: []string{"S"}, Price: 1500},
	})

	store := &mockProductStore{}
	saver := newTestSaver(store, &mockUploader{})

	// when
	_, err := saver.Save(context.Background(), &catalog.Product{Name: "Shirt"}, ledger)

	// then
	require.ErrorIs(t, err, catalog.ErrDuplicateCombination)
	assert.Nil(t, store.saved)
}

func TestSaver_Save_availabilityFollowsVariantStock(t *testing.T) {
	tests := []struct {
		name      string
		stock     int32
		available bool
	}{
		{name: "in stock", stock: 4, available: true},
		{name: "all exhausted", stock: 0, available: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			size := catalog.Category{ID: uuid.New(), Name: "Size", Values: []string{"S"}}
			ledger := catalog.NewLedger([]catalog.Category{size},
				[]catalog.Variant{{ID: catalog.EphemeralID(), Combination: []string{"S"}, Price: 1000, Stock: tt.stock}})

			store := &mockProductStore{}
			saver := newTestSaver(store, &mockUploader{})

			// when
			saved, err := saver.Save(context.Background(), &catalog.Product{Name: "Shirt", Available: true}, ledger)

			// then
			require.NoError(t, err)
			assert.Equal(t, tt.available, saved.Available, fmt.Sprintf("stock %d", tt.stock))
		})
	}
}
