package repository

import (
	"context"
	"errors"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"catalog-import-service/internal/catalog"
	"catalog-import-service/internal/models"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

var productColumns = []string{"id", "tenant_id", "type", "name", "sku", "status", "attributes", "created_at", "updated_at"}

func TestFindProduct_Found(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	port := NewCatalogRepository(gormDB, nil).ForTenant("tenant-1")

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products"`)).
		WillReturnRows(sqlmock.NewRows(productColumns).
			AddRow(id, "tenant-1", models.ProductTypeVariable, "Shirt", "A1", models.ProductStatusActive, []byte(`[]`), now, now))

	product, err := port.FindProduct(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, id, product.ID)
	assert.True(t, product.IsVariable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindProduct_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	port := NewCatalogRepository(gormDB, nil).ForTenant("tenant-1")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products"`)).
		WillReturnRows(sqlmock.NewRows(productColumns))

	product, err := port.FindProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Nil(t, product)
}

func TestFindProduct_ConnectionFailureIsUnavailable(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	port := NewCatalogRepository(gormDB, nil).ForTenant("tenant-1")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products"`)).
		WillReturnError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})

	_, err := port.FindProduct(context.Background(), "A1")
	assert.True(t, catalog.IsUnavailable(err))
}

func TestSaveProduct_UpdateKeepsID(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	port := NewCatalogRepository(gormDB, nil).ForTenant("tenant-1")

	product := &models.Product{ID: uuid.New(), SKU: "A1", Name: "Shirt", Type: models.ProductTypeVariable}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	saved, err := port.SaveProduct(context.Background(), product)
	require.NoError(t, err)
	assert.Equal(t, product.ID, saved.ID)
	assert.Equal(t, "tenant-1", saved.TenantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindProduct_ReadThroughCache(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	mr, client := setupRedis(t)
	port := NewCatalogRepository(gormDB, client).ForTenant("tenant-1")
	ctx := context.Background()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products"`)).
		WillReturnRows(sqlmock.NewRows(productColumns).
			AddRow(id, "tenant-1", models.ProductTypeVariable, "Shirt", "A1", models.ProductStatusActive, []byte(`[]`), now, now))

	first, err := port.FindProduct(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(productCacheKey("tenant-1", "A1")))
	assert.Equal(t, ProductCacheTTL, mr.TTL(productCacheKey("tenant-1", "A1")))

	second, err := port.FindProduct(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsVariable())
	assert.NoError(t, mock.ExpectationsWereMet(), "second lookup is served from the cache")
}

func TestSaveProduct_InvalidatesCache(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	mr, client := setupRedis(t)
	port := NewCatalogRepository(gormDB, client).ForTenant("tenant-1")

	require.NoError(t, mr.Set(productCacheKey("tenant-1", "A1"), `{"sku":"A1","type":"SIMPLE"}`))
	require.NoError(t, mr.Set(productCacheKey("tenant-2", "A1"), `{"sku":"A1"}`))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := port.SaveProduct(context.Background(), &models.Product{ID: uuid.New(), SKU: "A1", Type: models.ProductTypeVariable})
	require.NoError(t, err)
	assert.False(t, mr.Exists(productCacheKey("tenant-1", "A1")))
	assert.True(t, mr.Exists(productCacheKey("tenant-2", "A1")), "other tenants keep their entries")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveProduct_CreateAssignsID(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	port := NewCatalogRepository(gormDB, nil).ForTenant("tenant-1")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "products"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	saved, err := port.SaveProduct(context.Background(), &models.Product{SKU: "A1", Name: "Shirt", Type: models.ProductTypeVariable})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, saved.ID)
	assert.Equal(t, "tenant-1", saved.TenantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveProduct_DuplicateSKU(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	port := NewCatalogRepository(gormDB, nil).ForTenant("tenant-1")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "products"`)).
		WillReturnError(gorm.ErrDuplicatedKey)
	mock.ExpectRollback()

	product := &models.Product{SKU: "A1", Name: "Shirt"}
	saved, err := port.SaveProduct(context.Background(), product)
	require.Error(t, err)
	assert.Nil(t, saved)
	assert.Equal(t, "SKU A1 already exists", err.Error())
	assert.Equal(t, uuid.Nil, product.ID, "a failed insert leaves the product unsaved")
	assert.False(t, catalog.IsUnavailable(err))
}

func TestSaveVariant(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		port := NewCatalogRepository(gormDB, nil).ForTenant("tenant-1")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "product_variants"`)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		parentID := uuid.New()
		saved, err := port.SaveVariant(context.Background(), &models.ProductVariant{ProductID: parentID, SKU: "A1-RED"})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, saved.ID)
		assert.Equal(t, "tenant-1", saved.TenantID)
		assert.Equal(t, parentID, saved.ProductID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		port := NewCatalogRepository(gormDB, nil).ForTenant("tenant-1")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "product_variants"`)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		id := uuid.New()
		saved, err := port.SaveVariant(context.Background(), &models.ProductVariant{ID: id, ProductID: uuid.New(), SKU: "A1-RED"})
		require.NoError(t, err)
		assert.Equal(t, id, saved.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate SKU", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		port := NewCatalogRepository(gormDB, nil).ForTenant("tenant-1")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "product_variants"`)).
			WillReturnError(gorm.ErrDuplicatedKey)
		mock.ExpectRollback()

		variant := &models.ProductVariant{ProductID: uuid.New(), SKU: "A1-RED"}
		_, err := port.SaveVariant(context.Background(), variant)
		require.Error(t, err)
		assert.Equal(t, "variant SKU A1-RED already exists", err.Error())
		assert.Equal(t, uuid.Nil, variant.ID)
	})
}

func TestFindVariant_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	port := NewCatalogRepository(gormDB, nil).ForTenant("tenant-1")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "product_variants"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "sku"}))

	_, err := port.FindVariant(context.Background(), "A1-RED")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestClassifyDBError(t *testing.T) {
	assert.NoError(t, classifyDBError(nil))
	assert.ErrorIs(t, classifyDBError(gorm.ErrRecordNotFound), catalog.ErrNotFound)
	assert.ErrorIs(t, classifyDBError(errors.New("dial tcp: connection refused")), catalog.ErrUnavailable)

	plain := errors.New("value too long for type character varying(255)")
	assert.Equal(t, plain, classifyDBError(plain))
}

func TestTenantCatalogAttributeKey(t *testing.T) {
	port := NewCatalogRepository(nil, nil).ForTenant("tenant-1")
	assert.Equal(t, "pa_color", port.AttributeKey("Color"))
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "catalog:product:t1:A1", productCacheKey("t1", "A1"))
	assert.Equal(t, "import:status:t1", statusKey("t1"))
	assert.Equal(t, "import:lock:t1", lockKey("t1"))
}
