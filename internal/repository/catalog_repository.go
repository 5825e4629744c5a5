package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog-import-service/internal/catalog"
	"catalog-import-service/internal/models"
)

// ProductCacheTTL is how long a product looked up by SKU stays cached
const ProductCacheTTL = 5 * time.Minute

// CatalogRepository is the Postgres-backed product catalog
type CatalogRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewCatalogRepository(db *gorm.DB, redis *redis.Client) *CatalogRepository {
	return &CatalogRepository{
		db:    db,
		redis: redis,
	}
}

// ForTenant returns the catalog port scoped to one tenant
func (r *CatalogRepository) ForTenant(tenantID string) catalog.Port {
	return &tenantCatalog{repo: r, tenantID: tenantID}
}

func productCacheKey(tenantID, sku string) string {
	return fmt.Sprintf("catalog:product:%s:%s", tenantID, sku)
}

func (r *CatalogRepository) FindProductBySKU(ctx context.Context, tenantID, sku string) (*models.Product, error) {
	cacheKey := productCacheKey(tenantID, sku)
	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var product models.Product
			if json.Unmarshal([]byte(val), &product) == nil {
				return &product, nil
			}
		}
	}

	var product models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sku = ?", tenantID, sku).
		First(&product).Error
	if err != nil {
		return nil, classifyDBError(err)
	}

	if r.redis != nil {
		if data, err := json.Marshal(product); err == nil {
			r.redis.Set(ctx, cacheKey, data, ProductCacheTTL)
		}
	}
	return &product, nil
}

// SaveProduct inserts the product when it has no ID yet, otherwise updates it
func (r *CatalogRepository) SaveProduct(ctx context.Context, tenantID string, product *models.Product) (*models.Product, error) {
	product.TenantID = tenantID
	db := r.db.WithContext(ctx).Omit(clause.Associations)

	var err error
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
		err = db.Create(product).Error
		if err != nil {
			product.ID = uuid.Nil
		}
	} else {
		err = db.Save(product).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("SKU %s already exists", product.SKU)
		}
		return nil, classifyDBError(err)
	}

	r.invalidateProductCache(ctx, tenantID, product.SKU)
	return product, nil
}

func (r *CatalogRepository) FindVariantBySKU(ctx context.Context, tenantID, sku string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sku = ?", tenantID, sku).
		First(&variant).Error
	if err != nil {
		return nil, classifyDBError(err)
	}
	return &variant, nil
}

// SaveVariant inserts the variant when it has no ID yet, otherwise updates it
func (r *CatalogRepository) SaveVariant(ctx context.Context, tenantID string, variant *models.ProductVariant) (*models.ProductVariant, error) {
	variant.TenantID = tenantID
	db := r.db.WithContext(ctx)

	var err error
	if variant.ID == uuid.Nil {
		variant.ID = uuid.New()
		err = db.Create(variant).Error
		if err != nil {
			variant.ID = uuid.Nil
		}
	} else {
		err = db.Save(variant).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("variant SKU %s already exists", variant.SKU)
		}
		return nil, classifyDBError(err)
	}
	return variant, nil
}

func (r *CatalogRepository) invalidateProductCache(ctx context.Context, tenantID, sku string) {
	if r.redis == nil {
		return
	}
	_ = r.redis.Del(ctx, productCacheKey(tenantID, sku)).Err()
}

// classifyDBError maps GORM and driver errors onto the catalog sentinels
func classifyDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return catalog.ErrNotFound
	}
	if isConnectionError(err) {
		return fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
	}
	return err
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection refused", "failed to connect", "server closed the connection", "broken pipe"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// tenantCatalog adapts CatalogRepository to catalog.Port for one tenant
type tenantCatalog struct {
	repo     *CatalogRepository
	tenantID string
}

func (c *tenantCatalog) FindProduct(ctx context.Context, sku string) (*models.Product, error) {
	return c.repo.FindProductBySKU(ctx, c.tenantID, sku)
}

func (c *tenantCatalog) SaveProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	return c.repo.SaveProduct(ctx, c.tenantID, product)
}

func (c *tenantCatalog) FindVariant(ctx context.Context, sku string) (*models.ProductVariant, error) {
	return c.repo.FindVariantBySKU(ctx, c.tenantID, sku)
}

func (c *tenantCatalog) SaveVariant(ctx context.Context, variant *models.ProductVariant) (*models.ProductVariant, error) {
	return c.repo.SaveVariant(ctx, c.tenantID, variant)
}

func (c *tenantCatalog) AttributeKey(name string) string {
	return catalog.AttributeKey(name)
}
