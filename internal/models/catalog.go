package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "DRAFT"
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// ProductType distinguishes plain products from products that carry variants
type ProductType string

const (
	ProductTypeSimple   ProductType = "SIMPLE"
	ProductTypeVariable ProductType = "VARIABLE"
)

// ProductAttribute is one attribute of a variable product as stored in the catalog
type ProductAttribute struct {
	Name      string   `json:"name"`
	Key       string   `json:"key"`
	Options   []string `json:"options"`
	Position  int      `json:"position"`
	Visible   bool     `json:"visible"`
	Variation bool     `json:"variation"`
}

// Product represents a catalog product (the parent entity of an import row)
type Product struct {
	ID               uuid.UUID         `json:"id" gorm:"type:uuid;primary_key"`
	TenantID         string            `json:"tenantId" gorm:"not null;index:idx_products_tenant_sku,unique"`
	Type             ProductType       `json:"type" gorm:"not null;default:'SIMPLE'"`
	Name             string            `json:"name" gorm:"not null"`
	Slug             *string           `json:"slug,omitempty"`
	SKU              string            `json:"sku" gorm:"not null;index:idx_products_tenant_sku,unique"`
	Description      *string           `json:"description,omitempty"`
	ShortDescription *string           `json:"shortDescription,omitempty"`
	Status           ProductStatus     `json:"status" gorm:"not null;default:'DRAFT'"`
	Attributes       datatypes.JSON    `json:"attributes,omitempty" gorm:"type:jsonb"`
	Variants         []*ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// IsVariable reports whether the product can own variants
func (p *Product) IsVariable() bool {
	return p.Type == ProductTypeVariable
}

// AttributeList decodes the stored attribute list
func (p *Product) AttributeList() ([]ProductAttribute, error) {
	if len(p.Attributes) == 0 {
		return []ProductAttribute{}, nil
	}
	var attrs []ProductAttribute
	if err := json.Unmarshal(p.Attributes, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// SetAttributeList replaces the stored attribute list
func (p *Product) SetAttributeList(attrs []ProductAttribute) error {
	if attrs == nil {
		attrs = []ProductAttribute{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	p.Attributes = datatypes.JSON(data)
	return nil
}

// ProductVariant represents a child variant of a variable product.
// SKU is optional; the partial unique index only covers non-empty SKUs.
type ProductVariant struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	TenantID      string         `json:"tenantId" gorm:"not null;index;uniqueIndex:idx_variants_tenant_sku,where:sku <> ''"`
	ProductID     uuid.UUID      `json:"productId" gorm:"type:uuid;not null;index"`
	SKU           string         `json:"sku" gorm:"not null;default:'';uniqueIndex:idx_variants_tenant_sku,where:sku <> ''"`
	RegularPrice  *string        `json:"regularPrice,omitempty"`
	ManageStock   bool           `json:"manageStock" gorm:"not null;default:false"`
	StockQuantity *int           `json:"stockQuantity,omitempty"`
	Attributes    datatypes.JSON `json:"attributes,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// TableName returns the table name for the ProductVariant model
func (ProductVariant) TableName() string {
	return "product_variants"
}

// Selection decodes the variant's attribute selection (canonical key -> option)
func (v *ProductVariant) Selection() (map[string]string, error) {
	selection := make(map[string]string)
	if len(v.Attributes) == 0 {
		return selection, nil
	}
	if err := json.Unmarshal(v.Attributes, &selection); err != nil {
		return nil, err
	}
	return selection, nil
}

// SetSelection replaces the variant's attribute selection
func (v *ProductVariant) SetSelection(selection map[string]string) error {
	data, err := json.Marshal(selection)
	if err != nil {
		return err
	}
	v.Attributes = datatypes.JSON(data)
	return nil
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}
