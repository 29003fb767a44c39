package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/repos"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

// Catalog is the narrow read interface the group-buy core consumes. The
// result is snapshotted onto the group at creation time.
type Catalog interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*types.Product, error)
}

// CatalogService adds the minimal admin surface for maintaining group-buy
// products on top of the Catalog read path.
type CatalogService interface {
	Catalog
	CreateProduct(ctx context.Context, product *types.Product) (*types.Product, error)
	UpdateProduct(ctx context.Context, product *types.Product) (*types.Product, error)
	ListProducts(ctx context.Context, groupBuyOnly bool, limit int) ([]*types.Product, error)
}

type catalogService struct {
	db       *gorm.DB
	log      *logger.Logger
	products repos.ProductRepo
}

func NewCatalogService(db *gorm.DB, baseLog *logger.Logger, productRepo repos.ProductRepo) CatalogService {
	return &catalogService{
		db:       db,
		log:      baseLog.With("service", "CatalogService"),
		products: productRepo,
	}
}

func (s *catalogService) GetProduct(ctx context.Context, productID uuid.UUID) (*types.Product, error) {
	product, err := s.products.GetByID(ctx, nil, productID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if product == nil {
		return nil, apierr.NotFoundf("product %s not found", productID)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, product *types.Product) (*types.Product, error) {
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	product.ID = uuid.New()
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	created, err := s.products.Create(ctx, nil, product)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return created, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, product *types.Product) (*types.Product, error) {
	if product == nil || product.ID == uuid.Nil {
		return nil, apierr.Validationf("product id required")
	}
	existing, err := s.products.GetByID(ctx, nil, product.ID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if existing == nil {
		return nil, apierr.NotFoundf("product %s not found", product.ID)
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	if err := s.products.Update(ctx, nil, product); err != nil {
		return nil, apierr.Internal(err)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, groupBuyOnly bool, limit int) ([]*types.Product, error) {
	products, err := s.products.List(ctx, nil, groupBuyOnly, limit)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return products, nil
}

func validateProduct(product *types.Product) error {
	if product == nil {
		return apierr.Validationf("product required")
	}
	if strings.TrimSpace(product.Name) == "" {
		return apierr.Validationf("product name required")
	}
	if product.BasePrice <= 0 {
		return apierr.Validationf("base price must be positive")
	}
	if product.MinQty < 1 {
		return apierr.Validationf("min qty must be at least 1")
	}
	if product.TargetQty < product.MinQty {
		return apierr.Validationf("target qty cannot be below min qty")
	}
	if product.MaxQty != nil && *product.MaxQty < product.TargetQty {
		return apierr.Validationf("max qty cannot be below target qty")
	}
	for _, tier := range product.PriceTiers {
		if tier.MinQty < 1 || tier.Price <= 0 {
			return apierr.Validationf("price tiers need min qty >= 1 and a positive price")
		}
		if tier.MaxQty != nil && *tier.MaxQty < tier.MinQty {
			return apierr.Validationf("price tier max qty cannot be below its min qty")
		}
	}
	return nil
}
