package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assetmgt/auth"
	"assetmgt/models"
	"assetmgt/store"
)

type AssetInput struct {
	ProductName     string `json:"productName"`
	ProductType     string `json:"productType"`
	ProductImage    string `json:"productImage,omitempty"`
	ProductQuantity int    `json:"productQuantity"`
}

// AssetPatch carries the fields an HR may change; nil means unchanged.
type AssetPatch struct {
	ProductName     *string `json:"productName,omitempty"`
	ProductType     *string `json:"productType,omitempty"`
	ProductImage    *string `json:"productImage,omitempty"`
	ProductQuantity *int    `json:"productQuantity,omitempty"`
}

func (e *Engine) AddAsset(ctx context.Context, hr models.User, in AssetInput) (models.Asset, error) {
	name := strings.TrimSpace(in.ProductName)
	if name == "" {
		return models.Asset{}, fmt.Errorf("productName is required: %w", ErrInvalidInput)
	}
	if !models.ValidAssetType(in.ProductType) {
		return models.Asset{}, fmt.Errorf("productType %q: %w", in.ProductType, ErrInvalidInput)
	}
	if in.ProductQuantity < 0 {
		return models.Asset{}, fmt.Errorf("productQuantity must be >= 0: %w", ErrInvalidInput)
	}

	now := e.now()
	asset := models.Asset{
		ProductName:       name,
		ProductType:       in.ProductType,
		ProductImage:      in.ProductImage,
		ProductQuantity:   in.ProductQuantity,
		AvailableQuantity: in.ProductQuantity,
		HREmail:           hr.Email,
		CompanyName:       hr.CompanyName,
		DateAdded:         now,
		UpdatedAt:         now,
	}
	err := e.store.InsertAsset(ctx, &asset)
	observe("add_asset", err)
	if err != nil {
		return models.Asset{}, fmt.Errorf("insert asset: %w", err)
	}
	return asset, nil
}

// UpdateAsset applies patch to an asset of hr's company. Changing the total
// quantity shifts availableQuantity by the same amount and is refused when it
// would drop below the units currently handed out.
func (e *Engine) UpdateAsset(ctx context.Context, hr models.User, id primitive.ObjectID, patch AssetPatch) (models.Asset, error) {
	var updated models.Asset
	err := e.store.WithTransaction(ctx, func(ctx context.Context) error {
		asset, err := e.store.AssetByID(ctx, id)
		if err != nil {
			return notFound(err, "asset")
		}
		if asset.CompanyName != hr.CompanyName {
			return fmt.Errorf("asset: %w", ErrNotFound)
		}

		if patch.ProductName != nil {
			name := strings.TrimSpace(*patch.ProductName)
			if name == "" {
				return fmt.Errorf("productName is required: %w", ErrInvalidInput)
			}
			asset.ProductName = name
		}
		if patch.ProductType != nil {
			if !models.ValidAssetType(*patch.ProductType) {
				return fmt.Errorf("productType %q: %w", *patch.ProductType, ErrInvalidInput)
			}
			asset.ProductType = *patch.ProductType
		}
		if patch.ProductImage != nil {
			asset.ProductImage = *patch.ProductImage
		}
		if patch.ProductQuantity != nil {
			delta := *patch.ProductQuantity - asset.ProductQuantity
			if *patch.ProductQuantity < 0 || asset.AvailableQuantity+delta < 0 {
				return fmt.Errorf("productQuantity below units in use: %w", ErrInvalidInput)
			}
			asset.ProductQuantity = *patch.ProductQuantity
			asset.AvailableQuantity += delta
		}
		asset.UpdatedAt = e.now()

		if err := e.store.UpdateAsset(ctx, asset); err != nil {
			return notFound(err, "asset")
		}
		updated = asset
		return nil
	})
	observe("update_asset", err)
	return updated, err
}

func (e *Engine) DeleteAsset(ctx context.Context, hr models.User, id primitive.ObjectID) error {
	err := e.store.DeleteAsset(ctx, id, hr.CompanyName)
	observe("delete_asset", err)
	return notFound(err, "asset")
}

// ListAssets scopes an HR listing to their own company. Employees browse every
// company's inventory, since an approved request is what affiliates them; they
// may narrow it with f.CompanyNames.
func (e *Engine) ListAssets(ctx context.Context, user models.User, f store.AssetFilter, p store.Page) ([]models.Asset, int64, error) {
	if user.Role == auth.RoleHR.String() {
		f.CompanyNames = []string{user.CompanyName}
	}
	items, total, err := e.store.ListAssets(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	return items, total, nil
}
