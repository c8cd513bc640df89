package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

// ListProducts returns a profile's products, oldest first
func (s *Store) ListProducts(ctx context.Context, profileID uint, activeOnly bool) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Where("profile_id = ?", profileID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var products []models.Product
	if err := q.Order("id ASC").Find(&products).Error; err != nil {
		return nil, classify("list products", err)
	}
	return products, nil
}

// GetProduct looks a product up by id
func (s *Store) GetProduct(ctx context.Context, id uint) (models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return models.Product{}, classify("get product", err)
	}
	return p, nil
}

// CreateProduct adds a product to a profile
func (s *Store) CreateProduct(ctx context.Context, profileID uint, in ProductInput) (models.Product, error) {
	const op = "create product"
	if err := s.check(op, in); err != nil {
		return models.Product{}, err
	}
	product := models.Product{
		ProfileID:   profileID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    in.ImageURL,
		IsActive:    boolOr(in.IsActive, true),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Profile{}, profileID).Error; err != nil {
			return err
		}
		return tx.Create(&product).Error
	})
	if err != nil {
		return models.Product{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableProducts, changefeed.ActionInsert, profileID, product, nil})
	return product, nil
}

// UpdateProduct applies a patch
func (s *Store) UpdateProduct(ctx context.Context, id uint, patch ProductPatch) (models.Product, error) {
	const op = "update product"
	if err := s.check(op, patch); err != nil {
		return models.Product{}, err
	}
	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, id).Error; err != nil {
			return err
		}
		if patch.Name != nil {
			product.Name = *patch.Name
		}
		if patch.Description != nil {
			product.Description = *patch.Description
		}
		if patch.Price != nil {
			product.Price = *patch.Price
		}
		if patch.ImageURL != nil {
			product.ImageURL = *patch.ImageURL
		}
		if patch.IsActive != nil {
			product.IsActive = *patch.IsActive
		}
		return tx.Save(&product).Error
	})
	if err != nil {
		return models.Product{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableProducts, changefeed.ActionUpdate, product.ProfileID, product, nil})
	return product, nil
}

// ListTips returns a profile's tips, newest first
func (s *Store) ListTips(ctx context.Context, profileID uint) ([]models.Tip, error) {
	var tips []models.Tip
	err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).Order("id DESC").Find(&tips).Error
	if err != nil {
		return nil, classify("list tips", err)
	}
	return tips, nil
}

// GetTip looks a tip up by id
func (s *Store) GetTip(ctx context.Context, id uint) (models.Tip, error) {
	var t models.Tip
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return models.Tip{}, classify("get tip", err)
	}
	return t, nil
}

// CreateTip starts a pending tip to a profile
func (s *Store) CreateTip(ctx context.Context, profileID uint, in TipInput) (models.Tip, error) {
	const op = "create tip"
	if err := s.check(op, in); err != nil {
		return models.Tip{}, err
	}
	tip := models.Tip{
		ProfileID:    profileID,
		Amount:       in.Amount,
		Message:      in.Message,
		FromUsername: in.FromUsername,
		Status:       models.PaymentPending,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Profile{}, profileID).Error; err != nil {
			return err
		}
		return tx.Create(&tip).Error
	})
	if err != nil {
		return models.Tip{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableTips, changefeed.ActionInsert, profileID, tip, nil})
	return tip, nil
}

// AdvanceTip moves a tip along the payment flow
func (s *Store) AdvanceTip(ctx context.Context, id uint, upd PaymentUpdate) (models.Tip, error) {
	const op = "advance tip"
	if err := s.check(op, upd); err != nil {
		return models.Tip{}, err
	}
	var tip models.Tip
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tip, id).Error; err != nil {
			return err
		}
		if err := applyPayment(op, &tip.Status, &tip.PaymentID, &tip.TxID, upd); err != nil {
			return err
		}
		return tx.Save(&tip).Error
	})
	if err != nil {
		return models.Tip{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableTips, changefeed.ActionUpdate, tip.ProfileID, tip, nil})
	return tip, nil
}

// ListOrders returns the orders placed on a profile's products, newest first
func (s *Store) ListOrders(ctx context.Context, profileID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).Order("id DESC").Find(&orders).Error
	if err != nil {
		return nil, classify("list orders", err)
	}
	return orders, nil
}

// GetOrder looks an order up by id
func (s *Store) GetOrder(ctx context.Context, id uint) (models.Order, error) {
	var o models.Order
	if err := s.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return models.Order{}, classify("get order", err)
	}
	return o, nil
}

// CreateOrder starts a pending order for an active product at its current price
func (s *Store) CreateOrder(ctx context.Context, productID uint, in OrderInput) (models.Order, error) {
	const op = "create order"
	if err := s.check(op, in); err != nil {
		return models.Order{}, err
	}
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			return err
		}
		if !product.IsActive {
			return newError(KindInvalid, op, fmt.Errorf("product %d is not for sale", productID))
		}
		order = models.Order{
			ProfileID:     product.ProfileID,
			ProductID:     product.ID,
			BuyerUsername: in.BuyerUsername,
			Amount:        product.Price,
			Status:        models.PaymentPending,
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return models.Order{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableOrders, changefeed.ActionInsert, order.ProfileID, order, nil})
	return order, nil
}

// AdvanceOrder moves an order along the payment flow
func (s *Store) AdvanceOrder(ctx context.Context, id uint, upd PaymentUpdate) (models.Order, error) {
	const op = "advance order"
	if err := s.check(op, upd); err != nil {
		return models.Order{}, err
	}
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, id).Error; err != nil {
			return err
		}
		if err := applyPayment(op, &order.Status, &order.PaymentID, &order.TxID, upd); err != nil {
			return err
		}
		return tx.Save(&order).Error
	})
	if err != nil {
		return models.Order{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableOrders, changefeed.ActionUpdate, order.ProfileID, order, nil})
	return order, nil
}

func applyPayment(op string, status *models.PaymentStatus, paymentID, txID *string, upd PaymentUpdate) error {
	if !status.CanAdvanceTo(upd.Status) {
		return newError(KindConflict, op, fmt.Errorf("cannot move payment from %s to %s", *status, upd.Status))
	}
	*status = upd.Status
	if upd.PaymentID != "" {
		*paymentID = upd.PaymentID
	}
	if upd.TxID != "" {
		*txID = upd.TxID
	}
	return nil
}
