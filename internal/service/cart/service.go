package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

var (
	ErrInvalidItem     = errors.New("cart item needs a name and a non-negative price")
	ErrIndexOutOfRange = errors.New("cart index out of range")
)

// Service manages carts. The browser cart lives in the caller's client
// scope; signed-in carts live in the CloudStore.
type Service struct {
	cloud CloudStore
	mu    sync.Mutex
}

// NewService creates a cart service over cloud.
func NewService(cloud CloudStore) *Service {
	return &Service{cloud: cloud}
}

// Items returns the cart for uid, or the browser cart when uid is empty.
func (s *Service) Items(ctx context.Context, scope *local.Adapter, uid string) ([]Item, error) {
	if uid != "" {
		return s.cloud.Load(ctx, uid)
	}
	return local.ReadList[Item](ctx, scope, local.KeyCart), nil
}

// Add appends an item. Signed-in carts merge it into the matching line.
func (s *Service) Add(ctx context.Context, scope *local.Adapter, uid string, item Item) ([]Item, error) {
	if item.Name == "" || item.Price < 0 {
		return nil, ErrInvalidItem
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if uid != "" {
		current, err := s.cloud.Load(ctx, uid)
		if err != nil {
			return nil, err
		}
		merged := Merge(current, []Item{item})
		if err := s.cloud.Save(ctx, uid, merged); err != nil {
			return nil, err
		}
		return merged, nil
	}
	items := local.ReadList[Item](ctx, scope, local.KeyCart)
	items = append(items, item)
	if err := local.WriteList(ctx, scope, local.KeyCart, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Remove deletes the line at index.
func (s *Service) Remove(ctx context.Context, scope *local.Adapter, uid string, index int) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []Item
	if uid != "" {
		loaded, err := s.cloud.Load(ctx, uid)
		if err != nil {
			return nil, err
		}
		items = loaded
	} else {
		items = local.ReadList[Item](ctx, scope, local.KeyCart)
	}
	if index < 0 || index >= len(items) {
		return nil, ErrIndexOutOfRange
	}
	items = append(items[:index], items[index+1:]...)

	if uid != "" {
		if err := s.cloud.Save(ctx, uid, items); err != nil {
			return nil, err
		}
		return items, nil
	}
	if err := local.WriteList(ctx, scope, local.KeyCart, items); err != nil {
		return nil, err
	}
	return items, nil
}

// OnAuthStateChanged handles a sign-in state notification for the browser
// behind scope. When uid differs from the last signed-in user the browser
// cart is merged into the cloud cart and cleared. Repeated notifications for
// the same uid are no-ops. An empty uid records a sign-out.
func (s *Service) OnAuthStateChanged(ctx context.Context, scope *local.Adapter, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, _ := local.ReadValue[string](ctx, scope, local.KeyCartOwner)
	if uid == "" {
		if owner == "" {
			return false, nil
		}
		return false, scope.Remove(ctx, local.KeyCartOwner)
	}
	if owner == uid {
		return false, nil
	}

	merged := false
	pending := local.ReadList[Item](ctx, scope, local.KeyCart)
	if len(pending) > 0 {
		cloud, err := s.cloud.Load(ctx, uid)
		if err != nil {
			return false, fmt.Errorf("load cloud cart: %w", err)
		}
		if err := s.cloud.Save(ctx, uid, Merge(cloud, pending)); err != nil {
			return false, fmt.Errorf("save cloud cart: %w", err)
		}
		if err := scope.Remove(ctx, local.KeyCart); err != nil {
			return false, err
		}
		merged = true
		log.Printf("[cart] merged %d local item(s) into cart of %s", len(pending), uid)
	}
	if err := local.WriteValue(ctx, scope, local.KeyCartOwner, uid); err != nil {
		return merged, err
	}
	return merged, nil
}
