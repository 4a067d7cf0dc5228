package sales

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"nft_marketplace/internal/ledger"
	"nft_marketplace/internal/tokens"
)

// ContractKind is how the marketplace appears in the ledger's contract directory.
const ContractKind = "NFTMarketplace"

var _ ledger.Contract = (*Service)(nil)

// Service is the sale registry. It is deployed on the ledger as a contract so
// that sellers and buyers can authorize its address on their tokens.
type Service struct {
	storage Storage
	chain   *ledger.Ledger
	address common.Address
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewService creates a new Service and deploys it on chain from deployer.
// metrics may be nil.
func NewService(storage Storage, chain *ledger.Ledger, deployer common.Address, logger *zap.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
		defer logger.Sync() // flushes buffer, if any
	}

	s := &Service{
		storage: storage,
		chain:   chain,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
	s.address, _ = chain.Deploy(deployer, func(common.Address) ledger.Contract { return s })

	active, err := s.dropStaleSales(context.Background())
	if err != nil {
		logger.Warn("failed to check stored sales against the ledger", zap.Error(err))
	}
	metrics.setActive(active)
	return s
}

// dropStaleSales removes stored sales the ledger no longer backs, as after a
// restart over a persistent store, and returns how many remain.
func (s *Service) dropStaleSales(ctx context.Context) (int, error) {
	stored, err := s.storage.GetAll()
	if err != nil || len(stored) == 0 {
		return len(stored), err
	}

	remaining := len(stored)
	_, err = s.chain.Execute(ctx, s.address, func(tx *ledger.Tx) error {
		for _, sale := range stored {
			if sale.Active() && s.backed(tx, sale) {
				continue
			}
			if err := s.expire(tx, sale); err != nil {
				return err
			}
			remaining--
		}
		return nil
	})
	if err != nil {
		return len(stored), err
	}
	if dropped := len(stored) - remaining; dropped > 0 {
		s.logger.Warn("dropped stale sales", zap.Int("dropped", dropped), zap.Int("remaining", remaining))
	}
	return remaining, nil
}

func (s *Service) Kind() string { return ContractKind }

// Address is the marketplace's ledger address, the one sellers and buyers approve.
func (s *Service) Address() common.Address { return s.address }

// CreateSaleMultiQuantity lists quantity units of an ERC1155 id. The caller
// keeps the units until a purchase; the marketplace must be its operator.
func (s *Service) CreateSaleMultiQuantity(ctx context.Context, caller, asset common.Address, tokenID, quantity, unitPrice *uint256.Int, paymentToken common.Address) (*Sale, error) {
	var sale *Sale
	var expired bool
	_, err := s.chain.Execute(ctx, caller, func(tx *ledger.Tx) error {
		if quantity.IsZero() {
			return fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
		}
		if unitPrice.IsZero() {
			return fmt.Errorf("%w: price must be greater than zero", ErrValidation)
		}
		multi, err := contractAs[*tokens.ERC1155](tx, asset, "asset")
		if err != nil {
			return err
		}
		if _, err := contractAs[*tokens.ERC20](tx, paymentToken, "payment token"); err != nil {
			return err
		}
		key := Key{Asset: asset, TokenID: *tokenID}
		if expired, err = s.ensureNoActiveSale(tx, key); err != nil {
			return err
		}
		if !multi.IsApprovedForAll(caller, s.address) {
			return fmt.Errorf("%w: marketplace is not an operator of %s for %s", ErrAuthorization, asset.Hex(), caller.Hex())
		}
		if held := multi.BalanceOf(caller, tokenID); held.Lt(quantity) {
			return fmt.Errorf("%w: %s holds %s of token %s, cannot list %s",
				ErrAuthorization, caller.Hex(), held.Dec(), tokenID.Dec(), quantity.Dec())
		}

		sale = s.newSale(caller, key, quantity, unitPrice, paymentToken)
		sale.IsERC1155 = true
		return s.list(tx, sale)
	})
	if err != nil {
		return nil, s.fail("create_sale_erc1155", err,
			zap.Stringer("seller", caller), zap.Stringer("asset", asset), zap.String("token_id", tokenID.Dec()))
	}

	if expired {
		s.metrics.salesExpired(1)
	}
	s.metrics.saleCreated(StandardERC1155)
	s.logger.Info("sale created", zap.String("sale_id", sale.ID), zap.Any("sale", sale))
	return sale, nil
}

// CreateSaleUniqueAsset lists a single ERC721 id owned by the caller.
func (s *Service) CreateSaleUniqueAsset(ctx context.Context, caller, asset common.Address, tokenID, unitPrice *uint256.Int, paymentToken common.Address) (*Sale, error) {
	var sale *Sale
	var expired bool
	_, err := s.chain.Execute(ctx, caller, func(tx *ledger.Tx) error {
		if unitPrice.IsZero() {
			return fmt.Errorf("%w: price must be greater than zero", ErrValidation)
		}
		nft, err := contractAs[*tokens.ERC721](tx, asset, "asset")
		if err != nil {
			return err
		}
		if _, err := contractAs[*tokens.ERC20](tx, paymentToken, "payment token"); err != nil {
			return err
		}
		key := Key{Asset: asset, TokenID: *tokenID}
		if expired, err = s.ensureNoActiveSale(tx, key); err != nil {
			return err
		}
		owner, err := nft.OwnerOf(tokenID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAuthorization, err)
		}
		if owner != caller {
			return fmt.Errorf("%w: token %s is owned by %s", ErrAuthorization, tokenID.Dec(), owner.Hex())
		}
		if !nft.CanTransfer(s.address, tokenID) {
			return fmt.Errorf("%w: marketplace is not approved for token %s", ErrAuthorization, tokenID.Dec())
		}

		sale = s.newSale(caller, key, uint256.NewInt(1), unitPrice, paymentToken)
		sale.IsERC721 = true
		return s.list(tx, sale)
	})
	if err != nil {
		return nil, s.fail("create_sale_erc721", err,
			zap.Stringer("seller", caller), zap.Stringer("asset", asset), zap.String("token_id", tokenID.Dec()))
	}

	if expired {
		s.metrics.salesExpired(1)
	}
	s.metrics.saleCreated(StandardERC721)
	s.logger.Info("sale created", zap.String("sale_id", sale.ID), zap.Any("sale", sale))
	return sale, nil
}

// BuySaleMultiQuantity buys quantity units of an ERC1155 sale. Payment and
// asset move together or not at all.
func (s *Service) BuySaleMultiQuantity(ctx context.Context, buyer, asset common.Address, tokenID, quantity *uint256.Int) (*Purchase, error) {
	var purchase *Purchase
	receipt, err := s.chain.Execute(ctx, buyer, func(tx *ledger.Tx) error {
		if quantity.IsZero() {
			return fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
		}
		sale, err := s.activeSale(Key{Asset: asset, TokenID: *tokenID})
		if err != nil {
			return err
		}
		if !sale.IsERC1155 {
			return fmt.Errorf("%w: sale %s is for a unique asset", ErrValidation, sale.ID)
		}
		if sale.Owner == buyer {
			return fmt.Errorf("%w: seller cannot buy its own sale", ErrValidation)
		}
		if sale.NumberOfAssets.Lt(quantity) {
			return fmt.Errorf("%w: requested %s, %s remaining", ErrInsufficientQuantity, quantity.Dec(), sale.NumberOfAssets.Dec())
		}
		total, overflow := new(uint256.Int).MulOverflow(quantity, &sale.PriceOfAsset)
		if overflow {
			return fmt.Errorf("%w: %s x %s overflows", ErrValidation, quantity.Dec(), sale.PriceOfAsset.Dec())
		}

		coin, err := contractAs[*tokens.ERC20](tx, sale.PaymentToken, "payment token")
		if err != nil {
			return err
		}
		multi, err := contractAs[*tokens.ERC1155](tx, asset, "asset")
		if err != nil {
			return err
		}
		if !multi.IsApprovedForAll(sale.Owner, s.address) {
			return fmt.Errorf("%w: seller %s no longer authorizes the marketplace", ErrAuthorization, sale.Owner.Hex())
		}

		err = tx.Call(s.address, func(tx *ledger.Tx) error {
			if err := coin.TransferFrom(tx, buyer, sale.Owner, total); err != nil {
				return paymentError(err)
			}
			if err := multi.SafeTransferFrom(tx, sale.Owner, buyer, tokenID, quantity); err != nil {
				return assetError(err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		purchase, err = s.settle(tx, sale, buyer, quantity, total)
		return err
	})
	if err != nil {
		return nil, s.fail("buy_sale_erc1155", err,
			zap.Stringer("buyer", buyer), zap.Stringer("asset", asset), zap.String("token_id", tokenID.Dec()))
	}

	purchase.TxHash = receipt.TxHash
	s.metrics.saleFulfilled(StandardERC1155, purchase.Cleared)
	s.logger.Info("sale fulfilled", zap.String("sale_id", purchase.SaleID), zap.Any("purchase", purchase))
	return purchase, nil
}

// BuySaleUniqueAsset buys the ERC721 id of a sale, clearing it.
func (s *Service) BuySaleUniqueAsset(ctx context.Context, buyer, asset common.Address, tokenID *uint256.Int) (*Purchase, error) {
	var purchase *Purchase
	receipt, err := s.chain.Execute(ctx, buyer, func(tx *ledger.Tx) error {
		sale, err := s.activeSale(Key{Asset: asset, TokenID: *tokenID})
		if err != nil {
			return err
		}
		if !sale.IsERC721 {
			return fmt.Errorf("%w: sale %s is for a multi-quantity asset", ErrValidation, sale.ID)
		}
		if sale.Owner == buyer {
			return fmt.Errorf("%w: seller cannot buy its own sale", ErrValidation)
		}

		coin, err := contractAs[*tokens.ERC20](tx, sale.PaymentToken, "payment token")
		if err != nil {
			return err
		}
		nft, err := contractAs[*tokens.ERC721](tx, asset, "asset")
		if err != nil {
			return err
		}
		if owner, err := nft.OwnerOf(tokenID); err != nil || owner != sale.Owner {
			return fmt.Errorf("%w: seller %s no longer owns token %s", ErrAuthorization, sale.Owner.Hex(), tokenID.Dec())
		}
		if !nft.CanTransfer(s.address, tokenID) {
			return fmt.Errorf("%w: seller %s no longer authorizes the marketplace", ErrAuthorization, sale.Owner.Hex())
		}

		price := sale.PriceOfAsset
		err = tx.Call(s.address, func(tx *ledger.Tx) error {
			if err := coin.TransferFrom(tx, buyer, sale.Owner, &price); err != nil {
				return paymentError(err)
			}
			if err := nft.TransferFrom(tx, sale.Owner, buyer, tokenID); err != nil {
				return assetError(err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		purchase, err = s.settle(tx, sale, buyer, uint256.NewInt(1), &price)
		return err
	})
	if err != nil {
		return nil, s.fail("buy_sale_erc721", err,
			zap.Stringer("buyer", buyer), zap.Stringer("asset", asset), zap.String("token_id", tokenID.Dec()))
	}

	purchase.TxHash = receipt.TxHash
	s.metrics.saleFulfilled(StandardERC721, purchase.Cleared)
	s.logger.Info("sale fulfilled", zap.String("sale_id", purchase.SaleID), zap.Any("purchase", purchase))
	return purchase, nil
}

// GetSale returns the active sale for (asset, tokenID) or ErrNotFound.
func (s *Service) GetSale(ctx context.Context, asset common.Address, tokenID *uint256.Int) (*Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var sale *Sale
	err := s.chain.View(func() error {
		var err error
		sale, err = s.activeSale(Key{Asset: asset, TokenID: *tokenID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// SearchSales lists active sales matching filter, oldest first.
func (s *Service) SearchSales(ctx context.Context, filter SearchFilter) ([]*Sale, SalesMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, SalesMetadata{}, err
	}
	switch filter.Standard {
	case "", StandardERC1155, StandardERC721:
	default:
		s.logger.Warn("invalid standard filter provided", zap.String("standard", string(filter.Standard)))
		return nil, SalesMetadata{}, fmt.Errorf("%w: unknown standard %q", ErrValidation, filter.Standard)
	}

	var all []*Sale
	err := s.chain.View(func() error {
		var err error
		all, err = s.storage.GetAll()
		return err
	})
	if err != nil {
		s.logger.Error("failed to get all sales from storage", zap.Error(err))
		return nil, SalesMetadata{}, fmt.Errorf("failed to retrieve sales: %w", err)
	}

	results := make([]*Sale, 0)
	var units uint256.Int
	metadata := SalesMetadata{}
	for _, sale := range all {
		if !sale.Active() {
			continue
		}
		if filter.Owner != nil && sale.Owner != *filter.Owner {
			continue
		}
		if filter.Asset != nil && sale.AddressOfAsset != *filter.Asset {
			continue
		}
		if filter.Standard != "" && sale.Standard() != filter.Standard {
			continue
		}

		results = append(results, sale)
		metadata.Quantity++
		units.Add(&units, &sale.NumberOfAssets)
		switch sale.Standard() {
		case StandardERC1155:
			metadata.ERC1155++
		case StandardERC721:
			metadata.ERC721++
		}
	}
	metadata.ListedUnits = units.Dec()

	slices.SortFunc(results, func(a, b *Sale) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Key().String(), b.Key().String())
	})

	s.logger.Debug("sales search completed",
		zap.Int("results_count", len(results)),
		zap.Any("metadata", metadata),
	)
	return results, metadata, nil
}

func (s *Service) newSale(owner common.Address, key Key, quantity, price *uint256.Int, paymentToken common.Address) *Sale {
	now := s.now()
	return &Sale{
		ID:             uuid.NewString(),
		Owner:          owner,
		AddressOfAsset: key.Asset,
		TokenID:        key.TokenID,
		NumberOfAssets: *quantity,
		PriceOfAsset:   *price,
		PaymentToken:   paymentToken,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}
}

func (s *Service) list(tx *ledger.Tx, sale *Sale) error {
	if err := s.put(tx, sale); err != nil {
		return fmt.Errorf("failed to save sale: %w", err)
	}
	tx.Emit(s.address, "SaleCreated", map[string]string{
		"saleId":       sale.ID,
		"owner":        sale.Owner.Hex(),
		"asset":        sale.AddressOfAsset.Hex(),
		"tokenId":      sale.TokenID.Dec(),
		"quantity":     sale.NumberOfAssets.Dec(),
		"price":        sale.PriceOfAsset.Dec(),
		"paymentToken": sale.PaymentToken.Hex(),
		"standard":     string(sale.Standard()),
	})
	return nil
}

// settle records a purchase of quantity units against sale, clearing it when
// nothing remains.
func (s *Service) settle(tx *ledger.Tx, sale *Sale, buyer common.Address, quantity, total *uint256.Int) (*Purchase, error) {
	updated := sale.clone()
	updated.NumberOfAssets.Sub(&sale.NumberOfAssets, quantity)
	updated.UpdatedAt = s.now()
	updated.Version++

	cleared := !updated.Active()
	var err error
	if cleared {
		err = s.remove(tx, sale.Key())
	} else {
		err = s.put(tx, updated)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update sale: %w", err)
	}

	p := &Purchase{
		SaleID:     sale.ID,
		Buyer:      buyer,
		Seller:     sale.Owner,
		Quantity:   quantity.Dec(),
		TotalPrice: total.Dec(),
		Remaining:  updated.NumberOfAssets.Dec(),
		Cleared:    cleared,
	}
	tx.Emit(s.address, "SaleFulfilled", map[string]string{
		"saleId":    p.SaleID,
		"buyer":     buyer.Hex(),
		"seller":    p.Seller.Hex(),
		"asset":     sale.AddressOfAsset.Hex(),
		"tokenId":   sale.TokenID.Dec(),
		"quantity":  p.Quantity,
		"total":     p.TotalPrice,
		"remaining": p.Remaining,
	})
	return p, nil
}

// ensureNoActiveSale rejects a listing for key while a sale the ledger still
// backs exists. A stale sale is expired in tx and reported as true.
func (s *Service) ensureNoActiveSale(tx *ledger.Tx, key Key) (bool, error) {
	existing, err := s.storage.Read(key)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	case !existing.Active():
		return false, nil
	case s.backed(tx, existing):
		return false, fmt.Errorf("%w: %s listed by %s", ErrSaleAlreadyActive, key, existing.Owner.Hex())
	}
	return true, s.expire(tx, existing)
}

// backed reports whether sale could still be bought: the seller holds the
// asset and the marketplace may still move it.
func (s *Service) backed(tx *ledger.Tx, sale *Sale) bool {
	c, err := tx.Contract(sale.AddressOfAsset)
	if err != nil {
		return false
	}
	id := sale.TokenID
	switch t := c.(type) {
	case *tokens.ERC1155:
		return sale.IsERC1155 &&
			t.IsApprovedForAll(sale.Owner, s.address) &&
			!t.BalanceOf(sale.Owner, &id).IsZero()
	case *tokens.ERC721:
		owner, err := t.OwnerOf(&id)
		return sale.IsERC721 && err == nil && owner == sale.Owner && t.CanTransfer(s.address, &id)
	}
	return false
}

func (s *Service) expire(tx *ledger.Tx, sale *Sale) error {
	if err := s.remove(tx, sale.Key()); err != nil {
		return fmt.Errorf("failed to expire sale: %w", err)
	}
	tx.Emit(s.address, "SaleExpired", map[string]string{
		"saleId":    sale.ID,
		"owner":     sale.Owner.Hex(),
		"asset":     sale.AddressOfAsset.Hex(),
		"tokenId":   sale.TokenID.Dec(),
		"remaining": sale.NumberOfAssets.Dec(),
	})
	return nil
}

func (s *Service) activeSale(key Key) (*Sale, error) {
	sale, err := s.storage.Read(key)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	if !sale.Active() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return sale, nil
}

// put and remove journal the previous record so a reverted transaction
// leaves storage as it found it.
func (s *Service) put(tx *ledger.Tx, sale *Sale) error {
	prev, err := s.storage.Read(sale.Key())
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := s.storage.Set(sale); err != nil {
		return err
	}
	tx.OnRevert(func() { s.restore(sale.Key(), prev) })
	return nil
}

func (s *Service) remove(tx *ledger.Tx, key Key) error {
	prev, err := s.storage.Read(key)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(key); err != nil {
		return err
	}
	tx.OnRevert(func() { s.restore(key, prev) })
	return nil
}

func (s *Service) restore(key Key, prev *Sale) {
	var err error
	if prev == nil {
		err = s.storage.Delete(key)
	} else {
		err = s.storage.Set(prev)
	}
	if err != nil {
		s.logger.Error("failed to restore sale after revert", zap.Stringer("key", key), zap.Error(err))
	}
}

func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	s.metrics.operationFailed(op)
	s.logger.Warn("sale operation rejected", append(fields, zap.String("operation", op), zap.Error(err))...)
	return err
}

func contractAs[T ledger.Contract](tx *ledger.Tx, addr common.Address, role string) (T, error) {
	var zero T
	c, err := tx.Contract(addr)
	if err != nil {
		return zero, fmt.Errorf("%w: %s: %w", ErrValidation, role, err)
	}
	typed, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s %s is an %s contract", ErrValidation, role, addr.Hex(), c.Kind())
	}
	return typed, nil
}

func paymentError(err error) error {
	if errors.Is(err, tokens.ErrInsufficientBalance) || errors.Is(err, tokens.ErrInsufficientAllowance) {
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}
	return err
}

func assetError(err error) error {
	switch {
	case errors.Is(err, tokens.ErrNotApproved), errors.Is(err, tokens.ErrNotOwner):
		return fmt.Errorf("%w: %w", ErrAuthorization, err)
	case errors.Is(err, tokens.ErrInsufficientBalance):
		return fmt.Errorf("%w: seller: %w", ErrInsufficientQuantity, err)
	}
	return err
}
