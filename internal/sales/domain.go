package sales

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Standard is the asset standard a sale moves.
type Standard string

const (
	StandardERC1155 Standard = "erc1155"
	StandardERC721  Standard = "erc721"
)

// Key identifies the single active sale an asset id can have.
type Key struct {
	Asset   common.Address
	TokenID uint256.Int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Asset.Hex(), k.TokenID.Dec())
}

// Sale represents a listing of an asset on the marketplace.
type Sale struct {
	ID             string
	Owner          common.Address
	AddressOfAsset common.Address
	TokenID        uint256.Int
	NumberOfAssets uint256.Int
	PriceOfAsset   uint256.Int
	PaymentToken   common.Address
	IsERC1155      bool
	IsERC721       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int
}

func (s *Sale) Key() Key {
	return Key{Asset: s.AddressOfAsset, TokenID: s.TokenID}
}

// Active reports whether units remain; a sale with no units is cleared.
func (s *Sale) Active() bool {
	return !s.NumberOfAssets.IsZero()
}

func (s *Sale) Standard() Standard {
	if s.IsERC721 {
		return StandardERC721
	}
	return StandardERC1155
}

func (s *Sale) clone() *Sale {
	c := *s
	return &c
}

// saleJSON is the wire and storage form of a Sale; 256-bit numbers travel as
// decimal strings.
type saleJSON struct {
	ID             string         `json:"id"`
	Owner          common.Address `json:"owner"`
	AddressOfAsset common.Address `json:"address_of_asset"`
	TokenID        string         `json:"token_id"`
	NumberOfAssets string         `json:"number_of_assets"`
	PriceOfAsset   string         `json:"price_of_asset"`
	PaymentToken   common.Address `json:"payment_token"`
	IsERC1155      bool           `json:"is_erc1155"`
	IsERC721       bool           `json:"is_erc721"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Version        int            `json:"version"`
}

func (s Sale) MarshalJSON() ([]byte, error) {
	return json.Marshal(saleJSON{
		ID:             s.ID,
		Owner:          s.Owner,
		AddressOfAsset: s.AddressOfAsset,
		TokenID:        s.TokenID.Dec(),
		NumberOfAssets: s.NumberOfAssets.Dec(),
		PriceOfAsset:   s.PriceOfAsset.Dec(),
		PaymentToken:   s.PaymentToken,
		IsERC1155:      s.IsERC1155,
		IsERC721:       s.IsERC721,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		Version:        s.Version,
	})
}

func (s *Sale) UnmarshalJSON(b []byte) error {
	var raw saleJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	tokenID, err := uint256.FromDecimal(raw.TokenID)
	if err != nil {
		return fmt.Errorf("token_id: %w", err)
	}
	quantity, err := uint256.FromDecimal(raw.NumberOfAssets)
	if err != nil {
		return fmt.Errorf("number_of_assets: %w", err)
	}
	price, err := uint256.FromDecimal(raw.PriceOfAsset)
	if err != nil {
		return fmt.Errorf("price_of_asset: %w", err)
	}
	*s = Sale{
		ID:             raw.ID,
		Owner:          raw.Owner,
		AddressOfAsset: raw.AddressOfAsset,
		TokenID:        *tokenID,
		NumberOfAssets: *quantity,
		PriceOfAsset:   *price,
		PaymentToken:   raw.PaymentToken,
		IsERC1155:      raw.IsERC1155,
		IsERC721:       raw.IsERC721,
		CreatedAt:      raw.CreatedAt,
		UpdatedAt:      raw.UpdatedAt,
		Version:        raw.Version,
	}
	return nil
}

// Purchase is the outcome of a successful buy.
type Purchase struct {
	SaleID     string         `json:"sale_id"`
	Buyer      common.Address `json:"buyer"`
	Seller     common.Address `json:"seller"`
	Quantity   string         `json:"quantity"`
	TotalPrice string         `json:"total_price"`
	Remaining  string         `json:"remaining"`
	Cleared    bool           `json:"cleared"`
	TxHash     common.Hash    `json:"tx_hash"`
}

// SearchFilter narrows SearchSales; zero fields match everything.
type SearchFilter struct {
	Owner    *common.Address
	Asset    *common.Address
	Standard Standard
}

// SalesMetadata aggregates a search result.
type SalesMetadata struct {
	Quantity    int    `json:"quantity"`
	ERC1155     int    `json:"erc1155"`
	ERC721      int    `json:"erc721"`
	ListedUnits string `json:"listed_units"`
}
