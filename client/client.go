// Package client is a Go client for the marketplace HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"resty.dev/v3"

	"nft_marketplace/api"
	"nft_marketplace/internal/ledger"
	"nft_marketplace/internal/sales"
)

// APIError is a non-2xx response. errors.Is matches it against the sales
// error taxonomy by status code; the message only separates the two 409s.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace api: %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	alreadyActive := e.StatusCode == http.StatusConflict &&
		strings.Contains(e.Message, sales.ErrSaleAlreadyActive.Error())

	switch target {
	case sales.ErrSaleAlreadyActive:
		return alreadyActive
	case sales.ErrValidation:
		return e.StatusCode == http.StatusBadRequest || alreadyActive
	case sales.ErrAuthorization:
		return e.StatusCode == http.StatusForbidden
	case sales.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case sales.ErrInsufficientQuantity:
		return e.StatusCode == http.StatusConflict && !alreadyActive
	case sales.ErrInsufficientFunds:
		return e.StatusCode == http.StatusPaymentRequired
	}
	return false
}

// Client talks to one marketplace server. Write calls act as the caller set
// with As.
type Client struct {
	http   *resty.Client
	caller common.Address
}

func New(baseURL string) *Client {
	return &Client{http: resty.New().SetBaseURL(baseURL)}
}

// As returns a client that signs requests as caller. It shares the connection pool.
func (c *Client) As(caller common.Address) *Client {
	return &Client{http: c.http, caller: caller}
}

func (c *Client) Close() error {
	return c.http.Close()
}

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if c.caller != (common.Address{}) {
		r.SetHeader(api.CallerHeader, c.caller.Hex())
	}
	return r
}

func check(res *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !res.IsError() {
		return nil
	}
	var body struct {
		Error string `json:"error"`
	}
	msg := res.String()
	if json.Unmarshal([]byte(msg), &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: res.StatusCode(), Message: msg}
}

func (c *Client) CreateSale1155(ctx context.Context, asset common.Address, tokenID, quantity, price *uint256.Int, paymentToken common.Address) (*sales.Sale, error) {
	var sale sales.Sale
	err := check(c.request(ctx).
		SetBody(map[string]string{
			"asset":         asset.Hex(),
			"token_id":      tokenID.Dec(),
			"quantity":      quantity.Dec(),
			"price":         price.Dec(),
			"payment_token": paymentToken.Hex(),
		}).
		SetResult(&sale).
		Post("/sales/erc1155"))
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (c *Client) CreateSale721(ctx context.Context, asset common.Address, tokenID, price *uint256.Int, paymentToken common.Address) (*sales.Sale, error) {
	var sale sales.Sale
	err := check(c.request(ctx).
		SetBody(map[string]string{
			"asset":         asset.Hex(),
			"token_id":      tokenID.Dec(),
			"price":         price.Dec(),
			"payment_token": paymentToken.Hex(),
		}).
		SetResult(&sale).
		Post("/sales/erc721"))
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (c *Client) BuySale1155(ctx context.Context, asset common.Address, tokenID, quantity *uint256.Int) (*sales.Purchase, error) {
	var p sales.Purchase
	err := check(c.request(ctx).
		SetBody(map[string]string{
			"asset":    asset.Hex(),
			"token_id": tokenID.Dec(),
			"quantity": quantity.Dec(),
		}).
		SetResult(&p).
		Post("/sales/erc1155/buy"))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) BuySale721(ctx context.Context, asset common.Address, tokenID *uint256.Int) (*sales.Purchase, error) {
	var p sales.Purchase
	err := check(c.request(ctx).
		SetBody(map[string]string{
			"asset":    asset.Hex(),
			"token_id": tokenID.Dec(),
		}).
		SetResult(&p).
		Post("/sales/erc721/buy"))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetSale(ctx context.Context, asset common.Address, tokenID *uint256.Int) (*sales.Sale, error) {
	var sale sales.Sale
	err := check(c.request(ctx).
		SetResult(&sale).
		Get("/sales/" + asset.Hex() + "/" + tokenID.Dec()))
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// SearchResult is the body of GET /sales.
type SearchResult struct {
	Results  []*sales.Sale       `json:"results"`
	Metadata sales.SalesMetadata `json:"metadata"`
}

// SearchSales lists active sales; empty arguments are not filtered on.
func (c *Client) SearchSales(ctx context.Context, owner, asset *common.Address, standard sales.Standard) (*SearchResult, error) {
	r := c.request(ctx)
	if owner != nil {
		r.SetQueryParam("owner", owner.Hex())
	}
	if asset != nil {
		r.SetQueryParam("asset", asset.Hex())
	}
	if standard != "" {
		r.SetQueryParam("standard", string(standard))
	}
	var out SearchResult
	if err := check(r.SetResult(&out).Get("/sales")); err != nil {
		return nil, err
	}
	return &out, nil
}

// Mint mints on any token contract; unused arguments may be nil.
func (c *Client) Mint(ctx context.Context, token common.Address, to *common.Address, tokenID, amount *uint256.Int) (*ledger.Receipt, error) {
	body := map[string]string{}
	if to != nil {
		body["to"] = to.Hex()
	}
	if tokenID != nil {
		body["token_id"] = tokenID.Dec()
	}
	if amount != nil {
		body["amount"] = amount.Dec()
	}
	return c.send(ctx, "/tokens/"+token.Hex()+"/mint", body)
}

// Approve sets an ERC20 allowance (amount) or an ERC721 token approval (tokenID).
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount, tokenID *uint256.Int) (*ledger.Receipt, error) {
	body := map[string]string{"spender": spender.Hex()}
	if amount != nil {
		body["amount"] = amount.Dec()
	}
	if tokenID != nil {
		body["token_id"] = tokenID.Dec()
	}
	return c.send(ctx, "/tokens/"+token.Hex()+"/approve", body)
}

func (c *Client) SetApprovalForAll(ctx context.Context, token, operator common.Address, approved bool) (*ledger.Receipt, error) {
	return c.send(ctx, "/tokens/"+token.Hex()+"/approval-for-all", map[string]any{
		"operator": operator.Hex(),
		"approved": approved,
	})
}

func (c *Client) send(ctx context.Context, path string, body any) (*ledger.Receipt, error) {
	var receipt ledger.Receipt
	if err := check(c.request(ctx).SetBody(body).SetResult(&receipt).Post(path)); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// BalanceOf returns the balance of owner; id is only used for ERC1155 tokens.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address, id *uint256.Int) (*uint256.Int, error) {
	r := c.request(ctx)
	if id != nil {
		r.SetQueryParam("id", id.Dec())
	}
	var out struct {
		Balance string `json:"balance"`
	}
	if err := check(r.SetResult(&out).Get("/tokens/" + token.Hex() + "/balance/" + owner.Hex())); err != nil {
		return nil, err
	}
	return uint256.FromDecimal(out.Balance)
}

func (c *Client) OwnerOf(ctx context.Context, token common.Address, id *uint256.Int) (common.Address, error) {
	var out struct {
		Owner common.Address `json:"owner"`
	}
	if err := check(c.request(ctx).SetResult(&out).Get("/tokens/" + token.Hex() + "/owner/" + id.Dec())); err != nil {
		return common.Address{}, err
	}
	return out.Owner, nil
}

// Contracts returns the deployed contracts keyed by kind, in address order.
func (c *Client) Contracts(ctx context.Context) (map[string][]common.Address, error) {
	var out struct {
		Contracts []api.ContractInfo `json:"contracts"`
	}
	if err := check(c.request(ctx).SetResult(&out).Get("/contracts")); err != nil {
		return nil, err
	}
	byKind := map[string][]common.Address{}
	for _, info := range out.Contracts {
		byKind[info.Kind] = append(byKind[info.Kind], info.Address)
	}
	return byKind, nil
}

// Events returns ledger events emitted by contract, optionally filtered by name.
func (c *Client) Events(ctx context.Context, contract common.Address, name string) ([]ledger.Event, error) {
	var out struct {
		Events []ledger.Event `json:"events"`
	}
	r := c.request(ctx).SetQueryParam("contract", contract.Hex())
	if name != "" {
		r.SetQueryParam("name", name)
	}
	if err := check(r.SetResult(&out).Get("/events")); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// Ping checks the server is up.
func (c *Client) Ping(ctx context.Context) error {
	return check(c.request(ctx).Get("/ping"))
}
