package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nft_marketplace/internal/ledger"
	"nft_marketplace/internal/tokens"
)

// tokenHandler exposes the token contracts on the ledger, so clients can mint,
// approve and inspect balances around their marketplace calls.
type tokenHandler struct {
	chain  *ledger.Ledger
	logger *zap.Logger
}

func NewTokenHandler(chain *ledger.Ledger, logger *zap.Logger) *tokenHandler {
	return &tokenHandler{chain: chain, logger: logger}
}

type mintRequest struct {
	To      string `json:"to"`
	TokenID string `json:"token_id"`
	Amount  string `json:"amount"`
}

type approveRequest struct {
	Spender string `json:"spender" binding:"required"`
	Amount  string `json:"amount"`
	TokenID string `json:"token_id"`
}

type approvalForAllRequest struct {
	Operator string `json:"operator" binding:"required"`
	Approved bool   `json:"approved"`
}

// ContractInfo is one entry of the contract directory.
type ContractInfo struct {
	Address common.Address `json:"address"`
	Kind    string         `json:"kind"`
}

func (h *tokenHandler) contract(ctx *gin.Context) (ledger.Contract, bool) {
	addr, err := parseAddress("address", ctx.Param("address"))
	if err != nil {
		h.writeError(ctx, err)
		return nil, false
	}
	c, err := h.chain.Contract(addr)
	if err != nil {
		h.writeError(ctx, err)
		return nil, false
	}
	return c, true
}

// handleMint handles POST /tokens/:address/mint. ERC1155 units go to the caller.
func (h *tokenHandler) handleMint(ctx *gin.Context) {
	c, ok := h.contract(ctx)
	if !ok {
		return
	}
	var req mintRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	caller := callerOf(ctx)
	receipt, err := h.chain.Execute(ctx.Request.Context(), caller, func(tx *ledger.Tx) error {
		switch t := c.(type) {
		case *tokens.ERC20:
			to, err := optionalAddress("to", req.To, caller)
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", req.Amount)
			if err != nil {
				return err
			}
			return t.Mint(tx, to, amount)
		case *tokens.ERC1155:
			id, err := parseAmount("token_id", req.TokenID)
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", req.Amount)
			if err != nil {
				return err
			}
			return t.Mint(tx, id, amount)
		case *tokens.ERC721:
			to, err := optionalAddress("to", req.To, caller)
			if err != nil {
				return err
			}
			id, err := parseAmount("token_id", req.TokenID)
			if err != nil {
				return err
			}
			return t.Mint(tx, to, id)
		}
		return fmt.Errorf("%w: %s contracts cannot mint", errBadRequest, c.Kind())
	})
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, receipt)
}

// handleApprove handles POST /tokens/:address/approve: an ERC20 allowance or
// a single ERC721 token approval.
func (h *tokenHandler) handleApprove(ctx *gin.Context) {
	c, ok := h.contract(ctx)
	if !ok {
		return
	}
	var req approveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	receipt, err := h.chain.Execute(ctx.Request.Context(), callerOf(ctx), func(tx *ledger.Tx) error {
		switch t := c.(type) {
		case *tokens.ERC20:
			amount, err := parseAmount("amount", req.Amount)
			if err != nil {
				return err
			}
			return t.Approve(tx, spender, amount)
		case *tokens.ERC721:
			id, err := parseAmount("token_id", req.TokenID)
			if err != nil {
				return err
			}
			return t.Approve(tx, spender, id)
		}
		return fmt.Errorf("%w: %s contracts have no approve", errBadRequest, c.Kind())
	})
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, receipt)
}

// handleApprovalForAll handles POST /tokens/:address/approval-for-all.
func (h *tokenHandler) handleApprovalForAll(ctx *gin.Context) {
	c, ok := h.contract(ctx)
	if !ok {
		return
	}
	var req approvalForAllRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	operator, err := parseAddress("operator", req.Operator)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	receipt, err := h.chain.Execute(ctx.Request.Context(), callerOf(ctx), func(tx *ledger.Tx) error {
		switch t := c.(type) {
		case *tokens.ERC1155:
			return t.SetApprovalForAll(tx, operator, req.Approved)
		case *tokens.ERC721:
			return t.SetApprovalForAll(tx, operator, req.Approved)
		}
		return fmt.Errorf("%w: %s contracts have no setApprovalForAll", errBadRequest, c.Kind())
	})
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, receipt)
}

// handleBalance handles GET /tokens/:address/balance/:owner; ERC1155 needs ?id=.
func (h *tokenHandler) handleBalance(ctx *gin.Context) {
	c, ok := h.contract(ctx)
	if !ok {
		return
	}
	owner, err := parseAddress("owner", ctx.Param("owner"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	var balance string
	err = h.chain.View(func() error {
		switch t := c.(type) {
		case *tokens.ERC20:
			balance = t.BalanceOf(owner).Dec()
		case *tokens.ERC1155:
			id, err := parseAmount("id", ctx.Query("id"))
			if err != nil {
				return err
			}
			balance = t.BalanceOf(owner, id).Dec()
		case *tokens.ERC721:
			balance = strconv.FormatUint(t.BalanceOf(owner), 10)
		default:
			return fmt.Errorf("%w: %s contracts hold no balances", errBadRequest, c.Kind())
		}
		return nil
	})
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"balance": balance})
}

// handleOwnerOf handles GET /tokens/:address/owner/:tokenId for ERC721 contracts.
func (h *tokenHandler) handleOwnerOf(ctx *gin.Context) {
	c, ok := h.contract(ctx)
	if !ok {
		return
	}
	nft, isNFT := c.(*tokens.ERC721)
	if !isNFT {
		h.writeError(ctx, fmt.Errorf("%w: %s contracts have no ownerOf", errBadRequest, c.Kind()))
		return
	}
	id, err := parseAmount("tokenId", ctx.Param("tokenId"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	var owner common.Address
	err = h.chain.View(func() error {
		var err error
		owner, err = nft.OwnerOf(id)
		return err
	})
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"owner": owner})
}

func (h *tokenHandler) handleContracts(ctx *gin.Context) {
	directory := h.chain.Contracts()
	out := make([]ContractInfo, 0, len(directory))
	for addr, c := range directory {
		out = append(out, ContractInfo{Address: addr, Kind: c.Kind()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Hex() < out[j].Address.Hex() })
	ctx.JSON(http.StatusOK, gin.H{"contracts": out})
}

func (h *tokenHandler) handleEvents(ctx *gin.Context) {
	filter := ledger.EventFilter{Name: ctx.Query("name")}
	if raw := ctx.Query("contract"); raw != "" {
		addr, err := parseAddress("contract", raw)
		if err != nil {
			h.writeError(ctx, err)
			return
		}
		filter.Contract = &addr
	}
	ctx.JSON(http.StatusOK, gin.H{"events": h.chain.Events(filter)})
}

func (h *tokenHandler) writeError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnknownContract), errors.Is(err, tokens.ErrNonexistentToken):
		status = http.StatusNotFound
	case errors.Is(err, tokens.ErrNotApproved), errors.Is(err, tokens.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, tokens.ErrInsufficientBalance), errors.Is(err, tokens.ErrInsufficientAllowance),
		errors.Is(err, tokens.ErrTokenExists), errors.Is(err, tokens.ErrOverflow):
		status = http.StatusConflict
	case errors.Is(err, tokens.ErrZeroAddress), errors.Is(err, tokens.ErrSelfApproval):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("token request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(status, gin.H{"error": "internal error"})
		return
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}
