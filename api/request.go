package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
)

// CallerHeader carries the address a request acts as.
const CallerHeader = "X-Caller"

const callerKey = "caller"

var errBadRequest = errors.New("bad request")

// requireCaller rejects requests without a valid CallerHeader.
func requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(CallerHeader)
		if !common.IsHexAddress(raw) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + CallerHeader + " header"})
			return
		}
		c.Set(callerKey, common.HexToAddress(raw))
		c.Next()
	}
}

func callerOf(c *gin.Context) common.Address {
	return c.MustGet(callerKey).(common.Address)
}

func parseAddress(field, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not a hex address", errBadRequest, field, raw)
	}
	return common.HexToAddress(raw), nil
}

// optionalAddress parses raw, falling back to def when raw is empty.
func optionalAddress(field, raw string, def common.Address) (common.Address, error) {
	if raw == "" {
		return def, nil
	}
	return parseAddress(field, raw)
}

func parseAmount(field, raw string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a uint256 decimal", errBadRequest, field, raw)
	}
	return v, nil
}
