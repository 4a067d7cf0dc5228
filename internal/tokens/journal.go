package tokens

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nft_marketplace/internal/ledger"
)

// set writes m[k] = v and journals the previous entry on tx.
func set[K comparable, V any](tx *ledger.Tx, m map[K]V, k K, v V) {
	prev, existed := m[k]
	m[k] = v
	tx.OnRevert(func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

// del removes m[k] and journals the previous entry on tx.
func del[K comparable, V any](tx *ledger.Tx, m map[K]V, k K) {
	prev, existed := m[k]
	if !existed {
		return
	}
	delete(m, k)
	tx.OnRevert(func() { m[k] = prev })
}

// inner returns m[k], creating it when missing.
func inner[K comparable, IK comparable, V any](m map[K]map[IK]V, k K) map[IK]V {
	im, ok := m[k]
	if !ok {
		im = map[IK]V{}
		m[k] = im
	}
	return im
}

// debit subtracts amount from bal, failing with ErrInsufficientBalance.
func debit(bal uint256.Int, amount *uint256.Int) (uint256.Int, error) {
	if bal.Lt(amount) {
		return bal, ErrInsufficientBalance
	}
	var out uint256.Int
	out.Sub(&bal, amount)
	return out, nil
}

func credit(bal uint256.Int, amount *uint256.Int) (uint256.Int, error) {
	var out uint256.Int
	if _, overflow := out.AddOverflow(&bal, amount); overflow {
		return bal, ErrOverflow
	}
	return out, nil
}

func isZero(a common.Address) bool {
	return a == (common.Address{})
}
