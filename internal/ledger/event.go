package ledger

import (
	"github.com/ethereum/go-ethereum/common"
)

// Event is a log entry emitted by a contract during a committed transaction.
type Event struct {
	Contract common.Address    `json:"contract"`
	Name     string            `json:"name"`
	Fields   map[string]string `json:"fields"`
	TxHash   common.Hash       `json:"tx_hash"`
	Block    uint64            `json:"block"`
}

// Receipt describes a committed transaction.
type Receipt struct {
	TxHash common.Hash `json:"tx_hash"`
	Block  uint64      `json:"block"`
	Events []Event     `json:"events"`
}

// EventFilter selects events; zero fields match everything.
type EventFilter struct {
	Contract *common.Address
	Name     string
}

func (f EventFilter) match(e Event) bool {
	if f.Contract != nil && *f.Contract != e.Contract {
		return false
	}
	if f.Name != "" && f.Name != e.Name {
		return false
	}
	return true
}
