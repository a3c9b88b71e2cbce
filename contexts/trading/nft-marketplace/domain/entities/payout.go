package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusPaid      PayoutStatus = "paid"
	// PayoutStatusExhausted is terminal: retries stopped and an operator has
	// to settle the payout by hand.
	PayoutStatusExhausted PayoutStatus = "exhausted"
)

// PendingPayout records proceeds that were cleared from the ledger but whose
// fund transfer did not go through. It is settled out-of-band.
type PendingPayout struct {
	PayoutID  string
	Recipient common.Address
	Amount    uint256.Int
	Status    PayoutStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithdrawFailurePolicy decides what happens to cleared proceeds when the
// fund transfer fails.
type WithdrawFailurePolicy string

const (
	// WithdrawFailureReconcile keeps the balance cleared and queues a payout.
	WithdrawFailureReconcile WithdrawFailurePolicy = "reconcile"
	// WithdrawFailureRestore credits the cleared amount back to the seller.
	WithdrawFailureRestore WithdrawFailurePolicy = "restore"
)

func (p WithdrawFailurePolicy) Valid() bool {
	return p == WithdrawFailureReconcile || p == WithdrawFailureRestore
}
