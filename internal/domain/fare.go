// Package domain defines the core types and interfaces shared by the
// settlement agent: jobs flowing through the two-phase commerce protocol,
// positions held in the ledger, fares, and the ports implemented by the
// protocol, cache, and registry adapters.
package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Token identifies a currency or ERC-20 token used to denominate a Fare.
// Contract is the zero address for the protocol's native base currency.
type Token struct {
	Symbol   string
	Contract common.Address
	Decimals int
}

// IsBase reports whether the token is a base currency rather than a
// contract-backed token.
func (t Token) IsBase() bool {
	return t.Contract == (common.Address{})
}

// Fare pairs a numeric quantity with the token it is denominated in.
type Fare struct {
	Amount       float64
	Denomination Token
}

// String renders the fare for log and notification messages, e.g. "2.2 USDC".
func (f Fare) String() string {
	return fmt.Sprintf("%g %s", f.Amount, f.Denomination.Symbol)
}

// WithAmount returns a copy of the fare carrying the given amount in the same
// denomination.
func (f Fare) WithAmount(amount float64) Fare {
	return Fare{Amount: amount, Denomination: f.Denomination}
}
