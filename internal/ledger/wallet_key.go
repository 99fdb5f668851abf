package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/acpsuite/settlebot/internal/domain"
)

// DeriveWalletKey maps a client's protocol address to its opaque ledger key
// using keccak256 over the lower-cased hex address. The derivation is
// deterministic and one-way: the ledger never stores or reverses the raw
// address.
func DeriveWalletKey(client common.Address) domain.WalletKey {
	h := ethcrypto.Keccak256Hash([]byte(strings.ToLower(client.Hex())))
	return domain.WalletKey(h.Hex())
}
