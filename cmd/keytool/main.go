// Command keytool encrypts a wallet signing key for the settlement agent.
// It reads the plaintext key and password from the environment, writes the
// encrypted key file, and prints the wallet address so the operator can
// verify the right key was sealed.
//
// Usage:
//
//	SETTLEBOT_WALLET_PRIVATE_KEY=0x... \
//	SETTLEBOT_WALLET_KEY_PASSWORD=... \
//	keytool -out wallet.key.json
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/acpsuite/settlebot/internal/crypto"
)

func main() {
	outPath := flag.String("out", "wallet.key.json", "path to write the encrypted key file")
	flag.Parse()

	privateKey := os.Getenv("SETTLEBOT_WALLET_PRIVATE_KEY")
	if privateKey == "" {
		fmt.Fprintln(os.Stderr, "keytool: SETTLEBOT_WALLET_PRIVATE_KEY not set")
		os.Exit(1)
	}
	password := os.Getenv("SETTLEBOT_WALLET_KEY_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "keytool: SETTLEBOT_WALLET_KEY_PASSWORD not set")
		os.Exit(1)
	}

	blob, err := crypto.EncryptKey(privateKey, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keytool: %v\n", err)
		os.Exit(1)
	}

	// 0600: the blob is password-protected, but there is no reason to let
	// other users read it.
	if err := os.WriteFile(*outPath, blob, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "keytool: writing %s: %v\n", *outPath, err)
		os.Exit(1)
	}

	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "keytool: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("encrypted key written to %s\n", *outPath)
	fmt.Printf("wallet address: %s\n", ethcrypto.PubkeyToAddress(pk.PublicKey).Hex())
}
