package model

import (
	"fmt"

	"github.com/onflow/flow-go-sdk"
)

// Ledger account names. Balances are kept per account in the base store.
const (
	PlatformVaultAccount = "vault:platform"
	TreasuryVaultAccount = "vault:treasury"
	LendingPoolAccount   = "pool:lending"
)

func EscrowAccount(gameId uint64) string {
	return fmt.Sprintf("escrow:game:%d", gameId)
}

func CollateralAccount(gameId uint64) string {
	return fmt.Sprintf("collateral:game:%d", gameId)
}

func WalletAccount(address flow.Address) string {
	return "wallet:" + address.Hex()
}
