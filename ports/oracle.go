package ports

import (
	"context"
	"math/big"
)

// BalanceOracle answers live balance queries against a blockchain node.
// Balances are arbitrary-precision integers in the token's smallest unit;
// no float arithmetic appears anywhere on the comparison path.
type BalanceOracle interface {
	// NativeBalance returns the holder's native-coin balance.
	NativeBalance(ctx context.Context, holder string) (*big.Int, error)

	// TokenBalance performs a read-only ERC-20 balanceOf(holder) call against
	// the token contract.
	TokenBalance(ctx context.Context, tokenAddress, holder string) (*big.Int, error)
}
