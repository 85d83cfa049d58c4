// Package oracle queries a blockchain node for native-coin and ERC-20
// balances over JSON-RPC.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/blocchat/gatekeeper/core"
)

const erc20ABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// ContractBackend is the slice of ethclient the oracle needs. ethclient.Client
// satisfies it; tests provide a fake.
type ContractBackend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client implements ports.BalanceOracle against an Ethereum-compatible node.
type Client struct {
	backend ContractBackend
	abi     abi.ABI
}

// Dial connects to the node at rpcURL.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc node: %w", err)
	}
	return New(eth)
}

// New wraps an existing backend.
func New(backend ContractBackend) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 abi: %w", err)
	}
	return &Client{backend: backend, abi: parsed}, nil
}

// NativeBalance returns the holder's native-coin balance at the latest block.
func (c *Client) NativeBalance(ctx context.Context, holder string) (*big.Int, error) {
	if !common.IsHexAddress(holder) {
		return nil, core.ErrInvalidAddress
	}
	balance, err := c.backend.BalanceAt(ctx, common.HexToAddress(holder), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: native balance query: %v", core.ErrUpstream, err)
	}
	return balance, nil
}

// TokenBalance performs a read-only balanceOf(holder) call against the token
// contract at the latest block.
func (c *Client) TokenBalance(ctx context.Context, tokenAddress, holder string) (*big.Int, error) {
	if !common.IsHexAddress(tokenAddress) || !common.IsHexAddress(holder) {
		return nil, core.ErrInvalidAddress
	}

	data, err := c.abi.Pack("balanceOf", common.HexToAddress(holder))
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	token := common.HexToAddress(tokenAddress)
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: balanceOf call: %v", core.ErrUpstream, err)
	}

	results, err := c.abi.Unpack("balanceOf", out)
	if err != nil || len(results) != 1 {
		return nil, fmt.Errorf("%w: failed to unpack balanceOf result: %v", core.ErrUpstream, err)
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected balanceOf result type %T", core.ErrUpstream, results[0])
	}
	return balance, nil
}
