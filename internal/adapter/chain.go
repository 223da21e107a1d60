package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/stealth-alerts/internal/errors"
)

// erc20ABI covers only the read calls the enricher needs.
const erc20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

// ethBackend is the subset of ethclient.Client the chain client uses.
type ethBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ChainClient reads contract metadata and block timestamps straight from an
// Ethereum JSON-RPC node.
type ChainClient struct {
	backend ethBackend
	erc20   abi.ABI
}

// NewChainClient dials the configured JSON-RPC endpoint.
func NewChainClient(rpcURL string) (*ChainClient, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("eth RPC URL not configured")
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial eth RPC: %w", err)
	}
	return newChainClient(client)
}

func newChainClient(backend ethBackend) (*ChainClient, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 ABI: %w", err)
	}
	return &ChainClient{backend: backend, erc20: parsed}, nil
}

// TransactionTime returns the timestamp of the block containing the given
// transaction. Used to date contract deployments.
func (c *ChainClient) TransactionTime(ctx context.Context, txHash string) (time.Time, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return time.Time{}, errors.NewEnrichmentError("contract_creation", txHash, fmt.Errorf("fetch receipt: %w", err))
	}

	header, err := c.backend.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return time.Time{}, errors.NewEnrichmentError("contract_creation", txHash, fmt.Errorf("fetch block header: %w", err))
	}

	return time.Unix(int64(header.Time), 0).UTC(), nil
}

// TokenInfo reads a token contract's name and symbol.
func (c *ChainClient) TokenInfo(ctx context.Context, contractAddress string) (name, symbol string, err error) {
	name, err = c.callString(ctx, contractAddress, "name")
	if err != nil {
		return "", "", errors.NewEnrichmentError("token_info", contractAddress, err)
	}
	symbol, err = c.callString(ctx, contractAddress, "symbol")
	if err != nil {
		return "", "", errors.NewEnrichmentError("token_info", contractAddress, err)
	}
	return name, symbol, nil
}

func (c *ChainClient) callString(ctx context.Context, contractAddress, method string) (string, error) {
	data, err := c.erc20.Pack(method)
	if err != nil {
		return "", fmt.Errorf("pack %s call: %w", method, err)
	}

	to := common.HexToAddress(contractAddress)
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", method, err)
	}

	values, err := c.erc20.Unpack(method, result)
	if err != nil {
		return "", fmt.Errorf("unpack %s result: %w", method, err)
	}
	if len(values) != 1 {
		return "", fmt.Errorf("unexpected %s result arity: %d", method, len(values))
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s result type %T", method, values[0])
	}
	return s, nil
}
