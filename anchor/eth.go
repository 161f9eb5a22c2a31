// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package anchor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthClient anchors roots as calldata in self-addressed transactions on
// any Ethereum-compatible chain.
type EthClient struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

func DialEth(ctx context.Context, endpoint, keyHex string) (*EthClient, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial anchor endpoint: %w", err)
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to parse anchor key: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}
	return &EthClient{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

func (c *EthClient) Submit(ctx context.Context, pollID, root string, leafCount int) (string, error) {
	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}

	data := []byte(fmt.Sprintf("veilvote:%s:%s:%d", pollID, root, leafCount))
	gasLimit, err := c.client.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &c.from, Data: data})
	if err != nil {
		return "", fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.from,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign anchor transaction: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send anchor transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}

func (c *EthClient) Confirm(ctx context.Context, txRef string) (bool, error) {
	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(txRef))
	if errors.Is(err, ethereum.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch anchor receipt: %w", err)
	}
	return receipt.Status == types.ReceiptStatusSuccessful, nil
}

func (c *EthClient) Close() {
	c.client.Close()
}
