package chainio

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/internal/log"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/tx"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// The protocol engine keeps txids in wire order, but indexing servers
// speak the reversed display convention. Reversal happens here, at the
// wire-client boundary, and nowhere else.

// Unspent is one confirmed unspent output owned by a script hash.
type Unspent struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Value  uint64 `json:"value"`
	Height int64  `json:"height"`
}

// HistoryItem is one transaction touching a queried prefix bucket.
type HistoryItem struct {
	TxHash string `json:"tx_hash"`
	Height int64  `json:"height"`
}

// GetRawTransaction fetches a transaction's raw bytes by wire-order txid.
func (c *Client) GetRawTransaction(ctx context.Context, txid types.Hash) ([]byte, error) {
	var rawHex string
	if err := c.Call(ctx, "blockchain.transaction.get", []interface{}{displayHex(txid)}, &rawHex); err != nil {
		return nil, fmt.Errorf("transaction.get %s: %w", txid, err)
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("transaction.get %s: bad hex: %w", txid, err)
	}
	return raw, nil
}

// GetPrevOutput implements pool.PrevoutReader: it fetches the funding
// transaction and extracts the referenced output's value and script
// encapsulation.
func (c *Client) GetPrevOutput(ctx context.Context, outpoint types.Outpoint) (tx.Prevout, error) {
	raw, err := c.GetRawTransaction(ctx, outpoint.TxID)
	if err != nil {
		return tx.Prevout{}, err
	}
	parsed, err := tx.Deserialize(raw)
	if err != nil {
		return tx.Prevout{}, fmt.Errorf("prevout %s: %w", outpoint, err)
	}
	if outpoint.Index >= uint32(len(parsed.Outputs)) {
		return tx.Prevout{}, fmt.Errorf("prevout %s: transaction has %d outputs", outpoint, len(parsed.Outputs))
	}
	out := parsed.Outputs[outpoint.Index]
	encap, err := out.Encapsulation()
	if err != nil {
		return tx.Prevout{}, fmt.Errorf("prevout %s: %w", outpoint, err)
	}
	return tx.Prevout{Value: out.Value, Script: encap}, nil
}

// BroadcastRawTx implements pool.Broadcaster.
func (c *Client) BroadcastRawTx(ctx context.Context, raw []byte) (types.Hash, error) {
	var txidHex string
	if err := c.Call(ctx, "blockchain.transaction.broadcast", []interface{}{hex.EncodeToString(raw)}, &txidHex); err != nil {
		return types.Hash{}, fmt.Errorf("broadcast: %w", err)
	}
	display, err := types.HexToHash(txidHex)
	if err != nil {
		return types.Hash{}, fmt.Errorf("broadcast: bad txid: %w", err)
	}
	txid := display.Reversed()
	log.Chain.Info().Str("txid", txid.String()).Int("bytes", len(raw)).Msg("broadcast accepted")
	return txid, nil
}

// ListUnspent returns the unspent outputs locked to a P2PKH hash160.
func (c *Client) ListUnspent(ctx context.Context, owner types.Hash160) ([]Unspent, error) {
	var unspent []Unspent
	params := []interface{}{scriptHashParam(script.P2PKH(owner))}
	if err := c.Call(ctx, "blockchain.scripthash.listunspent", params, &unspent); err != nil {
		return nil, fmt.Errorf("listunspent %s: %w", owner, err)
	}
	return unspent, nil
}

// IsOutpointUnspent implements pool.UnspentChecker.
func (c *Client) IsOutpointUnspent(ctx context.Context, outpoint types.Outpoint, owner types.Hash160) (bool, error) {
	unspent, err := c.ListUnspent(ctx, owner)
	if err != nil {
		return false, err
	}
	want := displayHex(outpoint.TxID)
	for _, u := range unspent {
		if u.TxHash == want && u.TxPos == outpoint.Index {
			return true, nil
		}
	}
	return false, nil
}

// WaitUnspent polls IsOutpointUnspent up to attempts times, pacing polls
// by the client's interval. It returns false without error when the
// outpoint never shows up, so callers can distinguish "not yet indexed"
// from transport failure.
func (c *Client) WaitUnspent(ctx context.Context, outpoint types.Outpoint, owner types.Hash160, attempts int) (bool, error) {
	for i := 0; i < attempts; i++ {
		ok, err := c.IsOutpointUnspent(ctx, outpoint, owner)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return false, nil
}

// GetPrefixHistory queries the server's stealth-prefix index for
// transactions whose outputs fall in the given bucket, starting at
// fromHeight. The bucket is the receiver's default prefix byte.
func (c *Client) GetPrefixHistory(ctx context.Context, bucket byte, fromHeight int64) ([]HistoryItem, error) {
	var history []HistoryItem
	params := []interface{}{hex.EncodeToString([]byte{bucket}), fromHeight}
	if err := c.Call(ctx, "blockchain.rpa.get_history", params, &history); err != nil {
		return nil, fmt.Errorf("rpa.get_history %02x: %w", bucket, err)
	}
	return history, nil
}

// displayHex renders a wire-order txid in the server's reversed display
// convention.
func displayHex(txid types.Hash) string {
	return txid.Reversed().String()
}

// scriptHashParam computes the index server's script hash key: the
// SHA256 of the locking script, reversed, in hex.
func scriptHashParam(lockingScript []byte) string {
	h := crypto.Sha256(lockingScript)
	return h.Reversed().String()
}

// ParseHistoryTxID converts a history item's display txid back to wire
// order.
func ParseHistoryTxID(item HistoryItem) (types.Hash, error) {
	display, err := types.HexToHash(item.TxHash)
	if err != nil {
		return types.Hash{}, fmt.Errorf("history txid: %w", err)
	}
	return display.Reversed(), nil
}
