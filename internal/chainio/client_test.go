package chainio

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/tx"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// rpcHandler routes JSON-RPC methods to canned handlers and records the
// requests it saw.
type rpcHandler struct {
	t        *testing.T
	handlers map[string]func(params []json.RawMessage) (interface{}, *rpcError)
	calls    []string
}

func (h *rpcHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
		ID     int               `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.t.Errorf("bad request body: %v", err)
		return
	}
	h.calls = append(h.calls, req.Method)

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	fn, ok := h.handlers[req.Method]
	if !ok {
		resp["error"] = &rpcError{Code: -32601, Message: "method not found"}
	} else if result, rpcErr := fn(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.t.Errorf("encode response: %v", err)
	}
}

func newTestClient(t *testing.T, handlers map[string]func(params []json.RawMessage) (interface{}, *rpcError)) (*Client, *rpcHandler) {
	t.Helper()
	h := &rpcHandler{t: t, handlers: handlers}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewWithTimeout(srv.URL, 5*time.Second)
	c.pollInterval = time.Millisecond
	return c, h
}

func fillHash(b byte) types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestCallRPCError(t *testing.T) {
	c, _ := newTestClient(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"failing.method": func([]json.RawMessage) (interface{}, *rpcError) {
			return nil, &rpcError{Code: -5, Message: "nope"}
		},
	})

	err := c.Call(context.Background(), "failing.method", nil, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error = %v, want *RPCError", err)
	}
	if rpcErr.Code != -5 || rpcErr.Message != "nope" {
		t.Errorf("rpc error = %+v", rpcErr)
	}
}

func TestGetRawTransactionUsesDisplayOrder(t *testing.T) {
	txid := fillHash(0x0a)
	txid[0] = 0x01 // make it asymmetric so reversal matters
	raw := []byte{0xde, 0xad, 0xbe, 0xef}

	var gotParam string
	c, _ := newTestClient(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"blockchain.transaction.get": func(params []json.RawMessage) (interface{}, *rpcError) {
			if err := json.Unmarshal(params[0], &gotParam); err != nil {
				return nil, &rpcError{Code: -1, Message: err.Error()}
			}
			return hex.EncodeToString(raw), nil
		},
	})

	got, err := c.GetRawTransaction(context.Background(), txid)
	if err != nil {
		t.Fatalf("GetRawTransaction() error: %v", err)
	}
	if !hexEqual(got, raw) {
		t.Errorf("raw = %x, want %x", got, raw)
	}
	if gotParam != txid.Reversed().String() {
		t.Errorf("server saw txid %s, want display order %s", gotParam, txid.Reversed())
	}
}

func TestGetPrevOutput(t *testing.T) {
	// Serve a real transaction and extract output 1.
	var payTo types.Hash160
	payTo[0] = 0x42
	funding := tx.New().
		AddInput(types.Outpoint{TxID: fillHash(0x01), Index: 0}).
		AddOutput(1000, script.P2PKH(types.Hash160{})).
		AddOutput(2500, script.P2PKH(payTo))
	raw, err := funding.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	txid, err := funding.TxID()
	if err != nil {
		t.Fatal(err)
	}

	c, _ := newTestClient(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"blockchain.transaction.get": func([]json.RawMessage) (interface{}, *rpcError) {
			return hex.EncodeToString(raw), nil
		},
	})

	prevout, err := c.GetPrevOutput(context.Background(), types.Outpoint{TxID: txid, Index: 1})
	if err != nil {
		t.Fatalf("GetPrevOutput() error: %v", err)
	}
	if prevout.Value != 2500 {
		t.Errorf("value = %d, want 2500", prevout.Value)
	}
	if !hexEqual(prevout.Script, script.P2PKH(payTo)) {
		t.Error("prevout script differs")
	}

	// Out-of-range vout.
	if _, err := c.GetPrevOutput(context.Background(), types.Outpoint{TxID: txid, Index: 5}); err == nil {
		t.Error("out-of-range vout should fail")
	}
}

func TestBroadcastRawTxReversesTxID(t *testing.T) {
	wire := fillHash(0x0b)
	wire[0] = 0x01
	display := wire.Reversed()

	c, _ := newTestClient(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"blockchain.transaction.broadcast": func([]json.RawMessage) (interface{}, *rpcError) {
			return display.String(), nil
		},
	})

	got, err := c.BroadcastRawTx(context.Background(), []byte{0x01})
	if err != nil {
		t.Fatalf("BroadcastRawTx() error: %v", err)
	}
	if got != wire {
		t.Errorf("txid = %s, want wire order %s", got, wire)
	}
}

func TestListUnspentScriptHashParam(t *testing.T) {
	var owner types.Hash160
	owner[0] = 0x42

	var gotParam string
	c, _ := newTestClient(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"blockchain.scripthash.listunspent": func(params []json.RawMessage) (interface{}, *rpcError) {
			if err := json.Unmarshal(params[0], &gotParam); err != nil {
				return nil, &rpcError{Code: -1, Message: err.Error()}
			}
			return []Unspent{{TxHash: "00", TxPos: 0, Value: 5000, Height: 100}}, nil
		},
	})

	unspent, err := c.ListUnspent(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListUnspent() error: %v", err)
	}
	if len(unspent) != 1 || unspent[0].Value != 5000 {
		t.Errorf("unspent = %+v", unspent)
	}

	want := crypto.Sha256(script.P2PKH(owner)).Reversed().String()
	if gotParam != want {
		t.Errorf("script hash param = %s, want %s", gotParam, want)
	}
}

func TestIsOutpointUnspent(t *testing.T) {
	outpoint := types.Outpoint{TxID: fillHash(0x0c), Index: 2}
	var owner types.Hash160

	c, _ := newTestClient(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"blockchain.scripthash.listunspent": func([]json.RawMessage) (interface{}, *rpcError) {
			return []Unspent{
				{TxHash: outpoint.TxID.Reversed().String(), TxPos: 2, Value: 100, Height: 1},
				{TxHash: outpoint.TxID.Reversed().String(), TxPos: 3, Value: 100, Height: 1},
			}, nil
		},
	})

	ok, err := c.IsOutpointUnspent(context.Background(), outpoint, owner)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("listed outpoint should be unspent")
	}

	other := outpoint
	other.Index = 9
	ok, err = c.IsOutpointUnspent(context.Background(), other, owner)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("unlisted vout should not be unspent")
	}
}

func TestWaitUnspent(t *testing.T) {
	outpoint := types.Outpoint{TxID: fillHash(0x0c), Index: 0}
	var owner types.Hash160

	attempts := 0
	c, _ := newTestClient(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"blockchain.scripthash.listunspent": func([]json.RawMessage) (interface{}, *rpcError) {
			attempts++
			if attempts < 3 {
				return []Unspent{}, nil
			}
			return []Unspent{{TxHash: outpoint.TxID.Reversed().String(), TxPos: 0, Value: 1, Height: 1}}, nil
		},
	})

	ok, err := c.WaitUnspent(context.Background(), outpoint, owner, 5)
	if err != nil {
		t.Fatalf("WaitUnspent() error: %v", err)
	}
	if !ok {
		t.Error("outpoint should appear on the third poll")
	}
	if attempts != 3 {
		t.Errorf("server polled %d times, want 3", attempts)
	}

	// Exhausted attempts report false without error.
	attempts = 10 // keep the handler returning the hit; query a different vout
	miss := outpoint
	miss.Index = 7
	ok, err = c.WaitUnspent(context.Background(), miss, owner, 2)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("missing outpoint should report false")
	}
}

func TestGetPrefixHistory(t *testing.T) {
	var gotBucket string
	var gotHeight int64
	c, _ := newTestClient(t, map[string]func([]json.RawMessage) (interface{}, *rpcError){
		"blockchain.rpa.get_history": func(params []json.RawMessage) (interface{}, *rpcError) {
			if err := json.Unmarshal(params[0], &gotBucket); err != nil {
				return nil, &rpcError{Code: -1, Message: err.Error()}
			}
			if err := json.Unmarshal(params[1], &gotHeight); err != nil {
				return nil, &rpcError{Code: -1, Message: err.Error()}
			}
			return []HistoryItem{{TxHash: fillHash(0x0d).String(), Height: 812000}}, nil
		},
	})

	history, err := c.GetPrefixHistory(context.Background(), 0x7f, 800000)
	if err != nil {
		t.Fatalf("GetPrefixHistory() error: %v", err)
	}
	if gotBucket != "7f" || gotHeight != 800000 {
		t.Errorf("server saw bucket %q from height %d", gotBucket, gotHeight)
	}
	if len(history) != 1 || history[0].Height != 812000 {
		t.Errorf("history = %+v", history)
	}

	// History txids parse back to wire order.
	wire, err := ParseHistoryTxID(history[0])
	if err != nil {
		t.Fatal(err)
	}
	if wire != fillHash(0x0d).Reversed() {
		t.Error("history txid should reverse to wire order")
	}
}

func hexEqual(a, b []byte) bool {
	return hex.EncodeToString(a) == hex.EncodeToString(b)
}
