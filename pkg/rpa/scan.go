package rpa

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/tx"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// Match reports a discovered stealth output together with the full
// derivation context needed to authorize its spend later.
type Match struct {
	OutputIndex uint32
	Value       uint64
	Hash160     types.Hash160
	Context     Context
}

// ScanOptions bounds the discovery search.
type ScanOptions struct {
	// MaxRoleIndex bounds the role-index search per input. Iteration
	// covers 0..MaxRoleIndex-1: the bound is exclusive, a range length,
	// not an inclusive maximum.
	MaxRoleIndex uint32

	// Hints are role indices tried ahead of the sequential sweep,
	// typically recovered from prefix-bucket metadata.
	Hints []uint32

	// MaxMatches stops the scan once this many outputs have matched.
	// Zero means no cap.
	MaxMatches int
}

// ScanTransaction searches a raw transaction for stealth outputs
// spendable by the (scanPriv, spendPriv) pair.
//
// Every P2PKH-shaped output is a candidate; every P2PKH-shaped input
// yields a sender public key and a prevout binding. For each input the
// shared secret is computed once, then role indices are swept, hints
// first. Inputs scan concurrently; workers stop cooperatively once every
// output has matched, the match cap is reached, or ctx is canceled.
//
// A derivation failure on a single role index is a skip, not an error:
// brute-force scanning is expected to miss on most indices. Duplicate
// matches on one output are suppressed (first claim wins).
func ScanTransaction(ctx context.Context, rawTx []byte, scanPriv, spendPriv *crypto.PrivateKey, opts ScanOptions) ([]Match, error) {
	transaction, err := tx.Deserialize(rawTx)
	if err != nil {
		return nil, fmt.Errorf("parse transaction: %w", err)
	}

	// Candidate set: hash160 -> output indices still unclaimed.
	candidates := make(map[types.Hash160][]uint32)
	total := 0
	for i, out := range transaction.Outputs {
		h, ok := script.ExtractP2PKHHash(out.LockingScript)
		if !ok {
			continue
		}
		candidates[h] = append(candidates[h], uint32(i))
		total++
	}
	if total == 0 {
		return nil, nil
	}

	spendPub := spendPriv.PublicKey()

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu        sync.Mutex
		matches   []Match
		claimed   = make(map[uint32]bool)
		remaining = total
	)

	// claim records a match unless the output is already taken or the
	// cap is reached; it cancels all workers once nothing is left to find.
	claim := func(m Match) {
		mu.Lock()
		defer mu.Unlock()
		if claimed[m.OutputIndex] {
			return
		}
		if opts.MaxMatches > 0 && len(matches) >= opts.MaxMatches {
			cancel()
			return
		}
		claimed[m.OutputIndex] = true
		m.Value = transaction.Outputs[m.OutputIndex].Value
		matches = append(matches, m)
		remaining--
		if remaining == 0 || (opts.MaxMatches > 0 && len(matches) >= opts.MaxMatches) {
			cancel()
		}
	}

	var wg sync.WaitGroup
	for _, in := range transaction.Inputs {
		senderPub, ok := script.ExtractP2PKHPubKey(in.UnlockingScript)
		if !ok {
			continue
		}
		prevout := in.PrevOut

		wg.Add(1)
		go func() {
			defer wg.Done()
			scanInput(scanCtx, scanPriv, spendPub, senderPub, prevout, candidates, opts, claim)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil && len(matches) == 0 {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].OutputIndex < matches[j].OutputIndex
	})
	return matches, nil
}

// scanInput sweeps role indices for one input. The shared secret is
// computed once; each iteration only reads key material and reports into
// the caller's accumulator, so inputs need no further coordination.
func scanInput(
	ctx context.Context,
	scanPriv *crypto.PrivateKey,
	spendPub []byte,
	senderPub []byte,
	prevout types.Outpoint,
	candidates map[types.Hash160][]uint32,
	opts ScanOptions,
	claim func(Match),
) {
	secret, err := DeriveSharedSecret(scanPriv, senderPub, prevout)
	if err != nil {
		// Malformed sender key: nothing derivable from this input.
		return
	}

	hinted := make(map[uint32]bool, len(opts.Hints))
	try := func(roleIndex uint32) {
		pub, err := DeriveOneTimePub(spendPub, secret, roleIndex)
		if err != nil {
			return // skip degenerate index
		}
		h := crypto.Hash160(pub)
		outs, ok := candidates[h]
		if !ok {
			return
		}
		for _, outIdx := range outs {
			claim(Match{
				OutputIndex: outIdx,
				Hash160:     h,
				Context: Context{
					SenderPub:    senderPub,
					PrevoutTxID:  prevout.TxID,
					PrevoutIndex: prevout.Index,
					RoleIndex:    roleIndex,
				},
			})
		}
	}

	for _, hint := range opts.Hints {
		if ctx.Err() != nil {
			return
		}
		if hint >= opts.MaxRoleIndex || hinted[hint] {
			continue
		}
		hinted[hint] = true
		try(hint)
	}
	for i := uint32(0); i < opts.MaxRoleIndex; i++ {
		if ctx.Err() != nil {
			return
		}
		if hinted[i] {
			continue
		}
		try(i)
	}
}
