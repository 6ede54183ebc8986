// stealthpool is a command-line client for stealth payments and sharded
// privacy pools on Bitcoin Cash.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/config"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/internal/chainio"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/internal/log"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/internal/poolstore"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/internal/wallet"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/crypto"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/fold"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/pool"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/rpa"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/script"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/tx"
	"github.com/bastiancarmy/bitcoin-cash-stealth-demo-sub002/pkg/types"
)

// fundingKeyGap is how many external-chain keys are checked for coins.
const fundingKeyGap = 20

// operatorKeyIndex is the external-chain index of the key that signs
// covenant inputs.
const operatorKeyIndex = 0

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	serverURL := ""
	dataDir := ""
	network := ""

	// Scan for --server, --datadir and --network before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--server" && len(args) > 1:
			serverURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--server="):
			serverURL = args[0][len("--server="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg := loadConfig(serverURL, dataDir, network)

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "wallet":
		cmdWallet(cmdArgs, cfg)
	case "pool":
		cmdPool(cmdArgs, cfg)
	case "scan":
		cmdScan(cmdArgs, cfg)
	case "send":
		cmdSend(cmdArgs, cfg)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: stealthpool [global flags] <command> [flags]

Global flags:
  --server <url>      Index server endpoint (default: from config)
  --datadir <path>    Data directory (default: ~/.stealthpool)
  --network <net>     mainnet (default) or testnet

Commands:
  wallet create --name <n>        Create a new wallet
  wallet import --name <n> --mnemonic "..."
                                  Import wallet from mnemonic
  wallet list                     List wallets
  wallet show --wallet <w>        Show paycode, prefix bucket and funding hash
  wallet coins --wallet <w>       List spendable coins

  pool init --wallet <w> --redeem-script <hex> --shards <n> --shard-value <sats>
            [--version v1.1] [--category-mode direct|reversed]
            [--capability <0|1|2>] [--p2sh]
                                  Initialize a sharded pool
  pool list                       List stored pools
  pool show --pool <id>           Show pool state
  pool import --wallet <w> --pool <id> --outpoint <txid:vout> [--shard <i>]
                                  Fold a deposit outpoint into a shard
  pool withdraw --wallet <w> --pool <id> --amount <sats> --to <paycode|hash160>
            [--shard <i>]         Pay value out of a shard

  scan --wallet <w>               Scan the prefix index for incoming payments
  send --wallet <w> --to <paycode|hash160> --amount <sats>
                                  Send a plain or stealth payment

Amounts are satoshis. Txids are entered and shown in the usual explorer
(display) byte order.
`)
}

// loadConfig builds the effective configuration: defaults for the chosen
// network, then the config file, then command-line overrides.
func loadConfig(serverURL, dataDir, network string) *config.Config {
	net := config.Mainnet
	if network == string(config.Testnet) {
		net = config.Testnet
	} else if network != "" && network != string(config.Mainnet) {
		fatal("network must be %q or %q", config.Mainnet, config.Testnet)
	}

	cfg := config.Default(net)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	values, err := config.LoadFile(cfg.ConfigFile())
	if err != nil {
		fatal("load config: %v", err)
	}
	if err := config.ApplyFileConfig(cfg, values); err != nil {
		fatal("apply config: %v", err)
	}

	// Command-line overrides beat the file.
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if network != "" {
		cfg.Network = net
	}

	if err := config.Validate(cfg); err != nil {
		fatal("config: %v", err)
	}
	return cfg
}

func newClient(cfg *config.Config) *chainio.Client {
	return chainio.NewWithTimeout(cfg.Server.URL, time.Duration(cfg.Server.TimeoutSeconds)*time.Second)
}

func openKeystore(cfg *config.Config) *wallet.Keystore {
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	return ks
}

func openStore(cfg *config.Config) *poolstore.Store {
	store, err := poolstore.Open(cfg.StoreDir())
	if err != nil {
		fatal("open store: %v", err)
	}
	return store
}

// openWallet prompts for the password and unlocks the named wallet.
func openWallet(ks *wallet.Keystore, name string) *wallet.KeyMaterial {
	if name == "" {
		fatal("--wallet is required")
	}
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	km, err := ks.Open(name, password)
	if err != nil {
		fatal("open wallet: %v", err)
	}
	return km
}

// =============================================================================
// wallet
// =============================================================================

func cmdWallet(args []string, cfg *config.Config) {
	if len(args) < 1 {
		fatal("Usage: stealthpool wallet <create|import|list|show|coins> [flags]")
	}

	switch args[0] {
	case "create":
		cmdWalletCreate(args[1:], cfg)
	case "import":
		cmdWalletImport(args[1:], cfg)
	case "list":
		cmdWalletList(cfg)
	case "show":
		cmdWalletShow(args[1:], cfg)
	case "coins":
		cmdWalletCoins(args[1:], cfg)
	default:
		fatal("Unknown wallet command: %s", args[0])
	}
}

func cmdWalletCreate(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: stealthpool wallet create --name <name>")
	}

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	createWalletFromMnemonic(cfg, *name, mnemonic)
}

func cmdWalletImport(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic")
	fs.Parse(args)

	if *name == "" || *mnemonic == "" {
		fatal(`Usage: stealthpool wallet import --name <name> --mnemonic "..."`)
	}
	if !wallet.ValidateMnemonic(*mnemonic) {
		fatal("invalid mnemonic")
	}

	createWalletFromMnemonic(cfg, *name, *mnemonic)
}

func createWalletFromMnemonic(cfg *config.Config, name, mnemonic string) {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}

	km, err := wallet.KeyMaterialFromSeed(seed, 0)
	if err != nil {
		fatal("derive keys: %v", err)
	}

	ks := openKeystore(cfg)
	if err := ks.Create(name, seed, password, 0, wallet.DefaultParams()); err != nil {
		fatal("create wallet: %v", err)
	}

	for i := range seed {
		seed[i] = 0
	}

	fmt.Printf("\nWallet created: %s\n", name)
	fmt.Printf("Paycode: %s\n", km.Paycode())
	fmt.Printf("Prefix bucket: 0x%02x\n", km.PrefixBucket())
}

func cmdWalletList(cfg *config.Config) {
	ks := openKeystore(cfg)
	names, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("No wallets.")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func cmdWalletShow(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("wallet show", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	ks := openKeystore(cfg)
	km := openWallet(ks, *name)

	fundingKey, err := km.FundingKey(0)
	if err != nil {
		fatal("derive funding key: %v", err)
	}

	fmt.Printf("Paycode:       %s\n", km.Paycode())
	fmt.Printf("Prefix bucket: 0x%02x\n", km.PrefixBucket())
	fmt.Printf("Funding hash:  %s (external index 0)\n", wallet.Hash160ForKey(fundingKey))
}

func cmdWalletCoins(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("wallet coins", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	ks := openKeystore(cfg)
	km := openWallet(ks, *name)
	client := newClient(cfg)

	ctx := context.Background()
	coins, _, err := collectCoins(ctx, client, km)
	if err != nil {
		fatal("list coins: %v", err)
	}
	if len(coins) == 0 {
		fmt.Println("No coins.")
		return
	}
	var total uint64
	for _, c := range coins {
		fmt.Printf("%s  %d sat  (key %d)\n", displayOutpoint(c.Outpoint), c.Value, c.KeyIndex)
		total += c.Value
	}
	fmt.Printf("Total: %d sat\n", total)
}

// collectCoins lists unspent P2PKH coins across the first fundingKeyGap
// external-chain keys. The returned map resolves a key index back to its
// private key.
func collectCoins(ctx context.Context, client *chainio.Client, km *wallet.KeyMaterial) ([]wallet.Coin, map[uint32]*crypto.PrivateKey, error) {
	var coins []wallet.Coin
	keys := make(map[uint32]*crypto.PrivateKey, fundingKeyGap)

	for i := uint32(0); i < fundingKeyGap; i++ {
		key, err := km.FundingKey(i)
		if err != nil {
			return nil, nil, fmt.Errorf("derive funding key %d: %w", i, err)
		}
		keys[i] = key

		owner := wallet.Hash160ForKey(key)
		unspent, err := client.ListUnspent(ctx, owner)
		if err != nil {
			return nil, nil, err
		}
		for _, u := range unspent {
			display, err := types.HexToHash(u.TxHash)
			if err != nil {
				return nil, nil, fmt.Errorf("unspent txid: %w", err)
			}
			coins = append(coins, wallet.Coin{
				Outpoint: types.Outpoint{TxID: display.Reversed(), Index: u.TxPos},
				Value:    u.Value,
				KeyIndex: i,
			})
		}
	}
	return coins, keys, nil
}

// =============================================================================
// pool
// =============================================================================

func cmdPool(args []string, cfg *config.Config) {
	if len(args) < 1 {
		fatal("Usage: stealthpool pool <init|list|show|import|withdraw> [flags]")
	}

	switch args[0] {
	case "init":
		cmdPoolInit(args[1:], cfg)
	case "list":
		cmdPoolList(cfg)
	case "show":
		cmdPoolShow(args[1:], cfg)
	case "import":
		cmdPoolImport(args[1:], cfg)
	case "withdraw":
		cmdPoolWithdraw(args[1:], cfg)
	default:
		fatal("Unknown pool command: %s", args[0])
	}
}

func cmdPoolInit(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("pool init", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	redeemHex := fs.String("redeem-script", "", "Covenant redeem script (hex)")
	shards := fs.Uint("shards", 8, "Number of shards")
	shardValue := fs.Uint64("shard-value", 0, "Value per shard in satoshis")
	versionStr := fs.String("version", "v1.1", "Protocol version (v0, v1, v1.1)")
	modeStr := fs.String("category-mode", "direct", "Category mode (direct, reversed)")
	capability := fs.Uint("capability", uint(script.CapabilityMutable), "NFT capability (0-2)")
	p2sh := fs.Bool("p2sh", true, "Wrap shard outputs in P2SH")
	fs.Parse(args)

	if *name == "" || *redeemHex == "" || *shardValue == 0 {
		fatal("Usage: stealthpool pool init --wallet <w> --redeem-script <hex> --shards <n> --shard-value <sats>")
	}

	redeemScript, err := hex.DecodeString(*redeemHex)
	if err != nil {
		fatal("redeem script: %v", err)
	}
	version, err := types.ParseProtocolVersion(*versionStr)
	if err != nil {
		fatal("%v", err)
	}
	mode, err := fold.ParseCategoryMode(*modeStr)
	if err != nil {
		fatal("%v", err)
	}

	ks := openKeystore(cfg)
	km := openWallet(ks, *name)
	client := newClient(cfg)
	store := openStore(cfg)
	defer store.Close()

	ctx := context.Background()
	coins, keys, err := collectCoins(ctx, client, km)
	if err != nil {
		fatal("list coins: %v", err)
	}

	// Rough funding target; BuildInit re-checks against the exact fee.
	target := uint64(*shards)**shardValue + tx.EstimateTxFee(1, int(*shards)+1, cfg.Chain.FeeRate, 0) + cfg.Chain.DustLimit
	coin, err := wallet.SelectFundingCoin(coins, target)
	if err != nil {
		fatal("select funding: %v", err)
	}

	prevout, err := client.GetPrevOutput(ctx, coin.Outpoint)
	if err != nil {
		fatal("fetch funding prevout: %v", err)
	}

	changeKey, err := km.ChangeKey(0)
	if err != nil {
		fatal("derive change key: %v", err)
	}

	state, result, err := pool.BuildInit(pool.InitParams{
		PoolID:         types.PoolID(crypto.Hash160(coin.Outpoint.Wire())),
		Version:        version,
		CategoryMode:   mode,
		Capability:     script.Capability(*capability),
		RedeemScript:   redeemScript,
		P2SH:           *p2sh,
		ShardCount:     uint32(*shards),
		ShardValue:     *shardValue,
		Funding:        coin.Outpoint,
		FundingPrevout: prevout,
		FundingKey:     keys[coin.KeyIndex],
		ChangeTo:       wallet.Hash160ForKey(changeKey),
		FeeRate:        cfg.Chain.FeeRate,
		DustLimit:      cfg.Chain.DustLimit,
	}, tx.SchnorrAuthorizer{}, pool.StandardTemplates{P2SHWrap: *p2sh})
	if err != nil {
		fatal("build init: %v", err)
	}

	txid, err := client.BroadcastRawTx(ctx, result.RawTx)
	if err != nil {
		fatal("broadcast: %v", err)
	}
	state = state.ResolvePending(txid)

	if err := store.SavePool(state); err != nil {
		fatal("save pool: %v", err)
	}

	fmt.Printf("Pool initialized: %s\n", state.PoolID)
	fmt.Printf("Txid:     %s\n", displayTxID(txid))
	fmt.Printf("Category: %s\n", state.Category)
	fmt.Printf("Shards:   %d x %d sat\n", state.ShardCount, *shardValue)
	fmt.Printf("Fee:      %d sat\n", result.Diagnostics.Fee)
}

func cmdPoolList(cfg *config.Config) {
	store := openStore(cfg)
	defer store.Close()

	states, err := store.ListPools()
	if err != nil {
		fatal("list pools: %v", err)
	}
	if len(states) == 0 {
		fmt.Println("No pools.")
		return
	}
	for _, s := range states {
		var total uint64
		for _, shard := range s.Shards {
			total += shard.Value
		}
		fmt.Printf("%s  %s  %d shards  %d sat\n", s.PoolID, s.Version, s.ShardCount, total)
	}
}

func cmdPoolShow(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("pool show", flag.ExitOnError)
	poolHex := fs.String("pool", "", "Pool id (hex)")
	fs.Parse(args)

	store := openStore(cfg)
	defer store.Close()

	state := loadPool(store, *poolHex)

	fmt.Printf("Pool:          %s\n", state.PoolID)
	fmt.Printf("Version:       %s\n", state.Version)
	fmt.Printf("Category:      %s\n", state.Category)
	fmt.Printf("Category mode: %s\n", state.CategoryMode)
	fmt.Printf("Shards:\n")
	for _, shard := range state.Shards {
		fmt.Printf("  %2d  %s  %d sat  %s\n",
			shard.Index, displayOutpoint(shard.Outpoint), shard.Value, shard.Commitment)
	}
}

func cmdPoolImport(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("pool import", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	poolHex := fs.String("pool", "", "Pool id (hex)")
	outpointStr := fs.String("outpoint", "", "Deposit outpoint (txid:vout)")
	shardIdx := fs.Int("shard", -1, "Shard index override")
	fs.Parse(args)

	if *name == "" || *poolHex == "" || *outpointStr == "" {
		fatal("Usage: stealthpool pool import --wallet <w> --pool <id> --outpoint <txid:vout>")
	}

	deposit, err := parseOutpoint(*outpointStr)
	if err != nil {
		fatal("%v", err)
	}

	ks := openKeystore(cfg)
	km := openWallet(ks, *name)
	client := newClient(cfg)
	store := openStore(cfg)
	defer store.Close()

	state := loadPool(store, *poolHex)
	ctx := context.Background()

	depositPrevout, err := client.GetPrevOutput(ctx, deposit)
	if err != nil {
		fatal("fetch deposit prevout: %v", err)
	}
	depositKey, err := resolveSpendKey(km, store, deposit, depositPrevout.Script)
	if err != nil {
		fatal("%v", err)
	}
	covenantKey, err := km.FundingKey(operatorKeyIndex)
	if err != nil {
		fatal("derive operator key: %v", err)
	}

	params := pool.ImportParams{
		Deposit:        deposit,
		DepositPrevout: depositPrevout,
		DepositKey:     depositKey,
		CovenantKey:    covenantKey,
		FeeRate:        cfg.Chain.FeeRate,
		DustLimit:      cfg.Chain.DustLimit,
	}
	if *shardIdx >= 0 {
		idx := uint32(*shardIdx)
		params.ShardIndex = &idx
	}

	nextState, result, err := pool.BuildImport(state, params, tx.SchnorrAuthorizer{}, pool.StandardTemplates{P2SHWrap: state.P2SH})
	if err != nil {
		fatal("build import: %v", err)
	}

	consumed, err := state.Shard(result.Diagnostics.ShardIndex)
	if err != nil {
		fatal("%v", err)
	}

	txid, err := client.BroadcastRawTx(ctx, result.RawTx)
	if err != nil {
		fatal("broadcast: %v", err)
	}
	nextState = nextState.ResolvePending(txid)

	if err := store.SwapPool(nextState, consumed.Index, consumed.Commitment); err != nil {
		fatal("save pool: %v", err)
	}
	if note, noteErr := store.LoadNote(deposit); noteErr == nil && note != nil {
		if err := store.MarkNoteSpent(deposit); err != nil {
			fatal("mark note spent: %v", err)
		}
	}

	fmt.Printf("Deposit folded into shard %d\n", result.Diagnostics.ShardIndex)
	fmt.Printf("Txid:       %s\n", displayTxID(txid))
	fmt.Printf("Note hash:  %s\n", result.Diagnostics.NoteHash)
	fmt.Printf("Commitment: %s -> %s\n", result.Diagnostics.CommitmentIn, result.Diagnostics.CommitmentOut)
	fmt.Printf("Fee:        %d sat\n", result.Diagnostics.Fee)
}

func cmdPoolWithdraw(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("pool withdraw", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	poolHex := fs.String("pool", "", "Pool id (hex)")
	amount := fs.Uint64("amount", 0, "Payment in satoshis")
	to := fs.String("to", "", "Recipient (paycode or hash160 hex)")
	shardIdx := fs.Int("shard", -1, "Shard index override")
	fs.Parse(args)

	if *name == "" || *poolHex == "" || *amount == 0 || *to == "" {
		fatal("Usage: stealthpool pool withdraw --wallet <w> --pool <id> --amount <sats> --to <paycode|hash160>")
	}

	ks := openKeystore(cfg)
	km := openWallet(ks, *name)
	client := newClient(cfg)
	store := openStore(cfg)
	defer store.Close()

	state := loadPool(store, *poolHex)
	ctx := context.Background()

	coins, keys, err := collectCoins(ctx, client, km)
	if err != nil {
		fatal("list coins: %v", err)
	}
	feeTarget := tx.EstimateTxFee(2, 3, cfg.Chain.FeeRate, tx.CovenantInputExtraBytes(len(state.RedeemScript))) + cfg.Chain.DustLimit
	feeCoin, err := wallet.SelectFundingCoin(coins, feeTarget)
	if err != nil {
		fatal("select fee coin: %v", err)
	}
	feePrevout, err := client.GetPrevOutput(ctx, feeCoin.Outpoint)
	if err != nil {
		fatal("fetch fee prevout: %v", err)
	}
	feeKey := keys[feeCoin.KeyIndex]

	// A paycode recipient gets a one-time stealth output keyed to the fee
	// outpoint; a raw hash160 is used as-is.
	payTo, err := resolveRecipient(*to, feeKey, feeCoin.Outpoint, cfg.Scan.MaxRoleIndex)
	if err != nil {
		fatal("%v", err)
	}

	covenantKey, err := km.FundingKey(operatorKeyIndex)
	if err != nil {
		fatal("derive operator key: %v", err)
	}
	changeKey, err := km.ChangeKey(0)
	if err != nil {
		fatal("derive change key: %v", err)
	}

	params := pool.WithdrawParams{
		Payment:     *amount,
		PayTo:       payTo,
		Fee:         feeCoin.Outpoint,
		FeePrevout:  feePrevout,
		FeeKey:      feeKey,
		CovenantKey: covenantKey,
		ChangeTo:    wallet.Hash160ForKey(changeKey),
		FeeRate:     cfg.Chain.FeeRate,
		DustLimit:   cfg.Chain.DustLimit,
	}
	if *shardIdx >= 0 {
		idx := uint32(*shardIdx)
		params.ShardIndex = &idx
	}

	nextState, result, err := pool.BuildWithdraw(state, params, tx.SchnorrAuthorizer{}, pool.StandardTemplates{P2SHWrap: state.P2SH})
	if err != nil {
		fatal("build withdraw: %v", err)
	}

	consumed, err := state.Shard(result.Diagnostics.ShardIndex)
	if err != nil {
		fatal("%v", err)
	}

	txid, err := client.BroadcastRawTx(ctx, result.RawTx)
	if err != nil {
		fatal("broadcast: %v", err)
	}
	nextState = nextState.ResolvePending(txid)

	if err := store.SwapPool(nextState, consumed.Index, consumed.Commitment); err != nil {
		fatal("save pool: %v", err)
	}

	fmt.Printf("Withdrew %d sat from shard %d\n", *amount, result.Diagnostics.ShardIndex)
	fmt.Printf("Txid:       %s\n", displayTxID(txid))
	fmt.Printf("Commitment: %s -> %s\n", result.Diagnostics.CommitmentIn, result.Diagnostics.CommitmentOut)
	fmt.Printf("Fee:        %d sat\n", result.Diagnostics.Fee)
}

func loadPool(store *poolstore.Store, poolHex string) *pool.State {
	if poolHex == "" {
		states, err := store.ListPools()
		if err != nil {
			fatal("list pools: %v", err)
		}
		if len(states) == 1 {
			return states[0]
		}
		fatal("--pool is required when more than one pool is stored")
	}

	raw, err := hex.DecodeString(poolHex)
	if err != nil || len(raw) != types.PoolIDSize {
		fatal("pool id must be %d hex bytes", types.PoolIDSize)
	}
	var id types.PoolID
	copy(id[:], raw)

	state, err := store.LoadPool(id)
	if err != nil {
		fatal("load pool: %v", err)
	}
	return state
}

// resolveSpendKey finds the private key controlling a P2PKH outpoint:
// a stored stealth note's re-derived one-time key, or one of the
// wallet's funding keys matched by payment hash.
func resolveSpendKey(km *wallet.KeyMaterial, store *poolstore.Store, outpoint types.Outpoint, prevoutScript []byte) (*crypto.PrivateKey, error) {
	_, lock, err := script.Split(prevoutScript)
	if err != nil {
		return nil, fmt.Errorf("prevout script: %w", err)
	}
	want, ok := script.ExtractP2PKHHash(lock)
	if !ok {
		return nil, fmt.Errorf("outpoint %s is not P2PKH", displayOutpoint(outpoint))
	}

	if note, err := store.LoadNote(outpoint); err == nil {
		secret, err := rpa.DeriveSharedSecret(km.Scan, note.Context.SenderPub, note.Context.Prevout())
		if err != nil {
			return nil, fmt.Errorf("re-derive note secret: %w", err)
		}
		key, err := rpa.DeriveOneTimePriv(km.Spend, secret, note.Context.RoleIndex)
		if err != nil {
			return nil, fmt.Errorf("re-derive note key: %w", err)
		}
		if wallet.Hash160ForKey(key) != want {
			return nil, fmt.Errorf("note key does not match outpoint %s", displayOutpoint(outpoint))
		}
		return key, nil
	}

	for i := uint32(0); i < fundingKeyGap; i++ {
		key, err := km.FundingKey(i)
		if err != nil {
			return nil, err
		}
		if wallet.Hash160ForKey(key) == want {
			return key, nil
		}
	}
	return nil, fmt.Errorf("no key found for outpoint %s", displayOutpoint(outpoint))
}

// resolveRecipient turns a --to argument into a payment hash. Paycodes
// yield a ground one-time stealth key bound to the spent outpoint.
func resolveRecipient(to string, senderKey *crypto.PrivateKey, prevout types.Outpoint, maxTries uint32) (types.Hash160, error) {
	if strings.HasPrefix(to, wallet.PaycodePrefix) {
		scanPub, err := wallet.DecodePaycode(to)
		if err != nil {
			return types.Hash160{}, err
		}
		bucket := rpa.DefaultPrefix(scanPub)
		_, oneTimePub, err := rpa.GrindRoleIndex(senderKey, scanPub, prevout, bucket, maxTries)
		if err != nil {
			// Grinding is an optimization; fall back to role index 0.
			oneTimePub, err = rpa.SenderDerive(senderKey, scanPub, prevout, 0)
			if err != nil {
				return types.Hash160{}, err
			}
		}
		return crypto.Hash160(oneTimePub), nil
	}

	raw, err := hex.DecodeString(to)
	if err != nil || len(raw) != types.Hash160Size {
		return types.Hash160{}, fmt.Errorf("recipient must be a paycode or %d hex bytes", types.Hash160Size)
	}
	var h types.Hash160
	copy(h[:], raw)
	return h, nil
}

// =============================================================================
// scan
// =============================================================================

func cmdScan(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	ks := openKeystore(cfg)
	km := openWallet(ks, *name)
	client := newClient(cfg)
	store := openStore(cfg)
	defer store.Close()

	bucket := km.PrefixBucket()
	ctx := context.Background()

	cursor, err := store.ScanCursor(bucket)
	if err != nil {
		fatal("scan cursor: %v", err)
	}

	history, err := client.GetPrefixHistory(ctx, bucket, cursor)
	if err != nil {
		fatal("prefix history: %v", err)
	}
	log.Scan.Info().
		Int("transactions", len(history)).
		Str("bucket", fmt.Sprintf("0x%02x", bucket)).
		Int64("from_height", cursor).
		Msg("scanning prefix history")

	opts := rpa.ScanOptions{
		MaxRoleIndex: cfg.Scan.MaxRoleIndex,
		MaxMatches:   cfg.Scan.MaxMatches,
	}

	found := 0
	maxHeight := cursor
	for _, item := range history {
		txid, err := chainio.ParseHistoryTxID(item)
		if err != nil {
			fatal("%v", err)
		}
		raw, err := client.GetRawTransaction(ctx, txid)
		if err != nil {
			fatal("fetch transaction: %v", err)
		}

		matches, err := rpa.ScanTransaction(ctx, raw, km.Scan, km.Spend, opts)
		if err != nil {
			fatal("scan %s: %v", displayTxID(txid), err)
		}
		for _, m := range matches {
			note := &poolstore.Note{
				Outpoint: types.Outpoint{TxID: txid, Index: m.OutputIndex},
				Value:    m.Value,
				Hash160:  m.Hash160,
				Context:  m.Context,
				FoundAt:  time.Now().UTC(),
			}
			if err := store.SaveNote(note); err != nil {
				fatal("save note: %v", err)
			}
			fmt.Printf("Found %d sat at %s (role %d)\n",
				m.Value, displayOutpoint(note.Outpoint), m.Context.RoleIndex)
			found++
		}
		if item.Height > maxHeight {
			maxHeight = item.Height
		}
	}

	if maxHeight > cursor {
		if err := store.SetScanCursor(bucket, maxHeight); err != nil {
			fatal("save cursor: %v", err)
		}
	}
	fmt.Printf("Scanned %d transactions, found %d payments.\n", len(history), found)
}

// =============================================================================
// send
// =============================================================================

func cmdSend(args []string, cfg *config.Config) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	to := fs.String("to", "", "Recipient (paycode or hash160 hex)")
	amount := fs.Uint64("amount", 0, "Payment in satoshis")
	fs.Parse(args)

	if *name == "" || *to == "" || *amount == 0 {
		fatal("Usage: stealthpool send --wallet <w> --to <paycode|hash160> --amount <sats>")
	}
	if *amount < cfg.Chain.DustLimit {
		fatal("amount %d is below the dust limit %d", *amount, cfg.Chain.DustLimit)
	}

	ks := openKeystore(cfg)
	km := openWallet(ks, *name)
	client := newClient(cfg)

	ctx := context.Background()
	coins, keys, err := collectCoins(ctx, client, km)
	if err != nil {
		fatal("list coins: %v", err)
	}

	fee := tx.EstimateTxFee(1, 2, cfg.Chain.FeeRate, 0)
	coin, err := wallet.SelectFundingCoin(coins, *amount+fee+cfg.Chain.DustLimit)
	if err != nil {
		fatal("select coin: %v", err)
	}
	key := keys[coin.KeyIndex]

	prevout, err := client.GetPrevOutput(ctx, coin.Outpoint)
	if err != nil {
		fatal("fetch prevout: %v", err)
	}

	payTo, err := resolveRecipient(*to, key, coin.Outpoint, cfg.Scan.MaxRoleIndex)
	if err != nil {
		fatal("%v", err)
	}
	changeKey, err := km.ChangeKey(0)
	if err != nil {
		fatal("derive change key: %v", err)
	}
	change := coin.Value - *amount - fee

	transaction := tx.New().
		AddInput(coin.Outpoint).
		AddOutput(*amount, script.P2PKH(payTo)).
		AddOutput(change, script.P2PKH(wallet.Hash160ForKey(changeKey)))

	auth := tx.SchnorrAuthorizer{}
	if err := auth.AuthorizeP2PKHInput(transaction, 0, key, prevout); err != nil {
		fatal("authorize: %v", err)
	}

	raw, err := transaction.Serialize()
	if err != nil {
		fatal("serialize: %v", err)
	}
	txid, err := client.BroadcastRawTx(ctx, raw)
	if err != nil {
		fatal("broadcast: %v", err)
	}

	fmt.Printf("Sent %d sat\n", *amount)
	fmt.Printf("Txid: %s\n", displayTxID(txid))
	fmt.Printf("Fee:  %d sat\n", fee)
}

// =============================================================================
// helpers
// =============================================================================

// parseOutpoint parses "txid:vout" with the txid in display order.
func parseOutpoint(s string) (types.Outpoint, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return types.Outpoint{}, fmt.Errorf("outpoint must be txid:vout")
	}
	display, err := types.HexToHash(s[:idx])
	if err != nil {
		return types.Outpoint{}, fmt.Errorf("outpoint txid: %w", err)
	}
	vout, err := strconv.ParseUint(s[idx+1:], 10, 32)
	if err != nil {
		return types.Outpoint{}, fmt.Errorf("outpoint vout: %w", err)
	}
	return types.Outpoint{TxID: display.Reversed(), Index: uint32(vout)}, nil
}

// displayTxID renders a wire-order txid in explorer byte order.
func displayTxID(txid types.Hash) string {
	return txid.Reversed().String()
}

// displayOutpoint renders an outpoint with its txid in explorer byte order.
func displayOutpoint(outpoint types.Outpoint) string {
	return fmt.Sprintf("%s:%d", displayTxID(outpoint.TxID), outpoint.Index)
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
