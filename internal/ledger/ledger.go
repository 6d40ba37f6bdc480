// Package ledger is a single-process ledger that executes signed
// transactions against the token and settlement programs. It verifies
// signatures, rejects replays and applies each transaction atomically under
// one lock, so concurrent submissions never interleave.
package ledger

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/atmx/bond-market/internal/address"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/token"
)

// Receipt describes a committed transaction.
type Receipt struct {
	Signature string       `json:"signature"`
	Slot      uint64       `json:"slot"`
	Time      time.Time    `json:"time"`
	Signers   []address.ID `json:"signers"`

	// Events are emitted by settlement instructions in execution order.
	Events []settlement.Event `json:"-"`
}

// AccountInfo is a copy of one account. Exactly one of the typed fields is
// set, as named by Type.
type AccountInfo struct {
	ID           address.ID         `json:"id"`
	Type         string             `json:"type"`
	Market       *settlement.Market `json:"market,omitempty"`
	Mint         *token.Mint        `json:"mint,omitempty"`
	TokenAccount *token.Account     `json:"token_account,omitempty"`
}

const (
	AccountTypeMarket       = "market"
	AccountTypeMint         = "mint"
	AccountTypeTokenAccount = "token_account"
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for maturity checks and
// receipts.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.clock = now }
}

// WithLogger sets the logger for rejections and commits.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// Ledger holds all committed accounts in memory.
type Ledger struct {
	engine *settlement.Engine
	clock  func() time.Time
	log    *slog.Logger

	mu       sync.RWMutex
	slot     uint64
	markets  map[address.ID]settlement.Market
	mints    map[address.ID]token.Mint
	accounts map[address.ID]token.Account
	seen     map[[sha256.Size]byte]struct{}

	hookMu    sync.Mutex
	hookTurn  *sync.Cond
	hooks     []func(*Receipt)
	delivered uint64 // last slot whose hooks have run
}

// New creates an empty ledger executing settlement instructions with engine.
func New(engine *settlement.Engine, opts ...Option) *Ledger {
	l := &Ledger{
		engine:   engine,
		clock:    func() time.Time { return time.Now().UTC() },
		log:      slog.Default(),
		markets:  make(map[address.ID]settlement.Market),
		mints:    make(map[address.ID]token.Mint),
		accounts: make(map[address.ID]token.Account),
		seen:     make(map[[sha256.Size]byte]struct{}),
	}
	l.hookTurn = sync.NewCond(&l.hookMu)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Program returns the settlement program id.
func (l *Ledger) Program() address.ID { return l.engine.Program() }

// OnCommit registers fn to run after every committed transaction. Hooks run
// synchronously on the submitting goroutine, after the ledger lock is
// released, in registration order. Receipts reach hooks one at a time in
// slot order, so a hook never sees slot n+1 before slot n has finished. A
// hook must not call Submit.
func (l *Ledger) OnCommit(fn func(*Receipt)) {
	l.hookMu.Lock()
	defer l.hookMu.Unlock()
	l.hooks = append(l.hooks, fn)
}

// Submit verifies and executes tx. Either every instruction succeeds and
// the transaction commits, or none of its effects are kept. ctx is only
// consulted before execution starts.
func (l *Ledger) Submit(ctx context.Context, tx *Transaction) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tx.Verify(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(tx.Message())
	signers := settlement.Signers(tx.Signers)

	l.mu.Lock()
	if err := ctx.Err(); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	if _, dup := l.seen[digest]; dup {
		l.mu.Unlock()
		return nil, ErrDuplicate
	}

	ov := newOverlay(l, l.clock())
	var events []settlement.Event
	for i := range tx.Instructions {
		ix := &tx.Instructions[i]
		ev, err := l.execute(ov, signers, ix)
		if err != nil {
			l.mu.Unlock()
			l.log.Warn("transaction rejected",
				"tx", tx.ID(),
				"instruction", i,
				"kind", ix.Kind,
				"reason", Reason(err),
				"error", err,
			)
			return nil, fmt.Errorf("ledger: instruction %d (%s): %w", i, ix.Kind, err)
		}
		if ev != nil {
			events = append(events, ev)
		}
	}

	ov.commit()
	l.seen[digest] = struct{}{}
	l.slot++
	receipt := &Receipt{
		Signature: tx.ID(),
		Slot:      l.slot,
		Time:      ov.now,
		Signers:   append([]address.ID(nil), tx.Signers...),
		Events:    events,
	}
	l.mu.Unlock()

	l.log.Debug("transaction committed", "tx", receipt.Signature, "slot", receipt.Slot, "events", len(events))

	l.deliver(receipt)
	return receipt, nil
}

// deliver waits for the hooks of every earlier slot to finish and then runs
// the hooks for r.
func (l *Ledger) deliver(r *Receipt) {
	l.hookMu.Lock()
	for l.delivered+1 != r.Slot {
		l.hookTurn.Wait()
	}
	hooks := slices.Clone(l.hooks)
	l.hookMu.Unlock()

	defer func() {
		l.hookMu.Lock()
		l.delivered = r.Slot
		l.hookTurn.Broadcast()
		l.hookMu.Unlock()
	}()
	for _, h := range hooks {
		h(r)
	}
}

func (l *Ledger) execute(ov *overlay, signers settlement.Signers, ix *Instruction) (settlement.Event, error) {
	switch ix.Program {
	case token.ProgramID:
		return nil, executeToken(ov, signers, ix)
	case l.engine.Program():
		return l.executeSettlement(ov, signers, ix)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, ix.Program)
	}
}

// Account returns a copy of the account at id.
func (l *Ledger) Account(ctx context.Context, id address.ID) (*AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	info := &AccountInfo{ID: id}
	if m, ok := l.markets[id]; ok {
		info.Type, info.Market = AccountTypeMarket, &m
		return info, nil
	}
	if m, ok := l.mints[id]; ok {
		info.Type, info.Mint = AccountTypeMint, &m
		return info, nil
	}
	if a, ok := l.accounts[id]; ok {
		info.Type, info.TokenAccount = AccountTypeTokenAccount, &a
		return info, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
}

// Slot returns the number of committed transactions.
func (l *Ledger) Slot() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slot
}

func (l *Ledger) exists(id address.ID) bool {
	if _, ok := l.markets[id]; ok {
		return true
	}
	if _, ok := l.mints[id]; ok {
		return true
	}
	_, ok := l.accounts[id]
	return ok
}
