package testutil

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/dexsim/internal/engine"
	"github.com/mselser95/dexsim/pkg/chain"
	"github.com/mselser95/dexsim/pkg/types"
)

// ApproveCall records one Approve write against the mock gateway.
type ApproveCall struct {
	Token   common.Address
	Spender common.Address
	Amount  *big.Int
}

// SwapCall records one SwapExactTokensForTokens write against the mock gateway.
type SwapCall struct {
	Router       common.Address
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Path         []common.Address
	To           common.Address
	Deadline     *big.Int
}

// FillCall records one FillOrderArgs write against the mock gateway.
type FillCall struct {
	Router      common.Address
	Order       chain.LimitOrder
	Sig         chain.Signature
	Amount      *big.Int
	TakerTraits *big.Int
	Args        []byte
}

// MockGateway is a scriptable in-memory chain.Gateway. Reads are served from
// maps seeded by tests; writes are recorded so tests can assert exactly which
// transactions were (or were not) submitted.
type MockGateway struct {
	mu sync.Mutex

	account    common.Address
	balances   map[string]*big.Int // token|owner
	allowances map[string]*big.Int // token|owner|spender
	quotes     map[string][]*big.Int
	symbols    map[common.Address]string
	decimals   map[common.Address]uint8

	// Error injection. When set, the matching method returns the error
	// instead of consulting the maps.
	QuoteErr   error
	BalanceErr error
	ApproveErr error
	SwapErr    error
	FillErr    error

	ApproveCalls []ApproveCall
	SwapCalls    []SwapCall
	FillCalls    []FillCall

	txCounter int
}

// NewMockGateway creates an empty mock gateway acting as account.
func NewMockGateway(account common.Address) *MockGateway {
	return &MockGateway{
		account:    account,
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
		quotes:     make(map[string][]*big.Int),
		symbols:    make(map[common.Address]string),
		decimals:   make(map[common.Address]uint8),
	}
}

// SetBalance seeds owner's balance of token.
func (m *MockGateway) SetBalance(token, owner common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey(token, owner)] = new(big.Int).Set(amount)
}

// SetAllowance seeds an allowance.
func (m *MockGateway) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey(token, owner, spender)] = new(big.Int).Set(amount)
}

// SetQuote seeds the router response for a path. The last element is the
// quoted output amount.
func (m *MockGateway) SetQuote(path []common.Address, amounts []*big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[pathKey(path)] = amounts
}

// SetTokenMetadata seeds symbol and decimals for a token.
func (m *MockGateway) SetTokenMetadata(token common.Address, symbol string, dec uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols[token] = symbol
	m.decimals[token] = dec
}

// WriteCount returns how many state-changing calls the gateway received.
func (m *MockGateway) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ApproveCalls) + len(m.SwapCalls) + len(m.FillCalls)
}

// QuoteAmountsOut returns the scripted quote for the path.
func (m *MockGateway) QuoteAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.QuoteErr != nil {
		return nil, m.QuoteErr
	}

	amounts, ok := m.quotes[pathKey(path)]
	if !ok {
		return nil, &types.ReadError{Call: "getAmountsOut", Err: fmt.Errorf("no quote scripted for path")}
	}

	return amounts, nil
}

// BalanceOf returns the scripted balance, zero when unseeded.
func (m *MockGateway) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}

	if bal, ok := m.balances[balanceKey(token, owner)]; ok {
		return new(big.Int).Set(bal), nil
	}

	return big.NewInt(0), nil
}

// Allowance returns the scripted allowance, zero when unseeded.
func (m *MockGateway) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if allowance, ok := m.allowances[allowanceKey(token, owner, spender)]; ok {
		return new(big.Int).Set(allowance), nil
	}

	return big.NewInt(0), nil
}

// TokenSymbol returns the scripted symbol.
func (m *MockGateway) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if symbol, ok := m.symbols[token]; ok {
		return symbol, nil
	}

	return "", &types.ReadError{Call: "symbol", Err: fmt.Errorf("no metadata scripted")}
}

// TokenDecimals returns the scripted decimals.
func (m *MockGateway) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dec, ok := m.decimals[token]; ok {
		return dec, nil
	}

	return 0, &types.ReadError{Call: "decimals", Err: fmt.Errorf("no metadata scripted")}
}

// Approve records the call and bumps the allowance.
func (m *MockGateway) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ApproveErr != nil {
		return nil, m.ApproveErr
	}

	m.ApproveCalls = append(m.ApproveCalls, ApproveCall{
		Token:   token,
		Spender: spender,
		Amount:  new(big.Int).Set(amount),
	})
	m.allowances[allowanceKey(token, m.account, spender)] = new(big.Int).Set(amount)

	return m.receipt(), nil
}

// SwapExactTokensForTokens records the call.
func (m *MockGateway) SwapExactTokensForTokens(ctx context.Context, router common.Address, amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SwapErr != nil {
		return nil, m.SwapErr
	}

	m.SwapCalls = append(m.SwapCalls, SwapCall{
		Router:       router,
		AmountIn:     new(big.Int).Set(amountIn),
		AmountOutMin: new(big.Int).Set(amountOutMin),
		Path:         path,
		To:           to,
		Deadline:     new(big.Int).Set(deadline),
	})

	return m.receipt(), nil
}

// FillOrderArgs records the call.
func (m *MockGateway) FillOrderArgs(ctx context.Context, router common.Address, order chain.LimitOrder, sig chain.Signature, amount, takerTraits *big.Int, args []byte) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FillErr != nil {
		return nil, m.FillErr
	}

	m.FillCalls = append(m.FillCalls, FillCall{
		Router:      router,
		Order:       order,
		Sig:         sig,
		Amount:      new(big.Int).Set(amount),
		TakerTraits: new(big.Int).Set(takerTraits),
		Args:        args,
	})

	return m.receipt(), nil
}

// Account returns the acting account.
func (m *MockGateway) Account() common.Address {
	return m.account
}

// Close is a no-op.
func (m *MockGateway) Close() {}

func (m *MockGateway) receipt() *types.Receipt {
	m.txCounter++
	return &types.Receipt{
		TxHash:      fmt.Sprintf("0x%064x", m.txCounter),
		BlockNumber: uint64(1000 + m.txCounter),
		GasUsed:     21_000,
	}
}

func balanceKey(token, owner common.Address) string {
	return token.Hex() + "|" + owner.Hex()
}

func allowanceKey(token, owner, spender common.Address) string {
	return token.Hex() + "|" + owner.Hex() + "|" + spender.Hex()
}

func pathKey(path []common.Address) string {
	key := ""
	for _, hop := range path {
		key += hop.Hex() + ">"
	}
	return key
}

// MockStorage is an in-memory report sink for testing.
type MockStorage struct {
	Reports []*engine.Report
	mu      sync.Mutex
}

// NewMockStorage creates a new mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		Reports: make([]*engine.Report, 0),
	}
}

// SaveReport stores a report in memory.
func (s *MockStorage) SaveReport(ctx context.Context, report *engine.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reports = append(s.Reports, report)
	return nil
}

// Close is a no-op for mock storage.
func (s *MockStorage) Close() error {
	return nil
}
