package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/internal/apperror"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

type revertError struct{}

func (revertError) Error() string { return "execution reverted: no profit" }
func (revertError) ErrorCode() int { return 3 }
func (revertError) ErrorData() any { return "0x08c379a0" }

// fakeNode implements every client interface used by the package.
type fakeNode struct {
	mu sync.Mutex

	chainID  int64
	block    uint64
	gasPrice *big.Int
	gasErr   error
	gasCalls int

	estimate    uint64
	estimateErr error
	nonce       uint64
	sent        []*types.Transaction
	sendErr     error
	receipts    map[common.Hash]*types.Receipt
	receiptErr  error
}

func (f *fakeNode) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(f.chainID), nil }
func (f *fakeNode) BlockNumber(ctx context.Context) (uint64, error) { return f.block, f.gasErr }

func (f *fakeNode) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gasCalls++
	return f.gasPrice, f.gasErr
}

func (f *fakeNode) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.estimate, f.estimateErr
}

func (f *fakeNode) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeNode) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeNode) TransactionReceipt(ctx context.Context, h common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func TestGasOracle_CachesAndConverts(t *testing.T) {
	node := &fakeNode{gasPrice: big.NewInt(12_500_000_000)}
	g, err := NewGasOracle(GasOracleConfig{CacheTTL: time.Minute}, node, nil, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	for range 3 {
		gwei, err := g.GasPriceGwei(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if gwei.String() != "12.5" {
			t.Errorf("gwei = %s, want 12.5", gwei)
		}
	}
	if node.gasCalls != 1 {
		t.Errorf("node calls = %d, want 1", node.gasCalls)
	}
}

func TestGasOracle_Failure(t *testing.T) {
	node := &fakeNode{gasErr: errors.New("connection refused")}
	g, err := NewGasOracle(DefaultGasOracleConfig(), node, nil, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	if _, err := g.GasPriceGwei(context.Background()); !apperror.IsConnectionFailure(err) {
		t.Errorf("got %v, want CONNECTION_FAILURE", err)
	}
}

func TestConnection_VerifyChainID(t *testing.T) {
	tests := []struct {
		name     string
		node     int64
		want     uint64
		wantCode apperror.Code
	}{
		{"match", 8453, 8453, ""},
		{"mismatch", 1, 8453, apperror.CodeConfigurationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConnection(&fakeNode{chainID: tt.node}, nil, &mockLogger{})
			err := c.VerifyChainID(context.Background(), tt.want)
			if got := apperror.GetCode(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestConnection_Ping(t *testing.T) {
	node := &fakeNode{chainID: 8453, block: 1234, gasPrice: big.NewInt(1_000_000)}
	g, err := NewGasOracle(DefaultGasOracleConfig(), node, nil, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	c := NewConnection(node, g, &mockLogger{})
	st, err := c.Ping(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.BlockNumber != 1234 || st.GasPrice == nil || st.GasPrice.Gwei().String() != "0.001" {
		t.Errorf("status = %+v", st)
	}

	node.gasErr = errors.New("down")
	if _, err := c.Ping(context.Background()); !apperror.IsConnectionFailure(err) {
		t.Errorf("got %v, want CONNECTION_FAILURE", err)
	}
}

func newTestExecutor(t *testing.T, node *fakeNode, gasLimit uint64) *Executor {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewExecutor(ExecutorConfig{
		ChainID:     8453,
		Contract:    common.HexToAddress("0x00000000000000000000000000000000000000c0"),
		PrivateKey:  "0x" + common.Bytes2Hex(crypto.FromECDSA(key)),
		GasLimit:    gasLimit,
		ReceiptPoll: 5 * time.Millisecond,
	}, node, nil, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func tradeRequest() domain.TradeRequest {
	return domain.TradeRequest{
		ID:         "opp-1",
		Token:      common.HexToAddress("0x01"),
		QuoteToken: common.HexToAddress("0x02"),
		BuyRouter:  common.HexToAddress("0x03"),
		SellRouter: common.HexToAddress("0x04"),
		AmountIn:   big.NewInt(1_000_000),
		MinReturn:  big.NewInt(1_005_000),
	}
}

func TestExecutor_SubmitSignsAndSends(t *testing.T) {
	node := &fakeNode{estimate: 100_000, gasPrice: big.NewInt(1_000_000_000), nonce: 7}
	e := newTestExecutor(t, node, 0)

	h1, err := e.Submit(context.Background(), tradeRequest())
	if err != nil {
		t.Fatal(err)
	}
	h2, err := e.Submit(context.Background(), tradeRequest())
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("duplicate hashes")
	}
	if len(node.sent) != 2 {
		t.Fatalf("sent = %d", len(node.sent))
	}

	tx := node.sent[0]
	if tx.Gas() != 110_000 {
		t.Errorf("gas = %d, want estimate plus 10%%", tx.Gas())
	}
	if tx.Nonce() != 7 || node.sent[1].Nonce() != 8 {
		t.Errorf("nonces = %d, %d; want 7, 8", tx.Nonce(), node.sent[1].Nonce())
	}
	from, err := types.Sender(types.NewEIP155Signer(big.NewInt(8453)), tx)
	if err != nil {
		t.Fatal(err)
	}
	if from != e.From() {
		t.Errorf("sender = %s, want %s", from.Hex(), e.From().Hex())
	}
}

func TestExecutor_SubmitRejections(t *testing.T) {
	tests := []struct {
		name     string
		node     *fakeNode
		gasLimit uint64
		wantCode apperror.Code
	}{
		{"estimate reverts", &fakeNode{estimateErr: revertError{}, gasPrice: big.NewInt(1)}, 0, apperror.CodeExecutionRejected},
		{"over gas limit", &fakeNode{estimate: 1_000_000, gasPrice: big.NewInt(1)}, 500_000, apperror.CodeExecutionRejected},
		{"node unreachable", &fakeNode{estimateErr: errors.New("dial tcp: i/o timeout"), gasPrice: big.NewInt(1)}, 0, apperror.CodeConnectionFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExecutor(t, tt.node, tt.gasLimit)
			_, err := e.Submit(context.Background(), tradeRequest())
			if got := apperror.GetCode(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q (err %v)", got, tt.wantCode, err)
			}
			if len(tt.node.sent) != 0 {
				t.Error("rejected trade was broadcast")
			}
		})
	}
}

func TestExecutor_AwaitConfirmation(t *testing.T) {
	mined := common.Hash{1}
	reverted := common.Hash{2}
	node := &fakeNode{receipts: map[common.Hash]*types.Receipt{
		mined:    {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100), GasUsed: 90_000},
		reverted: {Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(101)},
	}}
	e := newTestExecutor(t, node, 0)

	tests := []struct {
		name      string
		hash      common.Hash
		wantCode  apperror.Code
		wantBlock uint64
	}{
		{"confirmed", mined, "", 100},
		{"reverted", reverted, apperror.CodeExecutionRejected, 101},
		{"never mined", common.Hash{3}, apperror.CodeExecutionTimeout, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := e.AwaitConfirmation(context.Background(), tt.hash, 50*time.Millisecond)
			if got := apperror.GetCode(err); got != tt.wantCode {
				t.Fatalf("code = %q, want %q (err %v)", got, tt.wantCode, err)
			}
			if conf.BlockNumber != tt.wantBlock {
				t.Errorf("block = %d, want %d", conf.BlockNumber, tt.wantBlock)
			}
			if tt.wantCode == "" && !conf.Confirmed {
				t.Error("expected confirmed")
			}
		})
	}
}

func TestExecutor_AwaitConfirmationRPCDown(t *testing.T) {
	refused := errors.New("dial tcp: connection refused")
	node := &fakeNode{receiptErr: refused}
	e := newTestExecutor(t, node, 0)

	// The outcome is unknown when the window closes, whatever the last poll saw.
	_, err := e.AwaitConfirmation(context.Background(), common.Hash{9}, 40*time.Millisecond)
	if got := apperror.GetCode(err); got != apperror.CodeExecutionTimeout {
		t.Fatalf("code = %q, want %q (err %v)", got, apperror.CodeExecutionTimeout, err)
	}
	if !errors.Is(err, refused) {
		t.Errorf("last poll error not kept as cause: %v", err)
	}
}

func TestNewExecutor_Validation(t *testing.T) {
	_, err := NewExecutor(ExecutorConfig{ChainID: 8453, Contract: common.HexToAddress("0x01"), PrivateKey: "nope"}, &fakeNode{}, nil, &mockLogger{})
	if !apperror.IsConfigurationError(err) {
		t.Errorf("bad key: got %v", err)
	}
	_, err = NewExecutor(ExecutorConfig{ChainID: 8453}, &fakeNode{}, nil, &mockLogger{})
	if !apperror.IsConfigurationError(err) {
		t.Errorf("no contract: got %v", err)
	}
}
