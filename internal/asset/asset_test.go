package asset_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/internal/asset"
)

func TestToken_ToDecimal(t *testing.T) {
	raw := big.NewInt(1_500_000)
	if got := asset.USDC.ToDecimal(raw); !got.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("ToDecimal = %s, want 1.5", got)
	}
	if got := asset.USDC.ToDecimal(nil); !got.IsZero() {
		t.Errorf("ToDecimal(nil) = %s", got)
	}
}

func TestToken_ToRaw(t *testing.T) {
	tests := []struct {
		name    string
		token   asset.Token
		amount  string
		want    string
		wantErr error
	}{
		{"usdc whole", asset.USDC, "1000", "1000000000", nil},
		{"weth fraction", asset.WETH, "0.25", "250000000000000000", nil},
		{"usdc too precise", asset.USDC, "0.0000001", "", asset.ErrTooManyDecimals},
		{"negative", asset.DAI, "-1", "", asset.ErrNegativeAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.token.ToRaw(decimal.RequireFromString(tt.amount))
			if err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got.String() != tt.want {
				t.Errorf("raw = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToken_FloorRaw(t *testing.T) {
	got, err := asset.USDC.FloorRaw(decimal.RequireFromString("0.9999999"))
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "999999" {
		t.Errorf("FloorRaw = %s, want 999999", got)
	}
}

func TestRatio(t *testing.T) {
	// 1005 DAI against 1000 USDC gives 1.005 DAI per USDC.
	dai, _ := new(big.Int).SetString("1005000000000000000000", 10)
	usdc := big.NewInt(1_000_000_000)

	got, err := asset.Ratio(asset.DAI, dai, asset.USDC, usdc, 6)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(decimal.RequireFromString("1.005")) {
		t.Errorf("Ratio = %s, want 1.005", got)
	}

	// 2/3 truncates to 0.666666.
	got, _ = asset.Ratio(asset.USDC, big.NewInt(2), asset.USDC, big.NewInt(3), 6)
	if got.String() != "0.666666" {
		t.Errorf("Ratio = %s, want 0.666666", got)
	}

	if _, err := asset.Ratio(asset.USDC, big.NewInt(0), asset.USDC, big.NewInt(3), 6); err == nil {
		t.Error("zero numerator should fail")
	}
}

func TestRegistry(t *testing.T) {
	r := asset.NewRegistry(asset.ChainIDBase)
	if err := r.Register(asset.WETH); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(asset.USDC); err != nil {
		t.Fatal(err)
	}

	if err := r.Register(asset.USDC); err == nil {
		t.Error("duplicate register should fail")
	}
	other := asset.MustNewToken(asset.ChainIDEthereum, common.HexToAddress("0x01"), "X", 18)
	if err := r.Register(other); err == nil {
		t.Error("foreign chain should fail")
	}

	all := r.All()
	if len(all) != 2 || all[0].Symbol() != "WETH" || all[1].Symbol() != "USDC" {
		t.Errorf("All = %v", all)
	}
	if got, ok := r.BySymbol("usdc"); !ok || !got.Equals(asset.USDC) {
		t.Errorf("BySymbol(usdc) = %v,%v", got, ok)
	}
	if _, ok := r.Get(asset.AddrDAIBase); ok {
		t.Error("DAI should not be registered")
	}
	if !r.Has(asset.WETH) || r.Count() != 2 {
		t.Error("Has/Count mismatch")
	}
}
