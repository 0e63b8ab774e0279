package s3archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
)

type fakePutter struct {
	key  string
	body []byte
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = *in.Key
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &s3.PutObjectOutput{}, nil
}

var started = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func testSnapshot(t *testing.T) *pricingDomain.Snapshot {
	t.Helper()
	venues := []pricingDomain.Venue{{Name: "Uniswap", Kind: pricingDomain.KindUniswapV2}, {Name: "Aerodrome", Kind: pricingDomain.KindSolidly}}
	asm := pricingDomain.NewAssembly(12, []asset.Token{asset.USDC}, venues, started)
	q, err := pricingDomain.NewQuote(asset.USDC, "Uniswap", decimal.RequireFromString("0.995"), started)
	if err != nil {
		t.Fatal(err)
	}
	asm.Add(q)
	asm.Fail(asset.USDC, "Aerodrome", apperror.ConnectionFailure("rpc", errors.New("timeout")))
	asm.SetGasPrice(decimal.RequireFromString("0.01"), nil)
	return asm.Seal(started.Add(time.Second))
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, want string
	}{
		{"snapshots", "snapshots/2026/03/04/cycle-00000012-050607.json"},
		{"", "2026/03/04/cycle-00000012-050607.json"},
	}
	for _, tt := range tests {
		if got := objectKey(tt.prefix, 12, started); got != tt.want {
			t.Errorf("objectKey(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestArchiver_Archive(t *testing.T) {
	put := &fakePutter{}
	a := NewArchiver(put, "bucket", "/snapshots/")

	if err := a.Archive(context.Background(), testSnapshot(t), domain.CycleReport{Detected: 0}); err != nil {
		t.Fatal(err)
	}
	if put.key != "snapshots/2026/03/04/cycle-00000012-050607.json" {
		t.Errorf("key = %q", put.key)
	}

	var doc snapshotDoc
	if err := json.Unmarshal(put.body, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.CycleID != 12 || doc.GasPriceGwei == nil || *doc.GasPriceGwei != "0.01" {
		t.Errorf("doc = %+v", doc)
	}
	if q := doc.Quotes["USDC"]; len(q) != 1 || q[0].Price != "0.995" {
		t.Errorf("quotes = %v", doc.Quotes)
	}
	if len(doc.Failures) != 1 || doc.Failures[0].Code != string(apperror.CodeConnectionFailure) {
		t.Errorf("failures = %v", doc.Failures)
	}
}

func TestArchiver_PutFailure(t *testing.T) {
	a := NewArchiver(&fakePutter{err: errors.New("access denied")}, "bucket", "")
	err := a.Archive(context.Background(), testSnapshot(t), domain.CycleReport{})
	if apperror.GetCode(err) != apperror.CodeStorageFailure {
		t.Fatalf("got %v, want STORAGE_FAILURE", err)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	if got := normaliseEndpoint("minio:9000"); got != "https://minio:9000" {
		t.Errorf("got %q", got)
	}
	if got := normaliseEndpoint("http://localhost:9000"); got != "http://localhost:9000" {
		t.Errorf("got %q", got)
	}
}
