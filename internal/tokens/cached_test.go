package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// mapCache is a deterministic Cache stand-in; Ristretto's admission policy is
// probabilistic, which makes it unsuitable for asserting hit behavior.
type mapCache struct {
	entries map[string]interface{}
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]interface{})}
}

func (m *mapCache) Get(key string) (interface{}, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *mapCache) Set(key string, value interface{}, _ time.Duration) bool {
	m.entries[key] = value
	return true
}

func (m *mapCache) Delete(key string) { delete(m.entries, key) }
func (m *mapCache) Close()            {}

func TestCachedFetch_ReadsThroughOnce(t *testing.T) {
	reader := &fakeReader{
		symbols:  map[common.Address]string{testToken: "CAKE"},
		decimals: map[common.Address]uint8{testToken: 18},
	}

	client := NewCachedMetadataClient(NewMetadataClient(reader), newMapCache())

	first := client.Fetch(context.Background(), testToken)
	if first.Symbol != "CAKE" {
		t.Fatalf("symbol: got %q", first.Symbol)
	}

	callsAfterFirst := reader.calls

	second := client.Fetch(context.Background(), testToken)
	if second.Symbol != "CAKE" {
		t.Fatalf("cached symbol: got %q", second.Symbol)
	}

	if reader.calls != callsAfterFirst {
		t.Errorf("second fetch hit the chain: %d calls, want %d", reader.calls, callsAfterFirst)
	}
}

func TestCachedFetch_DistinctTokens(t *testing.T) {
	other := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	reader := &fakeReader{
		symbols:  map[common.Address]string{testToken: "CAKE", other: "WBNB"},
		decimals: map[common.Address]uint8{testToken: 18, other: 18},
	}

	client := NewCachedMetadataClient(NewMetadataClient(reader), newMapCache())

	if got := client.Fetch(context.Background(), testToken).Symbol; got != "CAKE" {
		t.Errorf("first token: got %q", got)
	}
	if got := client.Fetch(context.Background(), other).Symbol; got != "WBNB" {
		t.Errorf("second token: got %q", got)
	}
}
