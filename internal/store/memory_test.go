package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomIDShapes(t *testing.T) {
	s := New()

	assert.Regexp(t, `^PROD-[0-9A-F]{17}$`, s.Products.NextID())
	assert.Regexp(t, `^P-[0-9A-F]{24}$`, s.Plans.NextID())
	assert.Regexp(t, `^I-[0-9A-F]{17}$`, s.Subscriptions.NextID())
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewWithIDs(SequentialIDs())
	s.Products.Set("PROD-000001", Product{ID: "PROD-000001", Name: "Video streaming", Type: ProductTypeService})
	s.Plans.Set("P-000001", Plan{
		ID:        "P-000001",
		Name:      "Basic",
		Status:    PlanStatusActive,
		UsageType: UsageTypeLicensed,
		PaymentPreferences: PaymentPreferences{
			SetupFee: &Money{CurrencyCode: "USD", Value: "10"},
		},
	})

	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)

	other := NewWithIDs(SequentialIDs())
	require.NoError(t, other.LoadState(data))

	p, ok := other.Products.Get("PROD-000001")
	require.True(t, ok)
	assert.Equal(t, "Video streaming", p.Name)

	plan, ok := other.Plans.Get("P-000001")
	require.True(t, ok)
	assert.Equal(t, "USD", plan.PaymentPreferences.SetupFeeCurrency())
}

func TestLoadStateAlignsIDsWithKeys(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadState([]byte(`{"products":{"PROD-ABC":{"name":"keyed"}}}`)))

	p, ok := s.Products.Get("PROD-ABC")
	require.True(t, ok)
	assert.Equal(t, "PROD-ABC", p.ID)
}

func TestLoadStateInvalid(t *testing.T) {
	s := New()
	assert.Error(t, s.LoadState([]byte("{bad")))
}

func TestLoadSeedFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	seed := `
products:
  PROD-SEED1:
    name: Seeded product
    type: DIGITAL
plans:
  P-SEED1:
    name: Seeded plan
    status: ACTIVE
    payment_preferences:
      auto_bill_outstanding: true
      setup_fee:
        currency_code: EUR
        value: "5.00"
subscriptions:
  I-SEED1:
    plan_id: P-SEED1
    quantity: 3
    status: ACTIVE
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	s := New()
	require.NoError(t, s.LoadSeedFile(path))

	p, ok := s.Products.Get("PROD-SEED1")
	require.True(t, ok)
	assert.Equal(t, ProductTypeDigital, p.Type)

	plan, ok := s.Plans.Get("P-SEED1")
	require.True(t, ok)
	assert.True(t, plan.PaymentPreferences.AutoBillOutstanding)
	assert.Equal(t, "EUR", plan.PaymentPreferences.SetupFeeCurrency())

	sub, ok := s.Subscriptions.Get("I-SEED1")
	require.True(t, ok)
	assert.Equal(t, Quantity("3"), sub.Quantity)
	assert.Equal(t, 3, sub.Quantity.Int())
}

func TestLoadSeedFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"plans":{"P-1":{"name":"json plan"}}}`), 0o644))

	s := New()
	require.NoError(t, s.LoadSeedFile(path))
	assert.Equal(t, 1, s.Plans.Count())
}

func TestLoadSeedFileMissing(t *testing.T) {
	s := New()
	err := s.LoadSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read seed file")
}

func TestReset(t *testing.T) {
	s := NewWithIDs(SequentialIDs())
	s.Products.Set(s.Products.NextID(), Product{Name: "a"})
	s.Subscriptions.Set(s.Subscriptions.NextID(), Subscription{PlanID: "P-1"})

	s.Reset()

	assert.Zero(t, s.Products.Count())
	assert.Zero(t, s.Subscriptions.Count())
	assert.Equal(t, "PROD-000001", s.Products.NextID())
}

func TestSequentialIDsSkipSeededRecords(t *testing.T) {
	s := NewWithIDs(SequentialIDs())
	require.NoError(t, s.LoadState([]byte(`{
		"products": {"PROD-000001": {"name": "Seeded"}},
		"subscriptions": {"I-000001": {"plan_id": "P-1"}, "I-000002": {"plan_id": "P-1"}}
	}`)))

	id := s.Products.NextID()
	assert.Equal(t, "PROD-000002", id)
	s.Products.Set(id, Product{ID: id, Name: "New"})

	assert.Equal(t, 2, s.Products.Count())
	seeded, ok := s.Products.Get("PROD-000001")
	require.True(t, ok)
	assert.Equal(t, "Seeded", seeded.Name)
	assert.Equal(t, "I-000003", s.Subscriptions.NextID())
}

func TestQuantityUnmarshal(t *testing.T) {
	cases := map[string]Quantity{
		`"2"`: "2",
		`5`:   "5",
	}
	for in, want := range cases {
		var q Quantity
		require.NoError(t, json.Unmarshal([]byte(in), &q), in)
		assert.Equal(t, want, q)
	}

	var q Quantity
	assert.Error(t, json.Unmarshal([]byte(`true`), &q))
}
