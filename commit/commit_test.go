package commit_test

import (
	"testing"

	"github.com/pflow-xyz/go-presale/commit"
	"github.com/pflow-xyz/go-presale/journal"
	"github.com/pflow-xyz/go-presale/presale"
)

const t0 = int64(1_700_000_000)

func testEntries(t *testing.T) []*journal.Entry {
	t.Helper()

	specs := []struct {
		cmdType string
		caller  string
		now     int64
		payload any
	}{
		{presale.CmdInitialize, "auth", t0, presale.InitializePayload{
			ProjectTokenID: "HYPE",
			SoftCapUSD:     5_000_000_000,
			HardCapUSD:     100_000_000_000_000,
		}},
		{presale.CmdSetWhitelist, "auth", t0 + 1, presale.FlagPayload{Buyer: "buyer-1", Status: true}},
		{presale.CmdBuy, "buyer-1", t0 + 60, presale.BuyPayload{Method: presale.MethodUsdc, Amount: 1_500_000_000}},
		{presale.CmdFinalize, "auth", t0 + 100, nil},
	}

	entries := make([]*journal.Entry, len(specs))
	for i, s := range specs {
		cmd, err := presale.NewCommand(s.cmdType, s.caller, s.now, s.payload)
		if err != nil {
			t.Fatalf("build %s: %v", s.cmdType, err)
		}
		entries[i] = journal.NewEntry(cmd)
		entries[i].Seq = i
	}
	return entries
}

func TestChainDeterministic(t *testing.T) {
	entries := testEntries(t)

	r1, err := commit.Chain(entries)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := commit.Chain(entries)
	if err != nil {
		t.Fatal(err)
	}

	if r1 != r2 {
		t.Errorf("same entries gave different roots: %s vs %s", r1.Hex(), r2.Hex())
	}
	if r1.IsZero() {
		t.Error("non-empty chain has zero root")
	}
	if len(r1.Hex()) != 64 {
		t.Errorf("hex root length = %d", len(r1.Hex()))
	}
}

func TestChainEmptyIsZero(t *testing.T) {
	root, err := commit.Chain(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !root.IsZero() {
		t.Errorf("empty chain root = %s, want zero", root.Hex())
	}
}

func TestChainSensitiveToContent(t *testing.T) {
	entries := testEntries(t)
	base, err := commit.Chain(entries)
	if err != nil {
		t.Fatal(err)
	}

	// Perturb one command's clock.
	perturbed := testEntries(t)
	perturbed[2].Command.Now++
	root, err := commit.Chain(perturbed)
	if err != nil {
		t.Fatal(err)
	}
	if root == base {
		t.Error("clock perturbation did not change the root")
	}

	// Perturb the payload.
	perturbed = testEntries(t)
	perturbed[2].Command.Payload = []byte(`{"paymentMethod":2,"amount":1500000001}`)
	root, err = commit.Chain(perturbed)
	if err != nil {
		t.Fatal(err)
	}
	if root == base {
		t.Error("payload perturbation did not change the root")
	}
}

func TestChainSensitiveToOrder(t *testing.T) {
	entries := testEntries(t)
	base, err := commit.Chain(entries)
	if err != nil {
		t.Fatal(err)
	}

	swapped := testEntries(t)
	swapped[1].Command, swapped[2].Command = swapped[2].Command, swapped[1].Command
	root, err := commit.Chain(swapped)
	if err != nil {
		t.Fatal(err)
	}
	if root == base {
		t.Error("reordering entries did not change the root")
	}
}

func TestChainIgnoresRecordedAt(t *testing.T) {
	a := testEntries(t)
	b := testEntries(t)
	for i := range b {
		b[i].RecordedAt = b[i].RecordedAt.Add(1_000_000)
		b[i].ID = "different-id"
	}

	ra, err := commit.Chain(a)
	if err != nil {
		t.Fatal(err)
	}
	rb, err := commit.Chain(b)
	if err != nil {
		t.Fatal(err)
	}
	if ra != rb {
		t.Error("commitment depends on persistence metadata")
	}
}

func TestChainerIncrementalMatchesBatch(t *testing.T) {
	entries := testEntries(t)

	batch, err := commit.Chain(entries)
	if err != nil {
		t.Fatal(err)
	}

	c := commit.NewChainer()
	for _, entry := range entries {
		if err := c.Add(entry); err != nil {
			t.Fatal(err)
		}
	}
	if c.Root() != batch {
		t.Errorf("incremental root %s != batch root %s", c.Root().Hex(), batch.Hex())
	}
	if c.Len() != len(entries) {
		t.Errorf("Len = %d, want %d", c.Len(), len(entries))
	}
}
