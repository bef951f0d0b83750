package scale

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// feed splits input on newlines and parses every line, collecting errors.
func feed(p *Parser, input string) []error {
	var errs []error
	for _, line := range strings.Split(input, "\n") {
		if err := p.ParseLine(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func TestParser_ValidBlock(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	require.Empty(t, feed(p, "/\nA: 500kg\nB: 300kg\nTOTAL: 800kg\n\\\n"))
	require.Equal(t, BlockDone, p.State())

	latest := store.Latest()
	require.Equal(t, []string{"A", "B", "TOTAL"}, latest.Channels())
	for name, want := range map[string]int32{"A": 500, "B": 300, "TOTAL": 800} {
		m, ok := latest.Mass(name)
		require.True(t, ok)
		require.Equal(t, Kilograms(want), m)
	}
	require.True(t, latest.IsValid())
}

func TestParser_MismatchedTotal(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	require.Empty(t, feed(p, "/\nA: 500kg\nB: 300kg\nTOTAL: 750kg\n\\\n"))
	require.Equal(t, uint64(1), store.Snapshot().Count)
	require.False(t, store.Latest().IsValid())
}

func TestParser_EndInIdle(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	err := p.ParseLine(`\`)
	require.ErrorIs(t, err, ErrEndWithoutTotal)
	require.Equal(t, BlockDone, p.State())
	require.Zero(t, store.Snapshot().Count)
	require.Zero(t, store.Latest().Len())
	require.Equal(t, uint64(1), p.Violations())
}

func TestParser_EndWithoutTotalKeepsPrevious(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	require.Empty(t, feed(p, "/\nA: 1kg\nTOTAL: 1kg\n\\"))
	errs := feed(p, "/\nA: 2kg\n\\")
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrEndWithoutTotal)

	m, _ := store.Latest().Mass("A")
	require.Equal(t, Kilograms(1), m)
	require.Equal(t, uint64(1), store.Snapshot().Count)
}

func TestParser_NestedStartResets(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	errs := feed(p, "/\nOLD: 100kg\n/\nA: 5kg\nTOTAL: 5kg\n\\")
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrNestedBlockStart)

	latest := store.Latest()
	require.Equal(t, []string{"A", "TOTAL"}, latest.Channels())
	require.True(t, latest.IsValid())
}

func TestParser_NestedStartAfterTotal(t *testing.T) {
	p := NewParser(NewStore())
	require.Empty(t, feed(p, "/\nTOTAL: 0kg"))
	require.Equal(t, TotalSeen, p.State())

	require.ErrorIs(t, p.ParseLine("/"), ErrNestedBlockStart)
	require.Equal(t, InBlock, p.State())
}

func TestParser_MalformedMass(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	require.Empty(t, feed(p, "/\nA: 12.5kg\nB: kg\nTOTAL: 0kg\n\\"))
	latest := store.Latest()
	a, _ := latest.Mass("A")
	b, _ := latest.Mass("B")
	require.Equal(t, InvalidMass(), a)
	require.Equal(t, InvalidMass(), b)
	require.False(t, latest.IsValid())
}

func TestParser_TrimsAndSplitsOnFirstColon(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	require.Empty(t, feed(p, "  /  \n\t SCALE:1 :  40kg \r\n   \nTOTAL:40KG\n \\ "))
	latest := store.Latest()
	require.Equal(t, []string{"SCALE", "TOTAL"}, latest.Channels())
	m, _ := latest.Mass("SCALE")
	require.Equal(t, InvalidMass(), m, "value field is \"1 :  40kg\"")
}

func TestParser_IgnoresNoise(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	// channel lines outside a block and unknown shapes are ignored
	require.Empty(t, feed(p, "A: 1kg\nhello\n: 3kg\n"))
	require.Equal(t, Idle, p.State())

	require.Empty(t, feed(p, "/\nnoise\n: 3kg\nA: 1kg\nTOTAL: 1kg\nmore noise\n\\\nB: 9kg"))
	require.Equal(t, BlockDone, p.State())
	require.Equal(t, []string{"A", "TOTAL"}, store.Latest().Channels())
}

func TestParser_ChannelAfterTotal(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	require.Empty(t, feed(p, "/\nTOTAL: 3kg\nA: 3kg\n\\"))
	require.Equal(t, []string{"TOTAL", "A"}, store.Latest().Channels())
	require.True(t, store.Latest().IsValid())
}

func TestParser_LowercaseTotalDoesNotFinish(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	errs := feed(p, "/\nA: 3kg\ntotal: 3kg\n\\")
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrEndWithoutTotal)
	require.Zero(t, store.Snapshot().Count)
}

func TestParser_ReservedChannelIsSkipped(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	errs := feed(p, "/\nVALID: 5kg\nTOTAL: 5kg\n\\")
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrReservedChannel)
	require.Equal(t, uint64(1), p.Violations())
	require.Equal(t, BlockDone, p.State())
	require.Equal(t, `{"TOTAL":5,"VALID":true}`, store.Latest().Serialize())
}

func TestParser_ConsecutiveBlocks(t *testing.T) {
	store := NewStore()
	p := NewParser(store)

	require.Empty(t, feed(p, "/\nA: 1kg\nTOTAL: 1kg\n\\\n/\nB: 2kg\nTOTAL: 2kg\n\\"))
	require.Equal(t, uint64(2), store.Snapshot().Count)
	require.Equal(t, []string{"B", "TOTAL"}, store.Latest().Channels())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "idle", Idle.String())
	require.Equal(t, "in-block", InBlock.String())
	require.Equal(t, "total-seen", TotalSeen.String())
	require.Equal(t, "block-done", BlockDone.String())
	require.Equal(t, "State(9)", State(9).String())
}
