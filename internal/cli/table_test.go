package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/discuss/internal/models"
)

func TestWriteTableAlignsColumns(t *testing.T) {
	var out bytes.Buffer
	err := writeTable(&out, []string{"ID", "NAME"}, [][]string{
		{"7", "general"},
		{"12", "ventes été"},
	})
	require.NoError(t, err)
	require.Equal(t, "ID  NAME\n7   general\n12  ventes été\n", out.String())
}

func TestWriteTableIgnoresANSIWidth(t *testing.T) {
	var out bytes.Buffer
	err := writeTable(&out, []string{"A", "B"}, [][]string{
		{"\x1b[1mbold\x1b[0m", "x"},
		{"plain", "y"},
	})
	require.NoError(t, err)
	require.Equal(t, "A      B\nbold   x\nplain  y\n", stripANSI(out.String()))
}

func TestWriteTableEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeTable(&out, nil, nil))
	require.Empty(t, out.String())
}

func TestStripANSI(t *testing.T) {
	require.Equal(t, "hello", stripANSI("\x1b[38;2;245;166;35mhello\x1b[0m"))
	require.Equal(t, "plain", stripANSI("plain"))
}

func TestChannelRows(t *testing.T) {
	rows := channelRows([]*models.Channel{
		{ID: "7", Name: "general", Type: models.ChannelTypePublic, UnreadCounter: 3},
		{ID: "9", Name: "Bob", Type: models.ChannelTypeDM, NeedactionCounter: 1},
	})
	require.Len(t, rows, 2)
	require.Equal(t, []string{"7", "general", "public", "3", "-"}, stripRow(rows[0]))
	require.Equal(t, []string{"9", "Bob", "dm", "-", "1"}, stripRow(rows[1]))
}

func stripRow(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = stripANSI(cell)
	}
	return out
}
