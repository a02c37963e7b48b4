package exchangecsv

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/ledgerkit/internal/adapter"
)

func writeCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func drainStream(t *testing.T, ch <-chan adapter.StreamResult) []adapter.StreamResult {
	t.Helper()
	var out []adapter.StreamResult
	for res := range ch {
		out = append(out, res)
	}
	return out
}

func TestExecuteStreaming_HeaderOnlyFileYieldsZeroRowsNotAnError(t *testing.T) {
	path := writeCSV(t, "venue_tx_id,timestamp,type,base_asset,base_amount\n")
	a := New(Config{DisplayName: "test", FilePath: path, VenueName: "test"})

	ch, err := a.ExecuteStreaming(context.Background(), adapter.Operation{})
	require.NoError(t, err)
	results := drainStream(t, ch)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Empty(t, results[0].Chunk.Rows)
	assert.True(t, results[0].Chunk.IsComplete)
}

func TestExecuteStreaming_EmptyFileYieldsZeroRowsNotAnError(t *testing.T) {
	path := writeCSV(t, "")
	a := New(Config{DisplayName: "test", FilePath: path, VenueName: "test"})

	ch, err := a.ExecuteStreaming(context.Background(), adapter.Operation{})
	require.NoError(t, err)
	results := drainStream(t, ch)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Empty(t, results[0].Chunk.Rows)
}

func TestExecuteStreaming_MalformedRowIsSkippedNotFatal(t *testing.T) {
	// the second data line has the wrong column count, which
	// encoding/csv rejects with ErrFieldCount without losing its place in
	// the file; it must be skipped while the well-formed rows around it
	// still come through.
	contents := "venue_tx_id,timestamp,type,base_asset,base_amount\n" +
		"tx-1,2026-01-01T00:00:00Z,deposit,BTC,1\n" +
		"tx-2,2026-01-01T00:00:00Z,deposit,BTC\n" +
		"tx-3,2026-01-01T00:00:00Z,deposit,BTC,2\n"
	path := writeCSV(t, contents)
	a := New(Config{DisplayName: "test", FilePath: path, VenueName: "binance"})

	ch, err := a.ExecuteStreaming(context.Background(), adapter.Operation{})
	require.NoError(t, err)
	results := drainStream(t, ch)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Len(t, results[0].Chunk.Rows, 2, "the malformed middle row must be dropped, not abort the whole file")
}

func TestExecuteStreaming_QuotedFieldWithEmbeddedQuoteRoundTripsAsValidJSON(t *testing.T) {
	// a remark column containing a literal double quote, properly CSV-escaped
	// by doubling it, must still produce a payload encoding/json can parse.
	contents := "venue_tx_id,timestamp,type,base_asset,base_amount,remark\n" +
		`tx-1,2026-01-01T00:00:00Z,deposit,BTC,1,"say ""hi"""` + "\n"
	path := writeCSV(t, contents)
	a := New(Config{DisplayName: "test", FilePath: path, VenueName: "binance"})

	ch, err := a.ExecuteStreaming(context.Background(), adapter.Operation{})
	require.NoError(t, err)
	results := drainStream(t, ch)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Chunk.Rows, 1)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(results[0].Chunk.Rows[0].Payload, &decoded))
	assert.Equal(t, `say "hi"`, decoded["remark"])
}

func TestExecuteStreaming_MissingFileIsAnError(t *testing.T) {
	a := New(Config{DisplayName: "test", FilePath: "/nonexistent/path.csv", VenueName: "test"})

	ch, err := a.ExecuteStreaming(context.Background(), adapter.Operation{})
	require.NoError(t, err, "the error surfaces on the stream, not from ExecuteStreaming's own return")
	results := drainStream(t, ch)

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}
