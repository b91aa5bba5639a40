package archive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/adaptation-sim/internal/engine"
	"github.com/talgya/adaptation-sim/internal/params"
)

func TestArchiveRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	w, err := Create(dir, "run-1")
	require.NoError(t, err)

	o := engine.NewOrchestrator(params.Defaults(), params.DefaultScenarios())
	res, err := o.Run(context.Background(), engine.Request{Mode: engine.ModeEnsemble, NumSimulations: 2, Seed: 5}, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")
	assert.Equal(t, len(res.Records), w.Count())

	got, err := ReadRecords(Path(dir, "run-1"))
	require.NoError(t, err)
	assert.Equal(t, res.Records, got)

	assert.Error(t, w.Record(engine.Record{}), "writes after close fail")
}

func TestReadMissingArchive(t *testing.T) {
	_, err := ReadRecords(filepath.Join(t.TempDir(), "nope.jsonl.zst"))
	require.Error(t, err)
}
