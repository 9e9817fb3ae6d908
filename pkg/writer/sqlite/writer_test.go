package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
	"github.com/ChrisMcGann/pepmerge/pkg/similarity"
)

func openResult(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriter_Identifications(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	w, err := NewWriter(path)
	require.NoError(t, err)

	ids := []core.Identification{
		{Key: "PEPTIDE/2", Sequence: "PEPTIDE", Charge: 2, Probability: 0.99, SourceRun: "R1", Protein: "sp|P1"},
		{Key: "PEPTIDEK[15.9949@3]/3", Sequence: "PEPTIDEK", Charge: 3, Probability: 0.95, SourceRun: "R2",
			Modifications: []core.Modification{{Mass: 15.9949, Position: 3, Name: "Oxidation"}}},
		{Key: "bare-key", Probability: 0.5, SourceRun: "R1"},
	}
	for _, id := range ids {
		require.NoError(t, w.WriteIdentification(id))
	}
	w.SetHeader(Header{RunID: "run-1", Runs: []string{"R1", "R2"}, TargetFDR: 0.01, Threshold: 0.5, Reachable: true})
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close(), "second close is a no-op")

	db := openResult(t, path)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM IdentificationTable").Scan(&count))
	assert.Equal(t, 3, count)

	var mods, run string
	var precursor, neutral sql.NullFloat64
	require.NoError(t, db.QueryRow(
		"SELECT Modifications, SourceRun, PrecursorMass, NeutralMass FROM IdentificationTable WHERE PeptideKey = ?",
		"PEPTIDEK[15.9949@3]/3").Scan(&mods, &run, &precursor, &neutral))
	assert.Equal(t, "15.9949@3", mods)
	assert.Equal(t, "R2", run)
	require.True(t, precursor.Valid)
	require.True(t, neutral.Valid)
	assert.Greater(t, neutral.Float64, precursor.Float64)

	mods15 := []core.Modification{{Mass: 15.9949, Position: 3, Name: "Oxidation"}}
	assert.Equal(t, core.RoundFloat(core.CalculateNeutralMass("PEPTIDEK", mods15), massPrecision), neutral.Float64)
	assert.Equal(t, core.RoundFloat(core.CalculatePeptideMass("PEPTIDEK", 3, mods15), massPrecision), precursor.Float64)

	var modMass float64
	require.NoError(t, db.QueryRow(
		"SELECT ModificationMass FROM IdentificationTable WHERE PeptideKey = 'PEPTIDE/2'").Scan(&modMass))
	assert.Equal(t, 0.0, modMass)
	require.NoError(t, db.QueryRow(
		"SELECT ModificationMass FROM IdentificationTable WHERE PeptideKey = ?", "PEPTIDEK[15.9949@3]/3").Scan(&modMass))
	assert.Equal(t, 15.9949, modMass)

	require.NoError(t, db.QueryRow(
		"SELECT PrecursorMass, NeutralMass FROM IdentificationTable WHERE PeptideKey = 'bare-key'").Scan(&precursor, &neutral))
	assert.False(t, precursor.Valid)
	assert.False(t, neutral.Valid)

	var runID, runs string
	var reachable bool
	require.NoError(t, db.QueryRow("SELECT RunId, SourceRuns, ThresholdReachable FROM HeaderTable").Scan(&runID, &runs, &reachable))
	assert.Equal(t, "run-1", runID)
	assert.Equal(t, "R1,R2", runs)
	assert.True(t, reachable)
}

func TestWriter_DuplicateKeyRejected(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "dup.db"))
	require.NoError(t, err)
	defer w.Close()

	id := core.Identification{Key: "K/2", Probability: 0.9}
	require.NoError(t, w.WriteIdentification(id))
	assert.Error(t, w.WriteIdentification(id))
}

func TestWriter_Similarity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.db")
	w, err := NewWriter(path)
	require.NoError(t, err)

	results := []similarity.Result{
		{ClusterA: "a", ClusterB: "b", Score: 0.75, Status: similarity.Scored},
		{ClusterA: "a", ClusterB: "c", Status: similarity.Sparse},
		{ClusterA: "a", ClusterB: "d", Status: similarity.Interrupted,
			Err: &core.ConcurrencyError{ClusterA: "a", ClusterB: "d", Err: context.Canceled}},
	}
	for _, r := range results {
		require.NoError(t, w.WriteSimilarity(r))
	}
	require.NoError(t, w.Finalize())

	db := openResult(t, path)

	var score sql.NullFloat64
	var status string
	require.NoError(t, db.QueryRow("SELECT Score, Status FROM SimilarityTable WHERE ClusterB = 'b'").Scan(&score, &status))
	assert.True(t, score.Valid)
	assert.Equal(t, 0.75, score.Float64)
	assert.Equal(t, "scored", status)

	var errText sql.NullString
	require.NoError(t, db.QueryRow("SELECT Score, Status, Error FROM SimilarityTable WHERE ClusterB = 'd'").Scan(&score, &status, &errText))
	assert.False(t, score.Valid)
	assert.Equal(t, "interrupted", status)
	assert.True(t, errText.Valid)

	var headers int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM HeaderTable").Scan(&headers))
	assert.Zero(t, headers)
}
