// Package sqlite writes curated identifications and similarity results to a
// SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/pepmerge/pkg/core"
	"github.com/ChrisMcGann/pepmerge/pkg/similarity"
)

// Date format for HeaderTable (ISO 8601)
const headerDateFormat = "2006-01-02T15:04:05Z07:00"

// Decimal places stored for computed masses
const massPrecision = 6

// Header describes the pass that produced the database.
type Header struct {
	RunID       string
	Description string
	Runs        []string
	TargetFDR   float64
	Threshold   float64
	Reachable   bool
}

// Writer handles writing results to SQLite database files
type Writer struct {
	db             *sql.DB
	outputPath     string
	identStmt      *sql.Stmt
	similarityStmt *sql.Stmt
	identID        int
	similarityID   int
	header         *Header
	finalized      bool
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:           db,
		outputPath:   outputPath,
		identID:      1,
		similarityID: 1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS IdentificationTable (
		IdentificationId INTEGER PRIMARY KEY,
		PeptideKey TEXT NOT NULL UNIQUE,
		Sequence TEXT,
		Charge INTEGER,
		Modifications TEXT,
		ModificationMass DOUBLE,
		Protein TEXT,
		Probability DOUBLE NOT NULL,
		SourceRun TEXT,
		PrecursorMass DOUBLE,
		NeutralMass DOUBLE
	);

	CREATE TABLE IF NOT EXISTS SimilarityTable (
		SimilarityId INTEGER PRIMARY KEY,
		ClusterA TEXT NOT NULL,
		ClusterB TEXT NOT NULL,
		Score DOUBLE,
		Status TEXT NOT NULL,
		Error TEXT
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		RunId TEXT NOT NULL,
		CreationDate TEXT,
		Description TEXT,
		SourceRuns TEXT,
		TargetFDR DOUBLE,
		ProbabilityThreshold DOUBLE,
		ThresholdReachable BOOL
	);
	`

	if _, err := w.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.identStmt, err = w.db.Prepare(`
		INSERT INTO IdentificationTable (
			IdentificationId, PeptideKey, Sequence, Charge, Modifications, ModificationMass,
			Protein, Probability, SourceRun, PrecursorMass, NeutralMass
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare identification statement: %w", err)
	}

	w.similarityStmt, err = w.db.Prepare(`
		INSERT INTO SimilarityTable (SimilarityId, ClusterA, ClusterB, Score, Status, Error)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare similarity statement: %w", err)
	}

	return nil
}

// WriteIdentification writes a single curated identification
func (w *Writer) WriteIdentification(id core.Identification) error {
	var precursor, neutral interface{}
	if id.Sequence != "" {
		neutral = core.RoundFloat(core.CalculateNeutralMass(id.Sequence, id.Modifications), massPrecision)
		if id.Charge > 0 {
			precursor = core.RoundFloat(core.CalculatePeptideMass(id.Sequence, id.Charge, id.Modifications), massPrecision)
		}
	}

	_, err := w.identStmt.Exec(
		w.identID,
		id.Key,
		id.Sequence,
		id.Charge,
		core.ModString(id.Modifications),
		core.RoundFloat(id.TotalModMass(), massPrecision),
		id.Protein,
		id.Probability,
		id.SourceRun,
		precursor,
		neutral,
	)
	if err != nil {
		return fmt.Errorf("failed to insert identification %s: %w", id.Key, err)
	}

	w.identID++
	return nil
}

// WriteSimilarity writes a single pair result. Unscored pairs are stored with
// a NULL score.
func (w *Writer) WriteSimilarity(r similarity.Result) error {
	var score interface{}
	if !r.Unscored() {
		score = r.Score
	}
	var errText interface{}
	if r.Err != nil {
		errText = r.Err.Error()
	}

	if _, err := w.similarityStmt.Exec(w.similarityID, r.ClusterA, r.ClusterB, score, r.Status.String(), errText); err != nil {
		return fmt.Errorf("failed to insert similarity %s/%s: %w", r.ClusterA, r.ClusterB, err)
	}

	w.similarityID++
	return nil
}

// SetHeader records the header written on Finalize.
func (w *Writer) SetHeader(h Header) {
	w.header = &h
}

// Finalize writes the header table and closes the database
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	if w.header != nil {
		h := w.header
		_, err := w.db.Exec(`
			INSERT INTO HeaderTable (RunId, CreationDate, Description, SourceRuns, TargetFDR, ProbabilityThreshold, ThresholdReachable)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, h.RunID, time.Now().UTC().Format(headerDateFormat), h.Description, strings.Join(h.Runs, ","), h.TargetFDR, h.Threshold, h.Reachable)
		if err != nil {
			w.closeAll()
			return fmt.Errorf("failed to insert header: %w", err)
		}
	}

	return w.closeAll()
}

func (w *Writer) closeAll() error {
	if w.identStmt != nil {
		w.identStmt.Close()
	}
	if w.similarityStmt != nil {
		w.similarityStmt.Close()
	}
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
