// Package trace records scenario runs and the per-step register outcomes
// they produced.
package trace

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// ResultOK is the Result of a step that completed without a syscall error.
const ResultOK = "ok"

// Run is one execution of a scenario.
type Run struct {
	ID           string     `json:"id"`
	Scenario     string     `json:"scenario"`
	ScenarioHash string     `json:"scenario_hash"`
	Cores        int        `json:"cores"`
	MaxIRQ       uint64     `json:"max_irq"`
	StepCount    int        `json:"step_count"`
	ErrorCount   int        `json:"error_count"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Steps        []Step     `json:"steps,omitempty"`
}

// Step is the observable outcome of one scenario step.
type Step struct {
	Seq    int    `json:"seq"`
	Core   int    `json:"core"`
	Thread string `json:"thread"`
	Op     string `json:"op"`
	CPtr   uint64 `json:"cptr"`
	Label  string `json:"label"`
	// Result is ResultOK, a syscall error kind name, "cap_fault" when the
	// named capability could not be looked up, or "rejected" when the
	// kernel refused a non-invocation syscall before reaching user state.
	Result    string   `json:"result"`
	Fault     string   `json:"fault,omitempty"`
	MsgInfo   uint64   `json:"msginfo"`
	Badge     uint64   `json:"badge"`
	MRs       []uint64 `json:"mrs"`
	State     string   `json:"state"`
	RegDigest string   `json:"reg_digest"`
}

// IsError reports whether the step ended in an error of any kind.
func (s Step) IsError() bool {
	return s.Result != ResultOK
}

// RegisterDigest returns the hex BLAKE3 digest of a register file, words
// encoded little-endian.
func RegisterDigest(regs []uint64) string {
	buf := make([]byte, 8*len(regs))
	for i, r := range regs {
		binary.LittleEndian.PutUint64(buf[8*i:], r)
	}
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordRun persists run and its steps in one transaction. A run without
// an ID is given a fresh one; the ID used is returned.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	completed := time.Now().UTC()
	if run.CompletedAt != nil {
		completed = *run.CompletedAt
	}

	errorCount := 0
	for _, st := range run.Steps {
		if st.IsError() {
			errorCount++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs(id, scenario, scenario_hash, cores, max_irq, step_count, error_count, started_at, completed_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, run.ID, run.Scenario, run.ScenarioHash, run.Cores, int64(run.MaxIRQ), len(run.Steps), errorCount,
		run.StartedAt.UTC().Format(time.RFC3339Nano), completed.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, st := range run.Steps {
		mrs := st.MRs
		if mrs == nil {
			mrs = []uint64{}
		}
		mrsJSON, err := json.Marshal(mrs)
		if err != nil {
			return "", fmt.Errorf("marshal step %d mrs: %w", st.Seq, err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO steps(run_id, seq, core, thread, op, cptr, label, result, fault, msginfo, badge, mrs, state, reg_digest)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, run.ID, st.Seq, st.Core, st.Thread, st.Op, hexWord(st.CPtr), st.Label, st.Result, nullString(st.Fault),
			hexWord(st.MsgInfo), hexWord(st.Badge), string(mrsJSON), st.State, st.RegDigest)
		if err != nil {
			return "", fmt.Errorf("insert step %d: %w", st.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs first, without their steps.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, scenario, scenario_hash, cores, max_irq, step_count, error_count, started_at, completed_at
FROM runs
ORDER BY started_at DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns run id with its steps in order.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, scenario, scenario_hash, cores, max_irq, step_count, error_count, started_at, completed_at
FROM runs
WHERE id = ?;
`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, core, thread, op, cptr, label, result, fault, msginfo, badge, mrs, state, reg_digest
FROM steps
WHERE run_id = ?
ORDER BY seq;
`, id)
	if err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			st                   Step
			cptr, msgInfo, badge string
			fault                sql.NullString
			mrsJSON              string
		)
		if err := rows.Scan(&st.Seq, &st.Core, &st.Thread, &st.Op, &cptr, &st.Label, &st.Result, &fault,
			&msgInfo, &badge, &mrsJSON, &st.State, &st.RegDigest); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Fault = fault.String
		if st.CPtr, err = parseWord(cptr); err != nil {
			return nil, fmt.Errorf("step %d cptr: %w", st.Seq, err)
		}
		if st.MsgInfo, err = parseWord(msgInfo); err != nil {
			return nil, fmt.Errorf("step %d msginfo: %w", st.Seq, err)
		}
		if st.Badge, err = parseWord(badge); err != nil {
			return nil, fmt.Errorf("step %d badge: %w", st.Seq, err)
		}
		if err := json.Unmarshal([]byte(mrsJSON), &st.MRs); err != nil {
			return nil, fmt.Errorf("step %d mrs: %w", st.Seq, err)
		}
		run.Steps = append(run.Steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (*Run, error) {
	var (
		run       Run
		maxIRQ    int64
		started   string
		completed sql.NullString
	)
	if err := r.Scan(&run.ID, &run.Scenario, &run.ScenarioHash, &run.Cores, &maxIRQ,
		&run.StepCount, &run.ErrorCount, &started, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.MaxIRQ = uint64(maxIRQ)

	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return nil, fmt.Errorf("run %s started_at: %w", run.ID, err)
	}
	run.StartedAt = t
	if completed.Valid {
		t, err := time.Parse(time.RFC3339Nano, completed.String)
		if err != nil {
			return nil, fmt.Errorf("run %s completed_at: %w", run.ID, err)
		}
		run.CompletedAt = &t
	}
	return &run, nil
}

func hexWord(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

func parseWord(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
