package db

import (
	"context"
	"fmt"
	"time"
)

// RetentionPolicy defines how many tool outputs to keep per project.
type RetentionPolicy struct {
	KeepLast int
	KeepDays int
}

// PruneResult summarizes a prune operation.
type PruneResult struct {
	Considered int
	Kept       int
	Deleted    int
}

// PruneToolOutputs deletes tool outputs outside the retention policy. An
// output is kept when it is among the newest KeepLast of its project or
// younger than KeepDays. A zero policy keeps everything. Deletes are applied
// in one transaction: on error nothing is removed.
func (s *Store) PruneToolOutputs(ctx context.Context, policy RetentionPolicy, dryRun bool) (PruneResult, error) {
	if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
		return PruneResult{}, nil
	}
	cutoff := time.Time{}
	if policy.KeepDays > 0 {
		cutoff = time.Now().UTC().Add(-time.Duration(policy.KeepDays) * 24 * time.Hour)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, created_at FROM tool_outputs ORDER BY project_id, created_at DESC, rowid DESC`)
	if err != nil {
		return PruneResult{}, fmt.Errorf("list tool outputs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type outputRow struct {
		id        string
		projectID string
		createdAt time.Time
		parseErr  error
	}
	var outputs []outputRow
	for rows.Next() {
		var id, projectID, createdAt string
		if err := rows.Scan(&id, &projectID, &createdAt); err != nil {
			return PruneResult{}, fmt.Errorf("scan tool output: %w", err)
		}
		parsed, parseErr := time.Parse(time.RFC3339, createdAt)
		outputs = append(outputs, outputRow{id: id, projectID: projectID, createdAt: parsed, parseErr: parseErr})
	}
	if err := rows.Err(); err != nil {
		return PruneResult{}, fmt.Errorf("iterate tool outputs: %w", err)
	}
	_ = rows.Close()

	res := PruneResult{Considered: len(outputs)}
	rank := map[string]int{}
	var doomed []string
	for _, row := range outputs {
		idx := rank[row.projectID]
		rank[row.projectID]++

		keep := false
		if policy.KeepLast > 0 && idx < policy.KeepLast {
			keep = true
		}
		if !keep && policy.KeepDays > 0 {
			if row.parseErr != nil || row.createdAt.After(cutoff) {
				keep = true
			}
		}
		if keep {
			res.Kept++
			continue
		}
		res.Deleted++
		doomed = append(doomed, row.id)
	}
	if dryRun || len(doomed) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PruneResult{}, fmt.Errorf("begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range doomed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tool_outputs WHERE id=?`, id); err != nil {
			return PruneResult{}, fmt.Errorf("delete tool output %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return PruneResult{}, fmt.Errorf("commit prune: %w", err)
	}
	return res, nil
}
