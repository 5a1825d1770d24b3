package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// openDuckDB creates an in-memory DuckDB with a decisions view over every
// finished parquet batch under roots. Batches still being written end in
// .parquet.tmp and never match the glob.
func openDuckDB(roots []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	// Basic pragmas; ignore errors for compatibility across versions.
	_, _ = db.Exec("PRAGMA threads=4")

	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" || !hasParquet(root) {
			continue
		}
		glob := filepath.Join(root, "**", "*.parquet")
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}

	sqlText := `CREATE OR REPLACE VIEW decisions AS
		SELECT * FROM (
			SELECT
				NULL::VARCHAR AS game_id,
				NULL::INTEGER AS turn,
				NULL::VARCHAR AS source,
				NULL::VARCHAR AS snake_id,
				NULL::VARCHAR AS move,
				NULL::VARCHAR AS fallback,
				NULL::DOUBLE AS score,
				NULL::INTEGER AS depth,
				NULL::BIGINT AS nodes,
				NULL::BIGINT AS elapsed_us,
				NULL::VARCHAR AS actual,
				NULL::VARCHAR AS filename
		) WHERE 1=0`
	if len(globs) > 0 {
		sqlText = `CREATE OR REPLACE VIEW decisions AS
			SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)`
	}
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

var errFound = errors.New("found")

// hasParquet reports whether root holds a finished batch; read_parquet fails
// on a glob that matches nothing.
func hasParquet(root string) bool {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && filepath.Ext(path) == ".parquet" {
			return errFound
		}
		return nil
	})
	return errors.Is(err, errFound)
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func buildReport(ctx context.Context, db *sql.DB) (Report, error) {
	var (
		rep Report
		err error
	)
	if rep.Sources, err = querySources(ctx, db); err != nil {
		return Report{}, err
	}
	if rep.Snakes, err = querySnakeAgreement(ctx, db); err != nil {
		return Report{}, err
	}
	if rep.Depths, err = queryDepths(ctx, db); err != nil {
		return Report{}, err
	}
	return rep, nil
}

func querySources(ctx context.Context, db *sql.DB) ([]SourceSummary, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			source,
			COUNT(DISTINCT game_id)::BIGINT,
			COUNT(*)::BIGINT,
			COUNT(*) FILTER (WHERE fallback = 'random')::BIGINT,
			COUNT(*) FILTER (WHERE fallback = 'default')::BIGINT,
			COUNT(*) FILTER (WHERE isinf(score) AND score > 0)::BIGINT,
			COUNT(*) FILTER (WHERE isinf(score) AND score < 0)::BIGINT,
			COALESCE(AVG(depth), 0)::DOUBLE,
			COALESCE(AVG(nodes), 0)::DOUBLE,
			COALESCE(quantile_cont(elapsed_us, 0.95), 0)::DOUBLE,
			COUNT(*) FILTER (WHERE COALESCE(actual, '') <> '')::BIGINT,
			COUNT(*) FILTER (WHERE COALESCE(actual, '') <> '' AND actual = move)::BIGINT
		FROM decisions
		GROUP BY source
		ORDER BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceSummary
	for rows.Next() {
		var s SourceSummary
		if err := rows.Scan(&s.Source, &s.Games, &s.Decisions, &s.Random, &s.Default,
			&s.Wins, &s.Losses, &s.AvgDepth, &s.AvgNodes, &s.P95Elapsed, &s.Compared, &s.Agreed); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func querySnakeAgreement(ctx context.Context, db *sql.DB) ([]SnakeAgreement, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			snake_id,
			COUNT(*)::BIGINT,
			COUNT(*) FILTER (WHERE actual = move)::BIGINT
		FROM decisions
		WHERE COALESCE(actual, '') <> ''
		GROUP BY snake_id
		ORDER BY COUNT(*) DESC, snake_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnakeAgreement
	for rows.Next() {
		var s SnakeAgreement
		if err := rows.Scan(&s.SnakeID, &s.Compared, &s.Agreed); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func queryDepths(ctx context.Context, db *sql.DB) ([]DepthBucket, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			depth::INTEGER,
			COUNT(*)::BIGINT,
			COALESCE(AVG(nodes), 0)::DOUBLE
		FROM decisions
		GROUP BY depth
		ORDER BY depth`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DepthBucket
	for rows.Next() {
		var b DepthBucket
		if err := rows.Scan(&b.Depth, &b.Decisions, &b.AvgNodes); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
