package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// Open はドキュメントストアとして使うPostgreSQLのコネクションプールを生成する。
// プロセス起動時に1回だけ生成し、各リポジトリに注入する。
// pgxpool.NewWithConfigは接続を試行しないため、疎通確認にはPingを使用すること。
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}

	return pool, nil
}

// OpenSQL はdatabase/sql経由（lib/pqドライバ）でPostgreSQL接続を開く。
// golang-migrateのpostgresドライバに渡すために使用する。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func OpenSQL(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}
