package migrations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	chstore "price-relay/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the database named in dsn when missing,
// applies every embedded statement and returns a connection to it.
// ClickHouse DDL is not transactional; migrations must use IF NOT EXISTS.
func RunClickhouseMigrations(ctx context.Context, dsn string, logger *zap.Logger) (*chstore.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	pending, err := load("clickhouse")
	if err != nil {
		return nil, err
	}

	if err := ensureDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	for _, m := range pending {
		stmts, err := splitStatements(m.SQL)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("parse migration %s: %w", m.Version, err)
		}
		// The native protocol accepts one statement per Exec.
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", m.Version, err)
			}
		}
		logger.Info("applied clickhouse migration", zap.String("version", m.Version))
	}

	return conn, nil
}

func ensureDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

var errUnterminatedString = errors.New("unterminated string literal")

// splitStatements splits input on semicolons outside single-quoted strings.
// Lines starting with -- are dropped. A doubled quote ('') is an escaped quote.
func splitStatements(input string) ([]string, error) {
	var (
		stmts    []string
		current  strings.Builder
		inString bool
	)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(input, "\n") {
		if !inString && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for i := 0; i < len(line); i++ {
			ch := line[i]
			switch {
			case ch == '\'' && inString && i+1 < len(line) && line[i+1] == '\'':
				current.WriteString("''")
				i++
			case ch == '\'':
				inString = !inString
				current.WriteByte(ch)
			case ch == ';' && !inString:
				flush()
			default:
				current.WriteByte(ch)
			}
		}
		current.WriteByte('\n')
	}

	if inString {
		return nil, errUnterminatedString
	}
	flush()
	return stmts, nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return "", errors.New("clickhouse dsn missing database")
	}
	return db, nil
}
