// Command squril is the smallest possible exerciser of the backend facade:
// open a store, run one SQURIL operation against one table, print the
// resulting JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/atomicbase/squril/internal/apierrors"
	"github.com/atomicbase/squril/internal/applog"
	"github.com/atomicbase/squril/internal/backend"
	"github.com/atomicbase/squril/internal/config"
	"github.com/atomicbase/squril/internal/parser"
)

func logStartupInfo(store string) {
	fmt.Println("=== squril ===")
	fmt.Printf("Store:           %s\n", store)
	fmt.Printf("Database:        %s\n", config.Cfg.PrimaryDBPath)
	fmt.Printf("Audit suffix:    %s%s\n", config.Cfg.AuditSeparator, config.Cfg.AuditSuffix)
	fmt.Printf("Backup days:     %d\n", config.Cfg.BackupRetentionDays)
	fmt.Println()
}

func main() {
	op := flag.String("op", "select", "insert|select|update|delete|alter|restore")
	table := flag.String("table", "", "table name, or a*,b,c for select wildcards/lists")
	query := flag.String("query", "", "SQURIL query string, e.g. select=a,b&where=c=eq.5")
	data := flag.String("data", "", "JSON payload: a single object, or an array of objects for insert")
	store := flag.String("store", "sqlite", "sqlite|postgres")
	identity := flag.String("identity", "cli", "principal recorded on audit events")
	identityName := flag.String("identity-name", "", "display name recorded on audit events")
	audited := flag.Bool("audit", true, "record audit events for this call")
	flag.Parse()

	logStartupInfo(*store)

	if *table == "" {
		fmt.Fprintln(os.Stderr, "squril: -table is required")
		os.Exit(2)
	}

	ctx := context.Background()
	b, err := openStore(ctx, *store)
	if err != nil {
		fail(err)
	}
	defer b.Close()

	if err := run(ctx, b, *op, *table, *query, *data, *identity, *identityName, *audited); err != nil {
		fail(err)
	}
}

func openStore(ctx context.Context, store string) (backend.Backend, error) {
	switch store {
	case "sqlite":
		return backend.OpenSQLite(ctx, config.Cfg.PrimaryDBPath, "public")
	case "postgres":
		return backend.OpenPostgres(ctx, config.Cfg.PostgresDSN, "public", backend.PostgresPoolConfig{
			MaxOpenConns: config.Cfg.PostgresMaxOpenConns,
			MaxIdleConns: config.Cfg.PostgresMaxIdleConns,
		})
	default:
		return nil, fmt.Errorf("squril: unknown -store %q", store)
	}
}

func run(ctx context.Context, b backend.Backend, op, table, query, data, identity, identityName string, audited bool) error {
	switch op {
	case "insert":
		docs, err := decodeDocs(data)
		if err != nil {
			return err
		}
		return b.Insert(ctx, table, docs, audited, identity)

	case "select":
		q, err := parser.Parse(table, query)
		if err != nil {
			return err
		}
		rows, err := b.Select(ctx, table, q, audited, identity)
		if err != nil {
			return err
		}
		defer rows.Close()
		enc := json.NewEncoder(os.Stdout)
		for rows.Next() {
			doc, err := rows.Decode()
			if err != nil {
				return err
			}
			if err := enc.Encode(doc); err != nil {
				return err
			}
		}
		return rows.Err()

	case "update":
		q, err := parser.Parse(table, query)
		if err != nil {
			return err
		}
		docs, err := decodeDocs(data)
		if err != nil {
			return err
		}
		if len(docs) != 1 {
			return apierrors.NewParseError("update requires exactly one -data object")
		}
		return b.Update(ctx, table, q, docs[0], identity, identityName)

	case "delete":
		q, err := parser.Parse(table, query)
		if err != nil {
			return err
		}
		return b.Delete(ctx, table, q, audited, identity, identityName)

	case "alter":
		q, err := parser.Parse(table, query)
		if err != nil {
			return err
		}
		result, err := b.Alter(ctx, table, q)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(result)

	case "restore":
		q, err := parser.Parse(table, query)
		if err != nil {
			return err
		}
		result, err := b.Restore(ctx, table, q, identity, identityName)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(result)

	default:
		return fmt.Errorf("squril: unknown -op %q", op)
	}
}

// decodeDocs accepts either a single JSON object or an array of objects, so
// -data works the same for one-row and batch inserts.
func decodeDocs(data string) ([]map[string]any, error) {
	if data == "" {
		return nil, apierrors.NewParseError("-data is required for this operation")
	}
	var arr []map[string]any
	if err := json.Unmarshal([]byte(data), &arr); err == nil {
		return arr, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, apierrors.NewParseError("-data is not a JSON object or array of objects: %v", err)
	}
	return []map[string]any{obj}, nil
}

func fail(err error) {
	apiErr := apierrors.Describe(err)
	applog.Logger.Error("squril operation failed", "code", apiErr.Code, "message", apiErr.Message)
	fmt.Fprintf(os.Stderr, "error [%s]: %s\n", apiErr.Code, apiErr.Message)
	os.Exit(1)
}
