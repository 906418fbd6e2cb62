package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ayush/zakat-tracker/internal/store"
)

func main() {
	var dsn, migrationsTable string

	flag.StringVar(&dsn, "db-url", os.Getenv("POSTGRES_DSN"), "postgres connection url")
	flag.StringVar(&migrationsTable, "migrations-table", "schema_migrations", "name of migrations table")
	flag.Parse()

	if dsn == "" {
		fmt.Fprintln(os.Stderr, "db-url or POSTGRES_DSN is required")
		os.Exit(2)
	}

	changed, err := store.MigratePostgres(dsn, migrationsTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !changed {
		fmt.Println("no migrations to apply")
		return
	}
	fmt.Println("migrations applied successfully")
}
