// Applies the SQL files under migrations/ in name order, one transaction
// per file. Every statement is written to be re-runnable (CREATE TABLE IF
// NOT EXISTS and friends), so the command is safe to run on every deploy.
//
//	DATABASE_URL=postgres://... go run ./cmd/migrate [dir] [--list]
//
// --list prints the tables currently in the public schema instead of
// applying anything.
package main

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("[Migrate] DATABASE_URL is required")
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("[Migrate] connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("[Migrate] ping: %v", err)
	}

	if listOnly {
		listTables(db)
		return
	}

	files, err := sqlFiles(dir)
	if err != nil {
		log.Fatalf("[Migrate] read migrations dir %s: %v", dir, err)
	}

	var okCount, errCount int
	for _, f := range files {
		content, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			log.Fatalf("[Migrate] read %s: %v", f, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}

		if err := applyOne(db, string(content)); err != nil {
			log.Printf("[Migrate] %s: %v", f, err)
			errCount++
		} else {
			log.Printf("[Migrate] %s: ok", f)
			okCount++
		}
	}
	log.Printf("[Migrate] done: %d applied, %d failed", okCount, errCount)
	if errCount > 0 {
		os.Exit(1)
	}
}

func applyOne(db *sql.DB, content string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(content); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func sqlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func listTables(db *sql.DB) {
	rows, err := db.Query("SELECT tablename FROM pg_tables WHERE schemaname='public' ORDER BY tablename")
	if err != nil {
		log.Fatalf("[Migrate] list tables: %v", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			log.Fatalf("[Migrate] scan table name: %v", err)
		}
		log.Printf("[Migrate]   %s", t)
		n++
	}
	log.Printf("[Migrate] %d tables", n)
}
