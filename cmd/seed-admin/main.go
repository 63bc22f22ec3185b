// Command seed-admin creates or updates an admin credential in the
// database. Intended for bootstrap and local development.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/mediarank/mediarank/internal/db"
	"github.com/mediarank/mediarank/internal/utils"
)

func main() {
	username := flag.String("username", "", "admin username")
	password := flag.String("password", "", "admin password")
	super := flag.Bool("super", false, "grant super-admin rights")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: seed-admin -username <name> -password <pass> [-super]")
		os.Exit(2)
	}

	_ = godotenv.Load(".env")
	dbPath := utils.SafeEnv("MEDIARANK_DB", "mediarank.db")

	sqlDB, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(sqlDB, ""); err != nil {
		fmt.Fprintln(os.Stderr, "run migrations:", err)
		os.Exit(1)
	}

	store, err := db.NewSQLiteStore(sqlDB)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init store:", err)
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash password:", err)
		os.Exit(1)
	}

	if err := store.UpsertAdmin(*username, hash, *super); err != nil {
		fmt.Fprintln(os.Stderr, "seed admin:", err)
		os.Exit(1)
	}

	fmt.Printf("admin %q ready (super=%v)\n", *username, *super)
}
