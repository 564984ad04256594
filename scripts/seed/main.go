// Seed creates a demo user and a batch of todos. Run from project root:
// go run ./scripts/seed
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"todoweb/internal/database"
)

const (
	demoUsername = "demo"
	demoPassword = "demo"
	totalTodos   = 200
)

func main() {
	loadEnvFile(".env")

	ctx := context.Background()
	db := database.InitDB(ctx)
	if db == nil {
		fmt.Fprintln(os.Stderr, "DATABASE_URL not set or DB connection failed")
		os.Exit(1)
	}
	if err := database.Migrate(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Schema failed:", err)
		os.Exit(1)
	}

	userID, err := ensureDemoUser(ctx, db)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Seed user failed:", err)
		os.Exit(1)
	}

	start := time.Now()
	for i := 1; i <= totalTodos; i++ {
		due := time.Now().AddDate(0, 0, i%30)
		_, err := db.ExecContext(ctx,
			`INSERT INTO todo (title, detail, author_id, sts, duedate)
			 VALUES ($1, $2, $3, $4, $5)`,
			fmt.Sprintf("Todo %d", i),
			fmt.Sprintf("Detail for todo %d", i),
			userID, "Pending", due)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Insert failed:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Done: %d todos for user %q in %v\n", totalTodos, demoUsername, time.Since(start))
}

func ensureDemoUser(ctx context.Context, db *sql.DB) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = $1`, demoUsername).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}
	err = db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id`,
		demoUsername, string(hash)).Scan(&id)
	return id, err
}

func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		val = strings.Trim(val, `"'`)
		if key != "" && os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
}
