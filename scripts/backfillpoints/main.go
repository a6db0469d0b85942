package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Recomputes users.total_points from the point_transactions ledger.
// Run after manual ledger corrections so cached totals match the ledger.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Build connection string
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	// Connect to database
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Connected to database successfully")

	// Report users whose cached total drifted from the ledger
	rows, err := db.Query(`
		SELECT u.privy_did, u.total_points, COALESCE(SUM(pt.points), 0) AS ledger_total
		FROM users u
		LEFT JOIN point_transactions pt ON pt.privy_did = u.privy_did
		GROUP BY u.privy_did, u.total_points
		HAVING u.total_points != COALESCE(SUM(pt.points), 0)
	`)
	if err != nil {
		log.Fatalf("Failed to query drifted totals: %v", err)
	}

	drifted := 0
	for rows.Next() {
		var did string
		var cached, ledger int64
		if err := rows.Scan(&did, &cached, &ledger); err != nil {
			log.Fatalf("Failed to scan row: %v", err)
		}
		log.Printf("  %s: cached=%d ledger=%d", did, cached, ledger)
		drifted++
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Failed to iterate rows: %v", err)
	}
	rows.Close()

	if drifted == 0 {
		log.Println("✅ All cached totals match the ledger, nothing to do")
		return
	}

	fmt.Printf("\n⚠️  %d user(s) drifted. Rewrite cached totals from the ledger? (y/N): ", drifted)
	var response string
	fmt.Scanln(&response)

	if response != "y" && response != "Y" {
		log.Println("Skipping backfill (totals left as-is)")
		return
	}

	log.Println("Backfilling totals...")
	result, err := db.Exec(`
		UPDATE users u
		SET total_points = COALESCE(ledger.total, 0)
		FROM (
			SELECT privy_did, SUM(points) AS total
			FROM point_transactions
			GROUP BY privy_did
		) ledger
		WHERE ledger.privy_did = u.privy_did
		  AND u.total_points != COALESCE(ledger.total, 0)
	`)
	if err != nil {
		log.Fatalf("Failed to backfill totals: %v", err)
	}

	updated, _ := result.RowsAffected()
	log.Printf("✅ Backfill completed, %d user(s) updated!", updated)
}
