package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/jackc/pgx/v5/stdlib"

	"polyrec.org/internal/identity"
	"polyrec.org/internal/ids"
	"polyrec.org/internal/migrate"
	"polyrec.org/migrations"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	dsn := flag.String("dsn", os.Getenv("POLYREC_PG_DSN"), "PostgreSQL DSN")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or POLYREC_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status|create-admin]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, migrations.FS, migrations.Dir, migrations.SeedsDir)

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	case "create-admin":
		err = createAdmin(ctx, db)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// createAdmin inserts an active staff account from POLYREC_ADMIN_USER and
// POLYREC_ADMIN_PASSWORD. Existing usernames are left untouched.
func createAdmin(ctx context.Context, db *sql.DB) error {
	username := os.Getenv("POLYREC_ADMIN_USER")
	password := os.Getenv("POLYREC_ADMIN_PASSWORD")
	if username == "" || password == "" {
		return fmt.Errorf("POLYREC_ADMIN_USER and POLYREC_ADMIN_PASSWORD are required")
	}
	if err := identity.ValidateUsername(username); err != nil {
		return err
	}
	if err := identity.ValidatePassword(username, password); err != nil {
		return err
	}
	hash, err := identity.HashPassword(password)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		insert into users(id, username, password_hash, active, staff, created_at, updated_at)
		values ($1,$2,$3,true,true,now(),now())
		on conflict (username) do nothing
	`, ids.New(), username, hash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		log.Printf("user %q already exists, skipping", username)
		return nil
	}
	log.Printf("created admin %q", username)
	return nil
}
