package bankapp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
)

// LocalHelper prepares a local database for development and integration
// testing: schema setup, teardown, and demo account seeding.
type LocalHelper struct {
	Conn *pgx.Conn
	node *snowflake.Node
}

func NewLocalHelper(cfg *Config) (*LocalHelper, error) {
	conn, err := pgx.Connect(context.Background(), cfg.Database.ConnectionString)
	if err != nil {
		return nil, err
	}
	node, err := snowflake.NewNode(cfg.Snowflake.Node)
	if err != nil {
		return nil, err
	}
	return &LocalHelper{
		Conn: conn,
		node: node,
	}, nil
}

func (lh *LocalHelper) InitDB() (func(), error) {
	initSQLpath := filepath.Join("testdata", "init_db.sql")
	bits, err := os.ReadFile(initSQLpath)
	if err != nil {
		return nil, err
	}
	if _, err = lh.Conn.Exec(context.Background(), string(bits)); err != nil {
		return nil, err
	}
	return lh.teardownDB(), err
}

type seedAccount struct {
	ID           snowflake.ID
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
}

// PrepareDemoAccounts inserts a few ready-to-use logins so a fresh local
// stack is immediately explorable. Passwords are hashed here; the seed
// template only ever sees hashes.
func (lh *LocalHelper) PrepareDemoAccounts() error {
	demos := []struct {
		first, last, email, password string
	}{
		{"Alice", "Nguyen", "alice@example.com", "pw123"},
		{"Bob", "Ocampo", "bob@example.com", "hunter2"},
	}
	seeds := make([]seedAccount, 0, len(demos))
	for _, d := range demos {
		hash, err := HashPassword(d.password)
		if err != nil {
			return err
		}
		seeds = append(seeds, seedAccount{
			ID:           lh.node.Generate(),
			FirstName:    d.first,
			LastName:     d.last,
			Email:        d.email,
			PasswordHash: hash,
		})
	}

	funcMap := template.FuncMap{
		"ToLower": strings.ToLower,
	}
	seedPath := filepath.Join("testdata", "seed_demo_accounts.tmpl")
	bits, err := os.ReadFile(seedPath)
	if err != nil {
		return err
	}
	tmpl, err := template.New("seed_demo_accounts").Funcs(funcMap).Parse(string(bits))
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	if err = tmpl.Execute(buf, seeds); err != nil {
		return err
	}

	if _, err = lh.Conn.Exec(context.Background(), buf.String()); err != nil {
		return err
	}

	return err
}

func (lh *LocalHelper) teardownDB() func() {
	return func() {
		defer lh.Conn.Close(context.Background())

		tearSQLpath := filepath.Join("testdata", "teardown_db.sql")
		bits, err := os.ReadFile(tearSQLpath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "DB cleanup read teardown sql: %s", err.Error())
			return
		}
		if _, err = lh.Conn.Exec(context.Background(), string(bits)); err != nil {
			fmt.Fprintf(os.Stderr, "DB cleanup exec teardown sql: %s", err.Error())
			return
		}
	}
}
