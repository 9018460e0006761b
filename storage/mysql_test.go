package storage

import (
	"context"
	"os"
	"testing"
)

func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, Config{Backend: "mysql", MySQLDSN: dsn})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)
	testStore(t, s)
}

func TestMySQLRequiresDSN(t *testing.T) {
	if _, err := NewMySQL(context.Background(), ""); err == nil {
		t.Fatal("expected error without a dsn")
	}
}
