package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "linker",
		Password: "secret",
		Name:     "linker",
		Host:     "db.internal",
		Port:     5433,
	})
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=5433 user=linker dbname=linker password=secret sslmode=disable", dsn)
}

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "linker", Name: "linker"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=linker dbname=linker sslmode=disable", dsn)
}

func TestBuildPostgresDSNPassthrough(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://u:p@host/db"})
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@host/db", dsn)
}

func TestBuildPostgresDSNRequiresCredentials(t *testing.T) {
	_, err := buildPostgresDSN(Config{Name: "linker"})
	require.Error(t, err)
	_, err = buildPostgresDSN(Config{User: "linker"})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "linker",
		Password: "secret",
		Name:     "linker",
		Host:     "db.internal",
		Port:     3307,
	})
	require.NoError(t, err)
	require.Equal(t, "linker:secret@tcp(db.internal:3307)/linker?charset=utf8mb4&parseTime=True&loc=UTC", dsn)
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "linker", Name: "linker"})
	require.NoError(t, err)
	require.Equal(t, "linker@tcp(localhost:3306)/linker?charset=utf8mb4&parseTime=True&loc=UTC", dsn)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}
