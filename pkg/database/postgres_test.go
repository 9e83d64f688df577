package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grouping-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "grouping"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=grouping sslmode=disable", dsn)
}

func TestConfigure(t *testing.T) {
	raw, _, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "sqlmock")

	Configure(db, config.DatabaseConfig{MaxOpenConns: 7, ConnMaxLifetime: 10 * time.Minute})
	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
}
