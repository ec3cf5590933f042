package database

import (
	"io/fs"
	"testing"

	"github.com/dmv-prep/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "dmv", SSLMode: "require"})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=dmv sslmode=require", dsn)
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Equal(t, len(ups), len(downs))
}
