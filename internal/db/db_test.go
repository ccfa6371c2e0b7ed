package db

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mouldconnect/apiserver/config"
)

func TestPostgresURL(t *testing.T) {
	raw := PostgresURL(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "mc",
		Password: "p@ss/word",
		DBName:   "mouldconnect",
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/mouldconnect", u.Path)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))

	password, ok := u.User.Password()
	require.True(t, ok)
	assert.Equal(t, "p@ss/word", password)
}

func TestPostgresURL_SSL(t *testing.T) {
	raw := PostgresURL(config.DatabaseConfig{Host: "h", Port: 5432, UseSSL: true})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestMigrationsURL(t *testing.T) {
	assert.Equal(t, "file://internal/db/migrations", MigrationsURL(""))
	assert.Equal(t, "file:///srv/migrations", MigrationsURL("/srv/migrations"))
}
