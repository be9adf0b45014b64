package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *Credentials
		errIs    error
		hasError bool
	}{
		{
			name:  "all string values",
			input: `{"username":"u","password":"p","host":"db.local","dbname":"totesys","port":"5432"}`,
			expected: &Credentials{
				Username: "u", Password: "p", Host: "db.local", DBName: "totesys", Port: "5432",
			},
		},
		{
			name:  "numeric port is coerced",
			input: `{"username":"u","password":"p","host":"db.local","dbname":"totesys","port":5432}`,
			expected: &Credentials{
				Username: "u", Password: "p", Host: "db.local", DBName: "totesys", Port: "5432",
			},
		},
		{
			name:     "missing field",
			input:    `{"username":"u","password":"p","host":"db.local","port":"5432"}`,
			errIs:    ErrMissingField,
			hasError: true,
		},
		{
			name:     "nested value",
			input:    `{"username":{"a":1},"password":"p","host":"h","dbname":"d","port":"1"}`,
			errIs:    ErrInvalidValue,
			hasError: true,
		},
		{
			name:     "not json",
			input:    `username=u`,
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := Parse([]byte(tt.input))
			if tt.hasError {
				require.Error(t, err)
				if tt.errIs != nil {
					assert.ErrorIs(t, err, tt.errIs)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, creds)
		})
	}
}

func TestCredentialsMapHasStringValues(t *testing.T) {
	creds, err := Parse([]byte(`{"username":"u","password":"p","host":"h","dbname":"d","port":5432}`))
	require.NoError(t, err)

	m := creds.Map()
	assert.Len(t, m, 5)
	for _, key := range []string{"username", "password", "host", "dbname", "port"} {
		assert.Contains(t, m, key)
		assert.NotEmpty(t, m[key])
	}

	port, err := creds.PortNumber()
	require.NoError(t, err)
	assert.Equal(t, 5432, port)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TESTDB_USERNAME", "reader")
	t.Setenv("TESTDB_PASSWORD", "secret")
	t.Setenv("TESTDB_HOST", "localhost")
	t.Setenv("TESTDB_DBNAME", "totesys")
	t.Setenv("TESTDB_PORT", "5432")

	creds, err := FromEnv("TESTDB")
	require.NoError(t, err)
	assert.Equal(t, "reader", creds.Username)
	assert.Equal(t, "totesys", creds.DBName)

	_, err = FromEnv("MISSINGDB")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("file source", func(t *testing.T) {
		path := filepath.Join(dir, "secret.json")
		require.NoError(t, os.WriteFile(path,
			[]byte(`{"username":"u","password":"p","host":"h","dbname":"d","port":"1"}`), 0o600))

		creds, err := Load(Config{File: path, EnvPrefix: "IGNORED"})
		require.NoError(t, err)
		assert.Equal(t, "h", creds.Host)
	})

	t.Run("dotenv source", func(t *testing.T) {
		path := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(path, []byte(
			"DOTENVDB_USERNAME=u\nDOTENVDB_PASSWORD=p\nDOTENVDB_HOST=h\nDOTENVDB_DBNAME=d\nDOTENVDB_PORT=1\n",
		), 0o600))

		t.Cleanup(func() {
			for _, name := range []string{"USERNAME", "PASSWORD", "HOST", "DBNAME", "PORT"} {
				_ = os.Unsetenv("DOTENVDB_" + name)
			}
		})

		creds, err := Load(Config{EnvPrefix: "DOTENVDB", DotEnv: []string{path}})
		require.NoError(t, err)
		assert.Equal(t, "d", creds.DBName)
	})

	t.Run("no source", func(t *testing.T) {
		_, err := Load(Config{})
		assert.ErrorIs(t, err, ErrNoSource)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(Config{File: filepath.Join(dir, "nope.json")})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
