// Package credentials resolves the source database credentials from a secret file or the environment
package credentials

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	// ErrMissingField is returned when a credential field is empty
	ErrMissingField = errors.New("credential field is missing")
	// ErrInvalidValue is returned when a secret value is neither a string nor a number
	ErrInvalidValue = errors.New("credential value must be a string")
	// ErrNoSource is returned when neither a file nor an env prefix is configured
	ErrNoSource = errors.New("no credential source configured")
)

// Credentials are the connection details of the source database. All values are strings.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	DBName   string `json:"dbname"`
	Port     string `json:"port"`
}

// Validate checks every field is set
func (c *Credentials) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"username", c.Username},
		{"password", c.Password},
		{"host", c.Host},
		{"dbname", c.DBName},
		{"port", c.Port},
	}

	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}

	return nil
}

// Map returns the credentials keyed the same way as the secret document
func (c *Credentials) Map() map[string]string {
	return map[string]string{
		"username": c.Username,
		"password": c.Password,
		"host":     c.Host,
		"dbname":   c.DBName,
		"port":     c.Port,
	}
}

// Config selects where credentials are read from
type Config struct {
	// File is a JSON secret document with username, password, host, dbname and port
	File string `yaml:"file"`
	// EnvPrefix reads <PREFIX>_USERNAME, <PREFIX>_PASSWORD, ... from the environment
	EnvPrefix string `yaml:"envPrefix" default:"DELTASTAGE_DB"`
	// DotEnv files are loaded into the environment before reading it
	DotEnv []string `yaml:"dotEnv"`
}

// Load resolves credentials from the configured source. The file wins over the environment.
func Load(cfg Config) (*Credentials, error) {
	if cfg.File != "" {
		return FromFile(cfg.File)
	}

	if cfg.EnvPrefix == "" {
		return nil, ErrNoSource
	}

	// Missing .env files are fine; variables may come from the process environment.
	_ = godotenv.Load(cfg.DotEnv...)

	return FromEnv(cfg.EnvPrefix)
}

// FromFile reads a JSON secret document
func FromFile(path string) (*Credentials, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Operator-provided secret path
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a secret document. Numeric values, such as a port, are converted to strings.
func Parse(data []byte) (*Credentials, error) {
	raw := make(map[string]any)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}

	values := make(map[string]string, len(raw))

	for key, value := range raw {
		switch v := value.(type) {
		case string:
			values[key] = v
		case json.Number:
			values[key] = v.String()
		case nil:
			values[key] = ""
		default:
			return nil, fmt.Errorf("%w: %s", ErrInvalidValue, key)
		}
	}

	creds := &Credentials{
		Username: values["username"],
		Password: values["password"],
		Host:     values["host"],
		DBName:   values["dbname"],
		Port:     values["port"],
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	return creds, nil
}

// FromEnv reads <prefix>_USERNAME, <prefix>_PASSWORD, <prefix>_HOST, <prefix>_DBNAME and <prefix>_PORT
func FromEnv(prefix string) (*Credentials, error) {
	get := func(name string) string {
		return os.Getenv(prefix + "_" + name)
	}

	creds := &Credentials{
		Username: get("USERNAME"),
		Password: get("PASSWORD"),
		Host:     get("HOST"),
		DBName:   get("DBNAME"),
		Port:     get("PORT"),
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	return creds, nil
}

// PortNumber returns the port as an integer
func (c *Credentials) PortNumber() (int, error) {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", c.Port, err)
	}

	return port, nil
}
