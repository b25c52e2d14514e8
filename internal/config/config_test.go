package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ValidateProduction(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		dbURL       string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", "", true},
		{"Production with disable SSL mode", "production", "disable", "", true},
		{"Production with require SSL mode", "production", "require", "", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", "", false},
		{"Production with DATABASE_URL", "production", "", "postgres://u:p@db/app?sslmode=require", false},
		{"Development with disable SSL mode", "development", "disable", "", false},
		{"Test with empty SSL mode", "test", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{
				Env:         tt.env,
				DBSSLMode:   tt.sslMode,
				DatabaseURL: tt.dbURL,
				JWTSecret:   "secure-secret-at-least-32-chars-long",
				DBPassword:  "secure-password",
				Port:        "8080",
			}

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateRejectsDefaultSecretInProduction(t *testing.T) {
	c := &Config{Env: "production", JWTSecret: defaultJWTSecret, Port: "8080", DBPassword: "x", DBSSLMode: "require"}
	assert.Error(t, c.Validate())
}

func TestConfig_ValidateRejectsRootBootstrapInProduction(t *testing.T) {
	c := &Config{
		Env:              "production",
		JWTSecret:        "secure-secret-at-least-32-chars-long",
		Port:             "8080",
		DBPassword:       "secure-password",
		DBSSLMode:        "require",
		DevBootstrapRoot: true,
	}
	assert.Error(t, c.Validate())
}

func TestConfig_DSNPrefersDatabaseURL(t *testing.T) {
	c := &Config{
		DatabaseURL: "postgres://app:secret@db:5432/mentorlink",
		DBHost:      "ignored",
	}
	assert.Equal(t, "postgres://app:secret@db:5432/mentorlink", c.DSN())

	c.DatabaseURL = ""
	c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName = "localhost", "5432", "u", "p", "n"
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}

func TestLoadConfig_Normalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer os.Unsetenv("MENTOR_CAPACITY")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")
	os.Setenv("MENTOR_CAPACITY", "0")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, DefaultMentorCapacity, c.MentorCapacity)
	assert.Equal(t, "hybrid", c.DBSchemaMode)
}

func TestLoadDatabaseURL(t *testing.T) {
	defer os.Unsetenv("DATABASE_URL")

	os.Unsetenv("DATABASE_URL")
	_, err := LoadDatabaseURL()
	assert.Error(t, err)

	os.Setenv("DATABASE_URL", " postgres://localhost/mentorlink ")
	url, err := LoadDatabaseURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/mentorlink", url)
}
