package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/mind-engage/skillway/internal/auth/middleware"
	"github.com/mind-engage/skillway/internal/ingest"
)

const testSecret = "skillctl-test-secret"

type cli struct {
	t   *testing.T
	dsn string
	dir string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("BLOB_BASE_PATH", dir)
	t.Setenv("AUTH_HMAC_SECRET", testSecret)
	t.Setenv("LOG_MODE", "production")
	return &cli{
		t:   t,
		dir: dir,
		dsn: "file:" + filepath.Join(dir, "skillway.db") + "?_pragma=busy_timeout(5000)",
	}
}

func (c *cli) run(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--db-driver", "sqlite", "--dsn", c.dsn}, args...))
	err := Execute(context.Background())
	return out.String(), err
}

func TestMigrateAndUsers(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema ready")

	out, err = c.run("user", "add", "Ustoz@Maktab.uz", "--password", "secret1", "--role", "teacher", "--grade", "7", "--name", "Ustoz")
	require.NoError(t, err)
	assert.Contains(t, out, "ustoz@maktab.uz\tteacher")

	_, err = c.run("user", "add", "ustoz@maktab.uz", "--password", "secret1", "--role", "teacher", "--grade", "7")
	require.Error(t, err, "duplicate email")

	_, err = c.run("user", "add", "x@maktab.uz", "--password", "123", "--role", "teacher", "--grade", "7")
	require.Error(t, err)

	out, err = c.run("user", "role", "ustoz@maktab.uz", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "\tadmin")

	_, err = c.run("user", "role", "ustoz@maktab.uz", "principal")
	require.Error(t, err)
	_, err = c.run("user", "role", "nobody@maktab.uz", "admin")
	require.Error(t, err)

	out, err = c.run("user", "list", "--role", "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "ustoz@maktab.uz")
}

func TestTokenParses(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("user", "add", "o@maktab.uz", "--password", "secret1", "--role", "student", "--grade", "5")
	require.NoError(t, err)

	out, err := c.run("token", "o@maktab.uz")
	require.NoError(t, err)
	claims, err := auth.NewAuthService(testSecret, 0).Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "o@maktab.uz", claims.Email)
	assert.NotEmpty(t, claims.Subject)
}

func TestIngestPreviewAndCommit(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("user", "add", "t@maktab.uz", "--password", "secret1", "--role", "teacher", "--grade", "5")
	require.NoError(t, err)
	_, err = c.run("user", "add", "s@maktab.uz", "--password", "secret1", "--role", "student", "--grade", "5")
	require.NoError(t, err)

	file := filepath.Join(c.dir, "reja.csv")
	require.NoError(t, os.WriteFile(file, []byte("Fan,Tartib,Mavzu,Sinf\nMatematika,1,Kasrlar,5\nMatematika,2,Foizlar,5\n"), 0o644))

	out, err := c.run("ingest", "preview", file)
	require.NoError(t, err)
	var p ingest.Preview
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, 2, p.TotalRows)
	assert.Equal(t, 0, p.Report.ErrorCount)

	_, err = c.run("ingest", "commit", file, "--as", "s@maktab.uz")
	require.Error(t, err, "students cannot import")

	out, err = c.run("ingest", "commit", file, "--as", "t@maktab.uz")
	require.NoError(t, err)
	var res ingest.CommitResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.NewSubjects)
	assert.Equal(t, 2, res.NewLessons)

	_, err = os.Stat(filepath.Join(c.dir, "blobs", "uploads", res.UploadID, "reja.csv"))
	assert.NoError(t, err)

	out, err = c.run("events", "--type", "CatalogUploaded")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, res.UploadID)
}
