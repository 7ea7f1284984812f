package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/panelengine"
	"github.com/eringen/panelengine/accounts"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "panelengine.yaml")
	cfg := "databasePath: " + filepath.Join(dir, "panel.db") + "\n" +
		"uploadsDir: " + filepath.Join(dir, "uploads") + "\n" +
		"analyticsEnabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	newUser = accounts.NewUser{}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUsersCreate(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "hunter2hunter2\n", "users", "create", "-c", cfgPath, "--email", "Ada@Example.com", "--name", "Ada")
	require.NoError(t, err)
	assert.Contains(t, out, "created ada@example.com")

	cfg, err := panelengine.LoadConfig(cfgPath)
	require.NoError(t, err)
	app := panelengine.New(cfg, panelengine.ViewFuncs{})
	require.NoError(t, app.Open())
	defer app.Close()
	u, err := app.Accounts.Authenticate(context.Background(), "ada@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)

	_, err = execute(t, "", "users", "create", "-c", cfgPath, "--email", "ada@example.com", "--password", "another-password")
	assert.ErrorContains(t, err, "email")

	_, err = execute(t, "short\n", "users", "create", "-c", cfgPath, "--email", "grace@example.com")
	assert.Error(t, err)
}

func TestReadPassword(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("from-stdin\r\n"))
	got, err := readPassword(cmd, "")
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", got)

	got, err = readPassword(cmd, "given")
	require.NoError(t, err)
	assert.Equal(t, "given", got)

	cmd.SetIn(strings.NewReader(""))
	_, err = readPassword(cmd, "")
	assert.Error(t, err)
}
