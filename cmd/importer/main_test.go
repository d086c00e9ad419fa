package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/models"
	"github.com/kjstillabower/apiverse/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newCommand(zap.NewNop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func countKind(t *testing.T, path string, kind models.Kind) int {
	t.Helper()
	db, err := store.OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	n, err := db.Count(context.Background(), store.NewQuery(string(kind)))
	require.NoError(t, err)
	return n
}

func TestImporter_BootstrapThenSkip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.db")

	out, err := execute(t, "--store", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Film: 6")
	assert.Contains(t, out, "total: ")
	assert.Equal(t, 6, countKind(t, path, models.Film))

	out, err = execute(t, "--store", path)
	require.NoError(t, err)
	assert.Contains(t, out, "already present")
}

func TestImporter_ForceReimports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.db")
	_, err := execute(t, "--store", path)
	require.NoError(t, err)

	out, err := execute(t, "--store", path, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Person: ")
	assert.Equal(t, 6, countKind(t, path, models.Film))
}

func TestImporter_SingleKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.db")

	out, err := execute(t, "--store", path, "--kind", "films")
	require.NoError(t, err)
	assert.Equal(t, "Film: 6\n", out)
	assert.Zero(t, countKind(t, path, models.Person))

	_, err = execute(t, "--store", path, "--kind", "transport")
	require.NoError(t, err)
	assert.Positive(t, countKind(t, path, models.Transport))
}

func TestImporter_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.db")

	_, err := execute(t, "--store", path, "--kind", "droids")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")

	_, err = execute(t, "--store", path, "--data", t.TempDir(), "--force")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "films.json"), err.Error())

	_, err = execute(t, "extra-arg", "--store", path)
	require.Error(t, err)
}
