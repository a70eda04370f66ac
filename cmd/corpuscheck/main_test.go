package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roommatch/matcher/internal/apperrors"
	"github.com/roommatch/matcher/internal/config"
)

func writeFiles(t *testing.T, profiles, vectors string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	pp := filepath.Join(dir, "profiles.json")
	ep := filepath.Join(dir, "embeddings.json")

	require.NoError(t, os.WriteFile(pp, []byte(profiles), 0o600))
	require.NoError(t, os.WriteFile(ep, []byte(vectors), 0o600))

	return pp, ep
}

func TestCheck_Files(t *testing.T) {
	pp, ep := writeFiles(t,
		`[{"id":1,"raw_profile_text":"a"},{"id":2,"raw_profile_text":"b"},{"id":1,"raw_profile_text":"c"}]`,
		`[[1,0],[0,0],[0,1]]`,
	)

	rep, err := check(context.Background(), &options{source: config.CorpusSourceFile, profilesPath: pp, embeddingsPath: ep})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Profiles)
	assert.Equal(t, 2, rep.Dimensions)
	assert.Equal(t, []int{1}, rep.ZeroVectors)
	assert.Equal(t, []string{"1"}, rep.DuplicateID)
}

func TestCheck_Errors(t *testing.T) {
	pp, ep := writeFiles(t, `[{"id":1,"raw_profile_text":"a"}]`, `[[1,0],[0,1]]`)

	_, err := check(context.Background(), &options{source: config.CorpusSourceFile, profilesPath: pp, embeddingsPath: ep})
	require.ErrorIs(t, err, apperrors.ErrStartupIntegrity)

	_, err = check(context.Background(), &options{source: "s3"})
	require.ErrorIs(t, err, config.ErrInvalidCorpusSource)

	_, err = check(context.Background(), &options{source: config.CorpusSourcePostgres})
	require.ErrorIs(t, err, config.ErrDatabaseURLRequired)
}

func TestRootCommand(t *testing.T) {
	pp, ep := writeFiles(t, `[{"id":"x","raw_profile_text":"room"}]`, `[[0.5,0.5,0.5]]`)

	var out bytes.Buffer

	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--source", "file", "--profiles", pp, "--embeddings", ep, "--json"})

	require.NoError(t, cmd.Execute())

	var rep report
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.Equal(t, 1, rep.Profiles)
	assert.Equal(t, 3, rep.Dimensions)
}

func TestPrintReport_Text(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, printReport(&out, report{Source: "f", Profiles: 0}, false))

	assert.Contains(t, out.String(), "profiles:   0")
	assert.Contains(t, out.String(), "corpus is empty")
}
