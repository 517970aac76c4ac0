package jobs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenwave/formpilot/internal/jobs"
)

func TestLoadFileMixedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		"https://jobs.lever.co/acme/1",
		{"url": "https://boards.greenhouse.io/beta/jobs/2", "company": "Beta", "title": "SRE", "source": "greenhouse"},
		{"url": "  "}
	]`), 0o644))

	targets, err := jobs.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "https://jobs.lever.co/acme/1", targets[0].URL)
	assert.NotEmpty(t, targets[0].ID)
	assert.Equal(t, "Beta", targets[1].Company)
	assert.Equal(t, "SRE", targets[1].Title)
	assert.Equal(t, "greenhouse", targets[1].Source)
}

func TestLoadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	_, err := jobs.LoadFile(path)
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beta.json"), []byte(`{
		"company": "Beta", "jobs": ["https://jobs.lever.co/beta/1"]
	}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme.json"), []byte(`{
		"jobs": [{"url": "https://jobs.lever.co/acme/1", "title": "Backend", "source": "lever"}]
	}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"jobs": []}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignore`), 0o644))

	batches, err := jobs.LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	// Filename order; missing company falls back to the filename.
	assert.Equal(t, "acme", batches[0].Company)
	assert.Equal(t, "acme", batches[0].Jobs[0].Company)
	assert.Equal(t, "Backend", batches[0].Jobs[0].Title)
	assert.Equal(t, "lever", batches[0].Jobs[0].Source)
	assert.Equal(t, "Beta", batches[1].Company)
}

func TestLoadDirNoJobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"jobs": []}`), 0o644))

	_, err := jobs.LoadDir(dir)
	assert.Error(t, err)
}
