package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"devconsole/internal/application"
	"devconsole/internal/infrastructure/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSeed(t *testing.T) {
	file, err := Read("")
	require.NoError(t, err)

	require.Len(t, file.Projects, 4)
	assert.Equal(t, "Ethereum DApp", file.Projects[0].Name)
	assert.Equal(t, "Foundry", file.Projects[1].Framework)
	assert.Empty(t, file.Projects[2].LastBuildAgo)
	require.Len(t, file.DefaultCommands, 4)
	assert.Equal(t, "mm-snap deploy --network mainnet", file.DefaultCommands[3].Command)
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte("projects:\n  - name: X\n    lastBuildAgo: yesterday\n"))
	require.Error(t, err)

	_, err = Parse([]byte("projects:\n  - path: /x\n"))
	require.Error(t, err)
}

func TestReadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
projects:
  - name: Solo
    path: /projects/solo
    framework: Foundry
    commands:
      - command: mm-snap verify
        description: Verify contracts
`), 0o644))

	file, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), file.UserID)
	require.Len(t, file.Projects, 1)
	require.Len(t, file.Projects[0].Commands, 1)
}

func TestApplySeedsOnlyEmptyStore(t *testing.T) {
	ctx := context.Background()
	directory, err := application.NewDirectory(memory.NewRepository())
	require.NoError(t, err)
	file, err := Read("")
	require.NoError(t, err)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	applied, err := Apply(ctx, directory, file, now)
	require.NoError(t, err)
	require.True(t, applied)

	projects, err := directory.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 4)
	require.NotNil(t, projects[0].LastBuild)
	assert.Equal(t, now.Add(-24*time.Hour), *projects[0].LastBuild)
	assert.Nil(t, projects[2].LastBuild)

	commands, err := directory.QuickCommands(ctx, projects[3].ID)
	require.NoError(t, err)
	require.Len(t, commands, 4)
	assert.Equal(t, "Deploy to testnet", commands[2].Description)

	applied, err = Apply(ctx, directory, file, now)
	require.NoError(t, err)
	assert.False(t, applied)
	projects, err = directory.List(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 4)
}
