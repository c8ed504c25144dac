package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipmix/internal/domain"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigInitThenShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipmix", "config.toml")

	out, err := executeRoot(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)
	require.FileExists(t, path)

	_, err = executeRoot(t, "--config", path, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--overwrite")

	_, err = executeRoot(t, "--config", path, "config", "init", "--overwrite")
	require.NoError(t, err)

	out, err = executeRoot(t, "--config", path, "--log-level", "DEBUG", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# "+path)
	assert.Regexp(t, `log_level = ['"]debug['"]`, out)
	assert.Contains(t, out, "output_dir")
}

func TestConfigInitIgnoresBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("not = [valid"), 0o644))
	target := filepath.Join(dir, "fresh.toml")

	_, err := executeRoot(t, "--config", broken, "config", "init", "--path", target)
	require.NoError(t, err)
	assert.FileExists(t, target)

	_, err = executeRoot(t, "--config", broken, "config", "show")
	require.Error(t, err)
}

func TestStageCommandsRequireAVideoArgument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := executeRoot(t, "--config", path, "preview")
	require.Error(t, err)

	_, err = executeRoot(t, "--config", path, "merge")
	require.Error(t, err)
}

func TestPreviewRejectsNonVideoBeforeStartingEngine(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("plain text"), 0o644))

	_, err := executeRoot(t, "--config", filepath.Join(dir, "config.toml"), "preview", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please upload a valid video file")
}

func TestResolveOutput(t *testing.T) {
	assert.Equal(t, "custom.mp4", resolveOutput("  custom.mp4 ", "/videos", resultFileName))
	assert.Equal(t, filepath.Join("/videos", "result.mp4"), resolveOutput("", "/videos", resultFileName))
}

func TestFilePresenterWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	presenter := &filePresenter{
		previewPath: filepath.Join(dir, "nested", "preview.mp4"),
		resultPath:  filepath.Join(dir, "result.mp4"),
	}

	dims, err := presenter.ShowPreview(context.Background(), domain.Artifact{Stage: domain.StagePreview, Data: []byte("preview")})
	require.NoError(t, err)
	assert.False(t, dims.Known())

	require.NoError(t, presenter.ShowResult(context.Background(), domain.Artifact{Stage: domain.StageMerge, Data: []byte("result")}))

	data, err := os.ReadFile(presenter.resultPath)
	require.NoError(t, err)
	assert.Equal(t, "result", string(data))
	assert.Len(t, presenter.written, 2)
}

func TestFilePresenterSkipsUnsetPaths(t *testing.T) {
	presenter := &filePresenter{}
	_, err := presenter.ShowPreview(context.Background(), domain.Artifact{Data: []byte("x")})
	require.NoError(t, err)
	require.NoError(t, presenter.ShowResult(context.Background(), domain.Artifact{Data: []byte("x")}))
	assert.Empty(t, presenter.written)
}

func TestMergeKeepsOriginalAudioByDefault(t *testing.T) {
	cmd := newMergeCommand(newCommandContext(nil, nil))

	flag := cmd.Flags().Lookup("keep-audio")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)

	require.NoError(t, cmd.Flags().Parse([]string{"--keep-audio=false"}))
	keep, err := cmd.Flags().GetBool("keep-audio")
	require.NoError(t, err)
	assert.False(t, keep)
}
