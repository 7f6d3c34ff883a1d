package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-writer/internal/application/translation"
	"z-novel-writer/internal/infrastructure/source"
)

// flakyTranslator 转大写；含 # 的分块前 failures 次调用失败
type flakyTranslator struct {
	failures atomic.Int32
}

func (t *flakyTranslator) TranslateChunk(_ context.Context, req translation.ChunkRequest) (string, error) {
	if strings.Contains(req.Text, "#") && t.failures.Add(-1) >= 0 {
		return "", errors.New("rate limited")
	}
	return strings.ToUpper(req.Text), nil
}

func (t *flakyTranslator) StreamChunk(ctx context.Context, req translation.ChunkRequest, emit translation.EmitFunc) (string, error) {
	out, err := t.TranslateChunk(ctx, req)
	if err != nil {
		return "", err
	}
	return out, emit(out)
}

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, rawURL string) (*source.Document, error) {
	return &source.Document{URL: rawURL, Title: "Page", Text: "fetched body."}, nil
}

func run(t *testing.T, tr translation.ChunkTranslator, args ...string) (string, string, error) {
	t.Helper()
	engine := translation.NewEngine(tr, translation.Config{ChunkSize: 13, Workers: 2, DefaultLanguage: "French"})
	loads := 0
	root := NewRootCmd(func(context.Context) (*Deps, func(), error) {
		loads++
		return &Deps{Engine: engine, Fetcher: stubFetcher{}}, func() {}, nil
	})
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	assert.LessOrEqual(t, loads, 1)
	return stdout.String(), stderr.String(), err
}

func TestTranslate_ParallelRetriesFailedChunks(t *testing.T) {
	t.Parallel()
	tr := &flakyTranslator{}
	tr.failures.Store(2)

	out, errOut, err := run(t, tr, "translate", "--text", "Hello world. Bye now#.", "--retries", "2")
	require.NoError(t, err)
	assert.Equal(t, "HELLO WORLD. BYE NOW#.\n", out)
	assert.Contains(t, errOut, "round 2")
}

func TestTranslate_ReportsChunksStillFailing(t *testing.T) {
	t.Parallel()
	tr := &flakyTranslator{}
	tr.failures.Store(5)

	out, errOut, err := run(t, tr, "translate", "-t", "Hello world. Bye now#.", "-r", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 chunks failed")
	assert.Equal(t, "HELLO WORLD. \n", out)
	assert.Contains(t, errOut, "chunk 1 failed: ")
}

func TestTranslate_StreamFromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello world. Bye now."), 0o600))

	out, errOut, err := run(t, &flakyTranslator{}, "translate", "--file", path, "--mode", "stream", "--lang", "German")
	require.NoError(t, err)
	assert.Equal(t, "HELLO WORLD. BYE NOW.\n", out)
	assert.Contains(t, errOut, "translated 2/2 chunks")
}

func TestTranslate_URLAndOutputFile(t *testing.T) {
	t.Parallel()
	dst := filepath.Join(t.TempDir(), "out.txt")

	out, _, err := run(t, &flakyTranslator{}, "translate", "--url", "https://example.com/ch1", "-o", dst)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "FETCHED BODY.\n", string(data))
}

func TestTranslate_RejectsBadArguments(t *testing.T) {
	t.Parallel()
	cases := map[string][]string{
		"no source":   {"translate"},
		"two sources": {"translate", "--text", "a", "--url", "https://example.com"},
		"bad mode":    {"translate", "--text", "a", "--mode", "batch"},
		"negative":    {"translate", "--text", "a", "--retries", "-1"},
	}
	for name, args := range cases {
		if _, _, err := run(t, &flakyTranslator{}, args...); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLanguages_MarksDefault(t *testing.T) {
	t.Parallel()
	out, _, err := run(t, &flakyTranslator{}, "languages")
	require.NoError(t, err)
	assert.Contains(t, out, "* French\n")
	assert.Contains(t, out, "  English\n")
}
