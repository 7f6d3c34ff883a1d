package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 修改全局 logger，不并行
func TestFromContext_AttachesKnownKeys(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "json")
	t.Cleanup(func() { Init("info", "json") })

	ctx := WithContext(context.Background(), RequestIDKey, "req-1")
	ctx = WithNovelID(ctx, "novel-9")

	Error(ctx, "save failed", errors.New("disk full"), "attempt", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "save failed", entry["msg"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "novel-9", entry["novel_id"])
	assert.Equal(t, "disk full", entry["error"])
	assert.EqualValues(t, 2, entry["attempt"])
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if got := parseLevel("WARNING"); got.String() != "WARN" {
		t.Fatalf("parseLevel(WARNING) = %s, want WARN", got)
	}
	if got := parseLevel("nonsense"); got.String() != "INFO" {
		t.Fatalf("parseLevel(nonsense) = %s, want INFO", got)
	}
}
