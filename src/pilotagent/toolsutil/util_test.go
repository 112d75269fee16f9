package toolsutil

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/elee1766/pagepilot/src/pagebridge"
	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "héllo", Truncate("héllo", 0))

	out := Truncate(strings.Repeat("é", 12), 10)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("é", 10)+"\n"))
	assert.Contains(t, out, "2 more characters")
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err      error
		contains string
	}{
		{err: pagebridge.NotFound("//a"), contains: "element not found"},
		{err: fmt.Errorf("%w: get_page_content", pagebridge.ErrTimeout), contains: "did not respond"},
		{err: pagebridge.ErrNoActivePage, contains: "no browser tab"},
		{err: errors.New("tab crashed"), contains: "tab crashed"},
	}
	for _, tt := range tests {
		err := Describe("performAction", tt.err)
		assert.Contains(t, err.Error(), "performAction failed")
		assert.Contains(t, err.Error(), tt.contains)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
}
