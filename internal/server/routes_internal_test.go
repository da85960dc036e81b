package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origins []string
		want    []string
	}{
		{name: "hosts with ports", origins: []string{"http://localhost:8080", "https://chat.example.com"}, want: []string{"localhost:8080", "chat.example.com"}},
		{name: "wildcard wins", origins: []string{"http://a.example", "*"}, want: []string{"*"}},
		{name: "skips unparsable", origins: []string{"not a url", "http://ok.example"}, want: []string{"ok.example"}},
		{name: "empty", origins: nil, want: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, originPatterns(tc.origins))
		})
	}
}

func TestMaxUploadRequest(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(64*maxUploadFiles+1<<20), maxUploadRequest(64))
}
