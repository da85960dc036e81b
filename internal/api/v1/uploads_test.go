package v1_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/chatflow/internal/api/v1"
)

func TestUploads(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.api.Get("/uploads")
	require.Equal(t, http.StatusOK, resp.Code)
	var body v1.UploadListBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Count)
	assert.NotNil(t, body.Files)

	_, err := env.uploads.Save("b.txt", strings.NewReader("bb"))
	require.NoError(t, err)
	_, err = env.uploads.Save("a.txt", strings.NewReader("a"))
	require.NoError(t, err)

	resp = env.api.Get("/uploads")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, env.uploads.Dir(), body.Dir)
	assert.Equal(t, "a.txt", body.Files[0].Name)
	assert.Equal(t, int64(2), body.Files[1].Size)

	resp = env.api.Delete("/uploads")
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = env.api.Get("/uploads")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Count)
}
