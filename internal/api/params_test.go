package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := map[string]struct {
		value  string
		assert func(t *testing.T, id string, ok bool, w *httptest.ResponseRecorder)
	}{
		"a well-formed ID passes through": {
			value: "0190c5a8-0000-7000-8000-000000000001",

			assert: func(t *testing.T, id string, ok bool, w *httptest.ResponseRecorder) {
				require.True(t, ok)
				assert.Equal(t, "0190c5a8-0000-7000-8000-000000000001", id)
			},
		},

		// The original behavior for a malformed ID in the path is a plain
		// not-found, never a server error.
		"garbage is rejected as not found": {
			value: "garbage",

			assert: func(t *testing.T, id string, ok bool, w *httptest.ResponseRecorder) {
				require.False(t, ok)
				assert.Equal(t, http.StatusNotFound, w.Code)
				assert.Contains(t, w.Body.String(), "quiz not found")
			},
		},

		"an empty ID is rejected as not found": {
			value: "",

			assert: func(t *testing.T, id string, ok bool, w *httptest.ResponseRecorder) {
				require.False(t, ok)
				assert.Equal(t, http.StatusNotFound, w.Code)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Params = gin.Params{{Key: "quiz_id", Value: tt.value}}

			id, ok := pathID(c, "quiz_id")
			tt.assert(t, id, ok, w)
		})
	}
}
