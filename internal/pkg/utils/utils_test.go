package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(url string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, url, nil)
	return c
}

func TestNewPageRequest(t *testing.T) {
	page, problem := NewPageRequest(testContext("/game?page_size=10&page_token=2"))
	require.Nil(t, problem)
	assert.Equal(t, 20, page.Offset)

	page, problem = NewPageRequest(testContext("/game?page_size=500&page_token=1"))
	require.Nil(t, problem)
	assert.Equal(t, 100, page.Size)
	assert.Equal(t, 100, page.Offset)

	_, problem = NewPageRequest(testContext("/game?page_token=1"))
	require.NotNil(t, problem)
	assert.Equal(t, http.StatusBadRequest, problem.Problem.Status)
}

func TestNextPageToken(t *testing.T) {
	page := PageRequest{Size: 10, Token: 0}
	next := page.NextPageToken(11)
	require.NotNil(t, next)
	assert.Equal(t, int64(1), *next)
	assert.Nil(t, page.NextPageToken(10))
}

func TestNewPageResponse(t *testing.T) {
	page := PageRequest{Size: 2, Token: 0}
	response := NewPageResponse(page, []string{"a", "b"}, 3)
	assert.Equal(t, int64(1), response.NextPageToken)
	assert.Equal(t, int64(3), response.ItemCount)

	last := NewPageResponse[string](PageRequest{Size: 2, Token: 1}, nil, 3)
	assert.Zero(t, last.NextPageToken)
	assert.NotNil(t, last.Items)
}

func TestDecodeMessage(t *testing.T) {
	type payload struct {
		GameId uint64 `json:"gameId"`
	}
	decoded, err := DecodeMessage[payload]([]byte(`{"gameId":5}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), decoded.GameId)

	_, err = DecodeMessage[payload]([]byte(`{`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload")
}
