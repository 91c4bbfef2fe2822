package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/avatarctic/tagcache/go/internal/infrastructure/httpserver/middleware"
)

// IntegrationTestSuite exercises a running server.
// Behavior:
//   - TEST_SERVER_URL selects the server; the suite is skipped without it.
//   - ADMIN_JWT_SECRET, when it matches the server's, enables the admin cases.
type IntegrationTestSuite struct {
	suite.Suite
	client      *http.Client
	baseURL     string
	adminSecret string
	// run isolates the ids and tags of one suite run
	run string
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.baseURL = strings.TrimRight(os.Getenv("TEST_SERVER_URL"), "/")
	if s.baseURL == "" {
		s.T().Skip("TEST_SERVER_URL not set")
	}
	s.client = &http.Client{Timeout: 5 * time.Second}
	s.adminSecret = os.Getenv("ADMIN_JWT_SECRET")
	s.run = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *IntegrationTestSuite) do(method, path string, body []byte, header map[string]string) (int, []byte) {
	req, err := http.NewRequest(method, s.baseURL+path, bytes.NewReader(body))
	s.Require().NoError(err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, data
}

func (s *IntegrationTestSuite) adminHeader() map[string]string {
	if s.adminSecret == "" {
		s.T().Skip("ADMIN_JWT_SECRET not set")
	}
	token, err := middleware.SignAdminToken(s.adminSecret, "integration", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	})
	s.Require().NoError(err)
	return map[string]string{"Authorization": "Bearer " + token, "Content-Type": "application/json"}
}

func (s *IntegrationTestSuite) TestHealthCheck() {
	code, body := s.do(http.MethodGet, "/health", nil, nil)
	s.Equal(http.StatusOK, code)

	var health map[string]interface{}
	s.Require().NoError(json.Unmarshal(body, &health))
	s.Equal("healthy", health["status"])
}

func (s *IntegrationTestSuite) TestEntryLifecycle() {
	id := "it-" + s.run
	tag := "IT_" + s.run

	code, _ := s.do(http.MethodPut, "/api/v1/entries/"+id+"?ttl=120&tag="+tag, []byte("payload"), nil)
	s.Require().Equal(http.StatusNoContent, code)

	code, body := s.do(http.MethodGet, "/api/v1/entries/"+id, nil, nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("payload", string(body))

	code, body = s.do(http.MethodGet, "/api/v1/ids?tag="+tag, nil, nil)
	s.Require().Equal(http.StatusOK, code)
	s.Contains(string(body), id)

	code, _ = s.do(http.MethodDelete, "/api/v1/entries/"+id, nil, nil)
	s.Equal(http.StatusNoContent, code)
}

func (s *IntegrationTestSuite) TestCleanByTag() {
	header := s.adminHeader()
	tag := "IT_CLEAN_" + s.run
	for _, id := range []string{"a", "b"} {
		code, _ := s.do(http.MethodPut, "/api/v1/entries/"+s.run+id+"?tag="+tag, []byte("v"), nil)
		s.Require().Equal(http.StatusNoContent, code)
	}

	req, _ := json.Marshal(map[string]interface{}{"mode": "matchingAnyTag", "tags": []string{tag}})
	code, _ := s.do(http.MethodPost, "/api/v1/admin/clean", req, header)
	s.Require().Equal(http.StatusNoContent, code)

	for _, id := range []string{"a", "b"} {
		code, _ := s.do(http.MethodGet, "/api/v1/entries/"+s.run+id, nil, nil)
		s.Equal(http.StatusNotFound, code)
	}
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}
