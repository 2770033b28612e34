package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/famkit/location-sharing-backend/api"
	"github.com/famkit/location-sharing-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// FamilyClient implements api.FamilyProvider for HTTP-based communication
// with the family location service.
type FamilyClient struct {
	// ServerAddr is the base URL of the service
	ServerAddr string

	// HTTPClient overrides http.DefaultClient when set
	HTTPClient *http.Client
}

func (c *FamilyClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// CreateFamily creates a new family document and returns its identifier and
// connection code.
func (c *FamilyClient) CreateFamily(settings *interfaces.FamilySettings) (*api.CreateFamilyResponse, error) {
	var resp api.CreateFamilyResponse
	req := api.CreateFamilyRequest{Settings: settings}
	if err := c.doJSON(http.MethodPost, "/api/families", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveCode maps a connection code to the family identifier.
func (c *FamilyClient) ResolveCode(code string) (*api.ResolveCodeResponse, error) {
	var resp api.ResolveCodeResponse
	path := fmt.Sprintf("/api/families/resolve/%s", url.PathEscape(code))
	if err := c.doJSON(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetFamily returns the full family document.
func (c *FamilyClient) GetFamily(familyID string) (*interfaces.FamilyDocument, error) {
	var doc interfaces.FamilyDocument
	path := fmt.Sprintf("/api/families/%s", url.PathEscape(familyID))
	if err := c.doJSON(http.MethodGet, path, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateLocation uploads a fresh encrypted envelope.
func (c *FamilyClient) UpdateLocation(familyID string, envelope interfaces.LocationEnvelope) error {
	path := fmt.Sprintf("/api/families/%s/location", url.PathEscape(familyID))
	req := api.UpdateLocationRequest{Ciphertext: envelope.Ciphertext, IV: envelope.IV}
	return c.doJSON(http.MethodPut, path, req, nil)
}

// GetLocation downloads the stored envelope.
func (c *FamilyClient) GetLocation(familyID string) (*api.LocationResponse, error) {
	var resp api.LocationResponse
	path := fmt.Sprintf("/api/families/%s/location", url.PathEscape(familyID))
	if err := c.doJSON(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateSettings replaces the family's sharing settings.
func (c *FamilyClient) UpdateSettings(familyID string, settings interfaces.FamilySettings) error {
	path := fmt.Sprintf("/api/families/%s/settings", url.PathEscape(familyID))
	return c.doJSON(http.MethodPut, path, settings, nil)
}

// SetApproval updates the dependent's approval status.
func (c *FamilyClient) SetApproval(familyID string, status interfaces.ApprovalStatus) error {
	path := fmt.Sprintf("/api/families/%s/approval", url.PathEscape(familyID))
	return c.doJSON(http.MethodPut, path, api.UpdateApprovalRequest{Status: status}, nil)
}

// doJSON sends a request with an optional JSON body and decodes an optional
// JSON response. Non-2xx responses become errors carrying the server's
// error message.
func (c *FamilyClient) doJSON(method, path string, reqBody, respBody interface{}) error {
	var body io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.ServerAddr+path, body)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s returned non-2xx response: %d", path, resp.StatusCode)
		}
		return fmt.Errorf("%s returned error %d: %s", path, resp.StatusCode, string(bodyBytes))
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("could not parse %s response: %w", path, err)
	}
	return nil
}

// MockFamilyProvider implements a mock api.FamilyProvider for testing.
type MockFamilyProvider struct {
	mock.Mock
}

func (m *MockFamilyProvider) CreateFamily(settings *interfaces.FamilySettings) (*api.CreateFamilyResponse, error) {
	args := m.Called(settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.CreateFamilyResponse), args.Error(1)
}

func (m *MockFamilyProvider) ResolveCode(code string) (*api.ResolveCodeResponse, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.ResolveCodeResponse), args.Error(1)
}

func (m *MockFamilyProvider) GetFamily(familyID string) (*interfaces.FamilyDocument, error) {
	args := m.Called(familyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.FamilyDocument), args.Error(1)
}

func (m *MockFamilyProvider) UpdateLocation(familyID string, envelope interfaces.LocationEnvelope) error {
	args := m.Called(familyID, envelope)
	return args.Error(0)
}

func (m *MockFamilyProvider) GetLocation(familyID string) (*api.LocationResponse, error) {
	args := m.Called(familyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.LocationResponse), args.Error(1)
}

func (m *MockFamilyProvider) UpdateSettings(familyID string, settings interfaces.FamilySettings) error {
	args := m.Called(familyID, settings)
	return args.Error(0)
}

func (m *MockFamilyProvider) SetApproval(familyID string, status interfaces.ApprovalStatus) error {
	args := m.Called(familyID, status)
	return args.Error(0)
}
