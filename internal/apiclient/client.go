// Package apiclient is a typed client for the address book HTTP API. It holds
// the bearer token of the current session and satisfies the locator's
// Searcher and Saver interfaces.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"addressbook/internal/geo"
	"addressbook/internal/locator"
	"addressbook/internal/models"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a failure answered by the server. It matches the models
// sentinel for its code under errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details []FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

var codeErrors = map[string]error{
	"unauthenticated":      models.ErrUnauthenticated,
	"expired":              models.ErrExpired,
	"superseded":           models.ErrSuperseded,
	"forbidden":            models.ErrForbidden,
	"not_found":            models.ErrNotFound,
	"validation_failed":    models.ErrValidationFailed,
	"password_mismatch":    models.ErrPasswordMismatch,
	"email_taken":          models.ErrEmailTaken,
	"invalid_credentials":  models.ErrInvalidCredentials,
	"unresolvable":         models.ErrUnresolvable,
	"provider_unavailable": models.ErrProviderUnavailable,
}

func (e *APIError) Is(target error) bool {
	sentinel, ok := codeErrors[e.Code]
	return ok && sentinel == target
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New returns a client for baseURL. A nil hc selects a client with a 15s
// timeout.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type envelope struct {
	Status  string          `json:"status"`
	Token   string          `json:"token"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Details []FieldError    `json:"details"`
	Data    json.RawMessage `json:"data"`
}

// do sends one request and decodes the data member of a success envelope
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (*envelope, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNoContent {
		return &envelope{Status: "success"}, nil
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		if res.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		}
		return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{Status: res.StatusCode, Code: env.Code, Message: env.Error, Details: env.Details}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return &env, nil
}

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type userData struct {
	User models.PublicUser `json:"user"`
}

// Signup registers a user and keeps the returned token.
func (c *Client) Signup(ctx context.Context, in SignupRequest) (*models.PublicUser, error) {
	return c.open(ctx, "/users/signup", in)
}

// Login replaces the held token with a fresh one. Any other client still
// holding the old token gets superseded errors from then on.
func (c *Client) Login(ctx context.Context, email, password string) (*models.PublicUser, error) {
	return c.open(ctx, "/users/login", map[string]string{"email": email, "password": password})
}

func (c *Client) open(ctx context.Context, path string, in any) (*models.PublicUser, error) {
	var data userData
	env, err := c.do(ctx, http.MethodPost, path, in, &data)
	if err != nil {
		return nil, err
	}
	c.SetToken(env.Token)
	return &data.User, nil
}

// Logout ends the session on the server and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, "/users/logout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) Me(ctx context.Context) (*models.PublicUser, error) {
	var data userData
	if _, err := c.do(ctx, http.MethodGet, "/users/me", nil, &data); err != nil {
		return nil, err
	}
	return &data.User, nil
}

type CreateAddressRequest struct {
	HouseDetails string             `json:"houseDetails,omitempty"`
	Street       string             `json:"street,omitempty"`
	AddressType  models.AddressType `json:"addressType,omitempty"`
	Coordinates  models.Coordinates `json:"coordinates"`
	Favorite     bool               `json:"favorite,omitempty"`
}

// UpdateAddressRequest sends only the non-nil fields.
type UpdateAddressRequest struct {
	AddressText  *string             `json:"address,omitempty"`
	HouseDetails *string             `json:"houseDetails,omitempty"`
	Street       *string             `json:"street,omitempty"`
	AddressType  *models.AddressType `json:"addressType,omitempty"`
	Coordinates  *models.Coordinates `json:"coordinates,omitempty"`
	Favorite     *bool               `json:"favorite,omitempty"`
}

type addressData struct {
	Address *models.Address `json:"address"`
}

func (c *Client) CreateAddress(ctx context.Context, in CreateAddressRequest) (*models.Address, error) {
	var data addressData
	if _, err := c.do(ctx, http.MethodPost, "/address", in, &data); err != nil {
		return nil, err
	}
	return data.Address, nil
}

func (c *Client) UpdateAddress(ctx context.Context, id string, in UpdateAddressRequest) (*models.Address, error) {
	var data addressData
	if _, err := c.do(ctx, http.MethodPut, "/address/"+url.PathEscape(id), in, &data); err != nil {
		return nil, err
	}
	return data.Address, nil
}

func (c *Client) GetAddress(ctx context.Context, id string) (*models.Address, error) {
	var data addressData
	if _, err := c.do(ctx, http.MethodGet, "/address/"+url.PathEscape(id), nil, &data); err != nil {
		return nil, err
	}
	return data.Address, nil
}

// CurrentAddress reports false, without an error, when the user has not
// saved an address yet.
func (c *Client) CurrentAddress(ctx context.Context) (*models.Address, bool, error) {
	var data addressData
	if _, err := c.do(ctx, http.MethodGet, "/address/current", nil, &data); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data.Address, true, nil
}

func (c *Client) ListAddresses(ctx context.Context) ([]models.Address, error) {
	var data struct {
		Addresses []models.Address `json:"addresses"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/address", nil, &data); err != nil {
		return nil, err
	}
	return data.Addresses, nil
}

func (c *Client) DeleteAddress(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/address/"+url.PathEscape(id), nil, nil)
	return err
}

func (c *Client) SearchAddresses(ctx context.Context, query string) ([]geo.Candidate, error) {
	var data struct {
		Candidates []geo.Candidate `json:"candidates"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/geocode/search?q="+url.QueryEscape(query), nil, &data); err != nil {
		return nil, err
	}
	return data.Candidates, nil
}

func (c *Client) ReverseGeocode(ctx context.Context, at models.Coordinates) (geo.Candidate, error) {
	q := url.Values{}
	q.Set("lng", strconv.FormatFloat(at.Lng(), 'f', -1, 64))
	q.Set("lat", strconv.FormatFloat(at.Lat(), 'f', -1, 64))

	var data struct {
		Candidate geo.Candidate `json:"candidate"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/geocode/reverse?"+q.Encode(), nil, &data); err != nil {
		return geo.Candidate{}, err
	}
	return data.Candidate, nil
}

// SaveAddress creates d when it has no id and updates it otherwise. The
// server derives the address text from the coordinates in both cases.
func (c *Client) SaveAddress(ctx context.Context, d locator.Draft) (*models.Address, error) {
	if d.ID == "" {
		if d.Coordinates == nil {
			return nil, models.Invalid("coordinates", "coordinates are required")
		}
		return c.CreateAddress(ctx, CreateAddressRequest{
			HouseDetails: d.HouseDetails,
			Street:       d.Street,
			AddressType:  d.AddressType,
			Coordinates:  *d.Coordinates,
			Favorite:     d.Favorite,
		})
	}

	addressType := d.AddressType
	favorite := d.Favorite
	return c.UpdateAddress(ctx, d.ID, UpdateAddressRequest{
		HouseDetails: &d.HouseDetails,
		Street:       &d.Street,
		AddressType:  &addressType,
		Coordinates:  d.Coordinates,
		Favorite:     &favorite,
	})
}

var (
	_ locator.Searcher = (*Client)(nil)
	_ locator.Saver    = (*Client)(nil)
)
