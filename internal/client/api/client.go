package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/assettrack/internal/common"
	"github.com/dmitrijs2005/assettrack/internal/logging"
	"github.com/dmitrijs2005/assettrack/internal/metrics"
	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// TokenSource yields the current auth token; "" means logged out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource
	// OnUnauthorized runs after a protected call is rejected with 401/403.
	OnUnauthorized func(ctx context.Context)
	HTTPClient     *http.Client
	Logger         logging.Logger
	Metrics        *metrics.Metrics
}

type Client struct {
	baseURL        string
	timeout        time.Duration
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
	http           *http.Client
	log            logging.Logger
	metrics        *metrics.Metrics
}

func New(opts Options) (*Client, error) {
	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", opts.BaseURL, err)
	}
	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		timeout:        opts.Timeout,
		tokens:         opts.Tokens,
		onUnauthorized: opts.OnUnauthorized,
		http:           opts.HTTPClient,
		log:            opts.Logger,
		metrics:        opts.Metrics,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.log == nil {
		c.log = logging.Nop{}
	}
	return c, nil
}

// SetOnUnauthorized replaces the session-expired hook.
func (c *Client) SetOnUnauthorized(fn func(ctx context.Context)) {
	c.onUnauthorized = fn
}

type request struct {
	endpoint    string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	protected   bool
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do sends r and reads the whole body. Transport failures map to
// ErrUnavailable and 401/403 on protected calls to ErrUnauthorized; every
// other status is left to the caller.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", r.endpoint, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(common.RequestIDHeaderName, reqID)
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.protected && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			req.Header.Set(common.AuthorizationHeaderName, common.TokenScheme+" "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(r.endpoint, "error", time.Since(start).Seconds())
		c.log.Warn(ctx, "request failed", "endpoint", r.endpoint, "request_id", reqID, "error", err)
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	c.metrics.ObserveRequest(r.endpoint, strconv.Itoa(resp.StatusCode/100)+"xx", time.Since(start).Seconds())
	c.log.Debug(ctx, "request done", "endpoint", r.endpoint, "request_id", reqID,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if r.protected && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		if c.onUnauthorized != nil {
			c.onUnauthorized(context.WithoutCancel(ctx))
		}
		return nil, ErrUnauthorized
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

func (c *Client) doJSON(ctx context.Context, r request, in any) (*response, error) {
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", r.endpoint, err)
		}
		r.body = bytes.NewReader(b)
		r.contentType = "application/json"
	}
	return c.do(ctx, r)
}

func decode(r *response, out any) error {
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps a non-2xx status to an error. 404 becomes ErrNotFound.
func statusError(r *response) error {
	if r.status == http.StatusNotFound {
		return ErrNotFound
	}
	return &StatusError{Code: r.status, Message: serverMessage(r.body)}
}

func success(r *response) bool {
	return r.status >= 200 && r.status < 300
}

// serverMessage digs a human message out of an error body: "error",
// "message" or "detail", else the first field error of a validation map.
func serverMessage(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, k := range []string{"error", "message", "detail"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	for _, v := range m {
		switch v := v.(type) {
		case string:
			return v
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

// Login exchanges credentials for a token. Bad credentials (400/401) map to
// ErrInvalidCredentials; a response without a token to ErrInvalidToken.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	resp, err := c.doJSON(ctx, request{
		endpoint: "login", method: http.MethodPost, path: "/accounts/login/",
	}, LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	switch {
	case resp.status == http.StatusBadRequest || resp.status == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case !success(resp):
		return nil, statusError(resp)
	}

	var out LoginResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, ErrInvalidToken
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	resp, err := c.doJSON(ctx, request{
		endpoint: "register", method: http.MethodPost, path: "/accounts/register/",
	}, RegisterRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	if !success(resp) {
		return statusError(resp)
	}
	return nil
}

// LatestFile returns the most recently uploaded dataset, or ErrNoDataset.
func (c *Client) LatestFile(ctx context.Context) (*LatestFile, error) {
	resp, err := c.do(ctx, request{
		endpoint: "latest-file", method: http.MethodGet, path: "/files/latest-file/", protected: true,
	})
	if err != nil {
		return nil, err
	}
	switch {
	case resp.status == http.StatusNoContent || resp.status == http.StatusNotFound:
		return nil, ErrNoDataset
	case !success(resp):
		return nil, statusError(resp)
	}

	// Some backend versions answer with the file record instead.
	var out struct {
		LatestFile
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	lf := out.LatestFile
	if lf.ID == 0 {
		lf = LatestFile{ID: out.ID, Name: out.Name}
	}
	if lf.ID == 0 {
		return nil, ErrNoDataset
	}
	return &lf, nil
}

func (c *Client) Files(ctx context.Context) ([]FileInfo, error) {
	resp, err := c.do(ctx, request{
		endpoint: "get-files", method: http.MethodGet, path: "/files/get-files/", protected: true,
	})
	if err != nil {
		return nil, err
	}
	if !success(resp) {
		return nil, statusError(resp)
	}
	var out []FileInfo
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Upload sends the file at path as multipart field "file".
func (c *Client) Upload(ctx context.Context, path string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, request{
		endpoint: "upload-file", method: http.MethodPost, path: "/files/upload-file/",
		body: &buf, contentType: mw.FormDataContentType(), protected: true,
	})
	if err != nil {
		return nil, err
	}
	if !success(resp) {
		return nil, statusError(resp)
	}
	var out FileInfo
	if len(resp.body) > 0 {
		if err := decode(resp, &out); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// Export downloads dataset id as a spreadsheet attachment.
func (c *Client) Export(ctx context.Context, id int64) (*Attachment, error) {
	resp, err := c.do(ctx, request{
		endpoint: "export", method: http.MethodGet,
		path: "/export/" + strconv.FormatInt(id, 10) + "/", protected: true,
	})
	if err != nil {
		return nil, err
	}
	if !success(resp) {
		return nil, statusError(resp)
	}
	return &Attachment{
		Filename:    attachmentName(resp.header.Get("Content-Disposition")),
		ContentType: resp.header.Get("Content-Type"),
		Body:        resp.body,
	}, nil
}

const defaultExportName = "exported_file.xlsx"

func attachmentName(disposition string) string {
	if disposition == "" {
		return defaultExportName
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return defaultExportName
	}
	return params["filename"]
}

// Search looks up serial in dataset fileID. The backend may answer with an
// array, a single record, or an empty body; all become a slice.
func (c *Client) Search(ctx context.Context, serial string, fileID int64) ([]Match, error) {
	q := url.Values{}
	q.Set("scanned_pos_serial_number", serial)
	q.Set("latest_file_id", strconv.FormatInt(fileID, 10))

	resp, err := c.do(ctx, request{
		endpoint: "search", method: http.MethodGet, path: "/db/search/", query: q, protected: true,
	})
	if err != nil {
		return nil, err
	}
	switch {
	case resp.status == http.StatusNotFound || resp.status == http.StatusNoContent:
		return nil, nil
	case !success(resp):
		return nil, statusError(resp)
	}
	return decodeMatches(resp.body)
}

func decodeMatches(body []byte) ([]Match, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	if body[0] == '[' {
		var out []Match
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decode matches: %w", err)
		}
		return out, nil
	}
	var one Match
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	if one.SerialNumber == "" {
		return nil, nil
	}
	return []Match{one}, nil
}

// Update writes scan results back and returns the server's message.
func (c *Client) Update(ctx context.Context, in UpdateRequest) (string, error) {
	resp, err := c.doJSON(ctx, request{
		endpoint: "update", method: http.MethodPatch, path: "/db/update/", protected: true,
	}, in)
	if err != nil {
		return "", err
	}
	if !success(resp) {
		return "", statusError(resp)
	}
	var out messageResponse
	if len(resp.body) > 0 {
		_ = decode(resp, &out)
	}
	return out.Message, nil
}

const (
	conditionsPath = "/accounts/user/technical-conditions/"
	warehousesPath = "/accounts/user/whs-names/"
)

func (c *Client) Conditions(ctx context.Context) ([]Condition, error) {
	var out []Condition
	return out, c.list(ctx, "conditions", conditionsPath, &out)
}

func (c *Client) AddCondition(ctx context.Context, name string) (*Condition, error) {
	var out Condition
	if err := c.create(ctx, "conditions", conditionsPath, map[string]string{"technical_condition": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCondition(ctx context.Context, id int64) error {
	return c.remove(ctx, "conditions", conditionsPath, id)
}

func (c *Client) Warehouses(ctx context.Context) ([]Warehouse, error) {
	var out []Warehouse
	return out, c.list(ctx, "warehouses", warehousesPath, &out)
}

func (c *Client) AddWarehouse(ctx context.Context, name string) (*Warehouse, error) {
	var out Warehouse
	if err := c.create(ctx, "warehouses", warehousesPath, map[string]string{"whs_name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteWarehouse(ctx context.Context, id int64) error {
	return c.remove(ctx, "warehouses", warehousesPath, id)
}

func (c *Client) list(ctx context.Context, endpoint, path string, out any) error {
	resp, err := c.do(ctx, request{endpoint: endpoint, method: http.MethodGet, path: path, protected: true})
	if err != nil {
		return err
	}
	if !success(resp) {
		return statusError(resp)
	}
	return decode(resp, out)
}

func (c *Client) create(ctx context.Context, endpoint, path string, in, out any) error {
	resp, err := c.doJSON(ctx, request{endpoint: endpoint, method: http.MethodPost, path: path, protected: true}, in)
	if err != nil {
		return err
	}
	if !success(resp) {
		return statusError(resp)
	}
	return decode(resp, out)
}

func (c *Client) remove(ctx context.Context, endpoint, path string, id int64) error {
	resp, err := c.do(ctx, request{
		endpoint: endpoint, method: http.MethodDelete,
		path: path + strconv.FormatInt(id, 10) + "/", protected: true,
	})
	if err != nil {
		return err
	}
	if !success(resp) {
		return statusError(resp)
	}
	return nil
}

// RouteDateLayout is the date format the routing endpoints use.
const RouteDateLayout = "2006-01-02"

// Routes returns the routing plan for date. A non-empty user narrows it to
// that transport company; staff accounts pass "".
func (c *Client) Routes(ctx context.Context, date time.Time, user string) ([]Route, error) {
	q := url.Values{}
	q.Set("date", date.Format(RouteDateLayout))
	if user != "" {
		q.Set("user", user)
	}
	resp, err := c.do(ctx, request{
		endpoint: "routing-get", method: http.MethodGet, path: "/routing/get-data/", query: q, protected: true,
	})
	if err != nil {
		return nil, err
	}
	if !success(resp) {
		return nil, statusError(resp)
	}
	var out []Route
	if len(bytes.TrimSpace(resp.body)) == 0 {
		return out, nil
	}
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRoutes writes edited route fields keyed by record id and returns
// the server's message.
func (c *Client) UpdateRoutes(ctx context.Context, updates map[int64]RouteUpdate) (string, error) {
	in := make(map[string]RouteUpdate, len(updates))
	for id, u := range updates {
		in[strconv.FormatInt(id, 10)] = u
	}
	resp, err := c.doJSON(ctx, request{
		endpoint: "routing-update", method: http.MethodPatch, path: "/routing/update-data/", protected: true,
	}, in)
	if err != nil {
		return "", err
	}
	if !success(resp) {
		return "", statusError(resp)
	}
	var out messageResponse
	if len(resp.body) > 0 {
		_ = decode(resp, &out)
	}
	return out.Message, nil
}
