package emerald

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nerrad567/emerald-hwsd/internal/hws"
)

// REST endpoints, relative to the configured base URL.
const (
	pathSignIn       = "/customer/sign-in"
	pathPropertyList = "/customer/property/list"
)

// codeOK is the success value of the code field in API bodies.
const codeOK = 200

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 8 << 20

type signInRequest struct {
	AppVersion      string `json:"app_version"`
	DeviceName      string `json:"device_name"`
	DeviceOSVersion string `json:"device_os_version"`
	Email           string `json:"email"`
	Password        string `json:"password"`
}

type signInResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

type property struct {
	ID       string       `json:"id"`
	HeatPump []hws.Status `json:"heat_pump"`
}

type propertyListResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Info    struct {
		Property       []property `json:"property"`
		SharedProperty []property `json:"shared_property"`
	} `json:"info"`
}

// api is the REST half of a session.
type api struct {
	baseURL string
	http    *http.Client
	token   string
}

// signIn exchanges credentials for a session token.
func (a *api) signIn(ctx context.Context, req signInRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding sign-in request: %w", err)
	}

	var resp signInResponse
	status, err := a.do(ctx, http.MethodPost, pathSignIn, body, &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || resp.Code != codeOK || resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = fmt.Sprintf("http %d, code %d", status, resp.Code)
		}
		return "", fmt.Errorf("%w: %s", ErrAuthFailed, msg)
	}

	a.token = resp.Token
	return resp.Token, nil
}

// heatPumps fetches every heat pump visible to the account, owned and shared,
// in API order.
func (a *api) heatPumps(ctx context.Context) ([]hws.Status, error) {
	var resp propertyListResponse
	status, err := a.do(ctx, http.MethodGet, pathPropertyList, nil, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: token rejected", ErrAuthFailed)
	}
	if status != http.StatusOK || resp.Code != codeOK {
		return nil, fmt.Errorf("%w: property list: http %d, code %d %s", ErrAPI, status, resp.Code, resp.Message)
	}

	var pumps []hws.Status
	for _, group := range [][]property{resp.Info.Property, resp.Info.SharedProperty} {
		for _, p := range group {
			for _, hp := range p.HeatPump {
				if hp == nil {
					continue
				}
				if _, ok := hp["property_id"]; !ok && p.ID != "" {
					hp["property_id"] = p.ID
				}
				pumps = append(pumps, hp)
			}
		}
	}
	return pumps, nil
}

// do performs one request and decodes a JSON body into out. Non-2xx statuses
// are returned, not treated as errors, so callers can map them.
func (a *api) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	url := strings.TrimRight(a.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading %s response: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(out); err != nil && resp.StatusCode == http.StatusOK {
			return resp.StatusCode, fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}
