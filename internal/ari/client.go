// Package ari implements the Channel Event Adapter (C6): a REST action
// client plus an event-stream consumer against an ARI-style media-server
// control interface (SPEC_FULL.md §6).
package ari

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/oriontel/dialer-router/internal/domain"
)

// NoServicePrompt is the fixed media id played to callers on a closed
// queue, per §6's "Fixed media ids".
const NoServicePrompt = "sound:ss-noservice"

// OriginateParams describes a request to create a new channel.
type OriginateParams struct {
	Endpoint      string
	CallerID      string
	App           string
	AppArgs       []string
	TimeoutSecond int
}

// Client issues REST actions against the ARI-style control interface.
type Client struct {
	baseURL  string
	username string
	password string
	appName  string
	http     *http.Client
}

// NewClient builds a Client against baseURL (e.g. http://host:port/ari).
func NewClient(baseURL, username, password, appName string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		appName:  appName,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "failed to encode request body", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMediaError, "failed to build ARI request", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMediaError, "ARI request failed: "+path, err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, domain.NewError(domain.ErrMediaError, fmt.Sprintf("ARI %s %s returned %d", method, path, resp.StatusCode))
	}
	return resp, nil
}

// Answer answers a ringing channel.
func (c *Client) Answer(ctx context.Context, channelID string) error {
	resp, err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/answer", nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Hangup terminates a channel. It is the caller's responsibility not to
// call this twice on an already-torn-down channel (§4.5's entry path
// note); a MEDIA_ERROR here is logged and swallowed by callers per §7.
func (c *Client) Hangup(ctx context.Context, channelID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/channels/"+channelID, nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Play starts playback of mediaID on channelID and returns a playback id.
func (c *Client) Play(ctx context.Context, channelID, mediaID string) (string, error) {
	q := url.Values{"media": {mediaID}}
	resp, err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/play", q, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		ID string `json:"id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return out.ID, nil
}

// StartHold starts on-hold music (server default music class) on channelID.
func (c *Client) StartHold(ctx context.Context, channelID string) error {
	resp, err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/moh", nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// StopHold stops on-hold music on channelID.
func (c *Client) StopHold(ctx context.Context, channelID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/channels/"+channelID+"/moh", nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Originate requests a new channel toward params.Endpoint and returns its
// channel id.
func (c *Client) Originate(ctx context.Context, params OriginateParams) (string, error) {
	q := url.Values{
		"endpoint":    {params.Endpoint},
		"app":         {params.App},
		"callerId":    {params.CallerID},
		"timeout":     {fmt.Sprintf("%d", params.TimeoutSecond)},
		"appArgs":     {joinArgs(params.AppArgs)},
	}
	resp, err := c.do(ctx, http.MethodPost, "/channels", q, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.WrapError(domain.ErrMediaError, "failed to decode originate response", err)
	}
	return out.ID, nil
}

// CreateBridge creates a mixing bridge and returns its id.
func (c *Client) CreateBridge(ctx context.Context) (string, error) {
	q := url.Values{"type": {"mixing"}}
	resp, err := c.do(ctx, http.MethodPost, "/bridges", q, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.WrapError(domain.ErrMediaError, "failed to decode bridge response", err)
	}
	return out.ID, nil
}

// AddChannel adds channelID to bridgeID.
func (c *Client) AddChannel(ctx context.Context, bridgeID, channelID string) error {
	q := url.Values{"channel": {channelID}}
	resp, err := c.do(ctx, http.MethodPost, "/bridges/"+bridgeID+"/addChannel", q, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DestroyBridge tears down a bridge.
func (c *Client) DestroyBridge(ctx context.Context, bridgeID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/bridges/"+bridgeID, nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += ","
		}
		out += a
	}
	return out
}
