package relay

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

	"ledgerlink/internal/domain"
)

// ErrNotFound is returned when the relay answers 404, for example for an
// identity that never registered.
var ErrNotFound = errors.New("relay: not found")

// HTTP is a RelayClient speaking to a relay at Base.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a client for base. A nil hc selects http.DefaultClient.
func NewHTTP(base string, hc *http.Client) *HTTP {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

func (c *HTTP) RegisterMember(ctx context.Context, rec domain.MemberRecord) error {
	return c.post(ctx, "/members", nil, rec, nil)
}

func (c *HTTP) FetchMember(ctx context.Context, id domain.HoldingIdentity) (domain.MemberRecord, error) {
	var out domain.MemberRecord
	if err := c.getJSON(ctx, "/members", identityQuery(id), &out); err != nil {
		return domain.MemberRecord{}, err
	}
	return out, nil
}

func (c *HTTP) SendEnvelope(ctx context.Context, env domain.Envelope) error {
	return c.post(ctx, "/mailbox", identityQuery(env.To), env, nil)
}

func (c *HTTP) FetchEnvelopes(ctx context.Context, id domain.HoldingIdentity, limit int) ([]domain.Envelope, error) {
	q := identityQuery(id)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var envs []domain.Envelope
	if err := c.getJSON(ctx, "/mailbox", q, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

func (c *HTTP) AckEnvelopes(ctx context.Context, id domain.HoldingIdentity, count int) error {
	return c.post(ctx, "/mailbox/ack", identityQuery(id), ackRequest{Count: count}, nil)
}

type ackRequest struct {
	Count int `json:"count"`
}

func identityQuery(id domain.HoldingIdentity) url.Values {
	return url.Values{"name": {id.X500Name}, "group": {id.GroupID}}
}

func (c *HTTP) url(path string, q url.Values) string {
	u := c.Base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *HTTP) post(ctx context.Context, path string, q url.Values, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path, q), buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *HTTP) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path, q), nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *HTTP) do(req *http.Request, path string, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, req.Method, path)
	}
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay %s %s: %s: %s", strings.ToLower(req.Method), path, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ domain.RelayClient = (*HTTP)(nil)
