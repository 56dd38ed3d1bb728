package taxonomy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"promptbuilder/internal/gateway/settings"
	model "promptbuilder/internal/taxonomy"
)

const maxBodyBytes = 16 << 20

// EndpointResolver yields the current sheet endpoint. settings.Service
// satisfies it.
type EndpointResolver interface {
	Resolve() (settings.Endpoint, error)
}

// SheetStore talks to the spreadsheet web app: GET returns every row, POST
// with action=saveTaxonomy replaces them.
type SheetStore struct {
	resolver EndpointResolver
	client   *http.Client
	log      *zap.Logger
}

func NewSheetStore(resolver EndpointResolver, client *http.Client, log *zap.Logger) *SheetStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SheetStore{resolver: resolver, client: client, log: log}
}

type envelope struct {
	Items   []model.WireItem `json:"items"`
	Error   string           `json:"error"`
	Success *bool            `json:"success,omitempty"`
}

func (s *SheetStore) endpoint() (string, error) {
	if s == nil || s.resolver == nil {
		return "", fmt.Errorf("store is nil")
	}
	ep, err := s.resolver.Resolve()
	if err != nil {
		return "", err
	}
	u, err := url.Parse(ep.URL)
	if err != nil {
		return "", fmt.Errorf("parse taxonomy url: %w", err)
	}
	q := u.Query()
	q.Set("key", ep.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *SheetStore) Load(ctx context.Context) (model.Data, error) {
	target, err := s.endpoint()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build load request: %w", err)
	}
	env, err := s.do(req)
	if err != nil {
		return nil, err
	}
	items := make([]model.Item, 0, len(env.Items))
	for _, w := range env.Items {
		items = append(items, w.Item())
	}
	s.log.Debug("taxonomy store: loaded", zap.Int("items", len(items)))
	return model.Group(items), nil
}

func (s *SheetStore) Save(ctx context.Context, items []model.Item) error {
	target, err := s.endpoint()
	if err != nil {
		return err
	}
	raw, err := model.EncodeItems(items)
	if err != nil {
		return err
	}
	form := url.Values{}
	form.Set("action", "saveTaxonomy")
	form.Set("items", string(raw))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	if _, err := s.do(req); err != nil {
		return err
	}
	s.log.Info("taxonomy store: saved", zap.Int("items", len(items)))
	return nil
}

func (s *SheetStore) do(req *http.Request) (envelope, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return envelope{}, unreachable(req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return envelope{}, unreachable(req.Method, req.URL, fmt.Errorf("read response: %w", err))
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	env, decodeErr := decodeEnvelope(body)
	if !ok {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)
		}
		return envelope{}, &RemoteError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return envelope{}, decodeErr
	}
	if env.Error != "" {
		return envelope{}, &RemoteError{Status: resp.StatusCode, Message: env.Error}
	}
	return env, nil
}

// decodeEnvelope accepts a bare JSON object or one wrapped in a JSONP
// callback such as cb({...}); .
func decodeEnvelope(body []byte) (envelope, error) {
	raw := stripJSONP(bytes.TrimSpace(body))
	var env envelope
	if len(raw) == 0 {
		return env, ErrMalformedResponse
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return env, nil
}

func stripJSONP(b []byte) []byte {
	if len(b) == 0 || b[0] == '{' || b[0] == '[' {
		return b
	}
	open := bytes.IndexByte(b, '(')
	end := bytes.LastIndexByte(b, ')')
	if open <= 0 || end <= open {
		return b
	}
	return bytes.TrimSpace(b[open+1 : end])
}
