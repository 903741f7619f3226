package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseSizeBytes = 2 << 20

var _ Store = (*UpstashRunStore)(nil)

type UpstashRedisConfig struct {
	URL       string        `envconfig:"URL" required:"true"`
	Token     string        `envconfig:"TOKEN" required:"true"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" default:"sim:run:"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"10s"`
	// TTL expires records; zero keeps them forever.
	TTL time.Duration `envconfig:"TTL" default:"168h"`
}

// UpstashOption customizes UpstashRunStore.
type UpstashOption func(*UpstashRunStore)

func WithHTTPClient(client *http.Client) UpstashOption {
	return func(s *UpstashRunStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRunStore keeps one JSON document per run in Upstash Redis, reached
// through its REST endpoint.
type UpstashRunStore struct {
	baseURL    string
	token      string
	prefix     string
	ttl        time.Duration
	httpClient *http.Client
}

type upstashReply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashRunStore(cfg UpstashRedisConfig, opts ...UpstashOption) (*UpstashRunStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid upstash redis url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("upstash ttl must be >= 0")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "sim:run:"
	}

	store := &UpstashRunStore{
		baseURL:    baseURL,
		token:      token,
		prefix:     prefix,
		ttl:        cfg.TTL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *UpstashRunStore) Save(ctx context.Context, rec *RunRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now().UTC()
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", rec.RunID, err)
	}

	cmd := []any{"SET", s.prefix + rec.RunID, string(doc)}
	if ms := s.ttl.Milliseconds(); ms > 0 {
		cmd = append(cmd, "PX", ms)
	}
	if _, err := s.do(ctx, cmd...); err != nil {
		return fmt.Errorf("save run %s: %w", rec.RunID, err)
	}
	return nil
}

func (s *UpstashRunStore) Load(ctx context.Context, runID string) (*RunRecord, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, ErrInvalidRun
	}

	result, err := s.do(ctx, "GET", s.prefix+runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrRunNotFound
	}

	// GET returns the stored document as a JSON string.
	var doc string
	if err := json.Unmarshal(result, &doc); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	rec := new(RunRecord)
	if err := json.Unmarshal([]byte(doc), rec); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *UpstashRunStore) Delete(ctx context.Context, runID string) error {
	if strings.TrimSpace(runID) == "" {
		return ErrInvalidRun
	}
	if _, err := s.do(ctx, "DEL", s.prefix+runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}

// do sends one Redis command as a JSON array and returns its raw result.
func (s *UpstashRunStore) do(ctx context.Context, cmd ...any) (json.RawMessage, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, err
	}

	var reply upstashReply
	if err := json.Unmarshal(raw, &reply); err != nil && resp.StatusCode < http.StatusMultipleChoices {
		return nil, fmt.Errorf("decode upstash reply: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		if reply.Error != "" {
			return nil, fmt.Errorf("upstash status %d: %s", resp.StatusCode, reply.Error)
		}
		return nil, fmt.Errorf("upstash status %d", resp.StatusCode)
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return bytes.TrimSpace(reply.Result), nil
}
