package source

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

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/staffmatch/internal/domain/model"
	"github.com/okian/staffmatch/internal/domain/types"
	"github.com/okian/staffmatch/pkg/logger"
	"github.com/okian/staffmatch/pkg/metrics"
)

const (
	defaultTimeout         = 5 * time.Second
	defaultMaxRetries      = 2
	defaultInitialInterval = 100 * time.Millisecond
	maxBodyBytes           = 32 << 20
)

const (
	resourceRequirement         = "requirement"
	resourceConsultants         = "consultants"
	resourceProjectRequirements = "project_requirements"
)

// lookups are resources addressed by id, where a 404 means the id is unknown.
var lookups = map[string]bool{
	resourceRequirement:         true,
	resourceProjectRequirements: true,
}

// HTTPOption applies a configuration option to the HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithRetries sets how many times a failed request is retried and the first delay.
func WithRetries(maxRetries int, initial time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if maxRetries >= 0 {
			s.maxRetries = maxRetries
		}
		if initial > 0 {
			s.initialInterval = initial
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) HTTPOption {
	return func(s *HTTPSource) {
		if l != nil {
			s.logger = l
		}
	}
}

// HTTPSource reads from the scheduling and consultant REST APIs.
type HTTPSource struct {
	base            *url.URL
	client          *http.Client
	maxRetries      int
	initialInterval time.Duration
	logger          logger.Logger
}

// NewHTTPSource creates a REST-backed DataSource rooted at baseURL.
func NewHTTPSource(baseURL string, opts ...HTTPOption) (*HTTPSource, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid source base url %q", baseURL)
	}

	s := &HTTPSource{
		base:            u,
		client:          &http.Client{Timeout: defaultTimeout},
		maxRetries:      defaultMaxRetries,
		initialInterval: defaultInitialInterval,
		logger:          logger.Get().Named("source"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Requirement implements DataSource.
func (s *HTTPSource) Requirement(ctx context.Context, id string) (model.Requirement, error) {
	var r model.Requirement
	if err := s.get(ctx, resourceRequirement, "/api/scheduling/requirements/"+url.PathEscape(id), &r); err != nil {
		return model.Requirement{}, fmt.Errorf("requirement %s: %w", id, err)
	}
	if r.ID == "" {
		r.ID = id
	}
	return r, nil
}

// Consultants implements DataSource. The endpoint may return a bare array or
// an object with a consultants field. Elements are decoded one by one; an
// element that does not decode is returned with DecodeErr set so that only
// that candidate is excluded.
func (s *HTTPSource) Consultants(ctx context.Context) ([]model.Consultant, error) {
	var raw json.RawMessage
	if err := s.get(ctx, resourceConsultants, "/api/consultants", &raw); err != nil {
		return nil, fmt.Errorf("consultants: %w", err)
	}

	var elems []json.RawMessage
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("consultants: %w: decode: %v", types.ErrUpstreamUnavailable, err)
		}
	} else {
		var wrapped struct {
			Consultants []json.RawMessage `json:"consultants"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("consultants: %w: decode: %v", types.ErrUpstreamUnavailable, err)
		}
		elems = wrapped.Consultants
	}

	list := make([]model.Consultant, 0, len(elems))
	for i, elem := range elems {
		var c model.Consultant
		if err := json.Unmarshal(elem, &c); err != nil {
			list = append(list, undecodable(ctx, s.logger, i, consultantID(elem), err))
			continue
		}
		list = append(list, c)
	}
	return list, nil
}

// consultantID extracts the id of an element that failed full decoding.
func consultantID(elem json.RawMessage) string {
	var head struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(elem, &head); err != nil || head.ID == nil {
		return ""
	}
	return fmt.Sprint(head.ID)
}

func undecodable(ctx context.Context, l logger.Logger, index int, id string, err error) model.Consultant {
	l.Warn(ctx, "consultant profile could not be decoded",
		logger.Int("index", index),
		logger.String("consultant_id", id),
		logger.Error(err),
	)
	metrics.RecordErrorByComponent("source", "decode_error")
	return model.Consultant{ID: id, DecodeErr: err}
}

// ProjectRequirements implements ProjectLister.
func (s *HTTPSource) ProjectRequirements(ctx context.Context, projectID string) ([]model.Requirement, error) {
	var list []model.Requirement
	path := "/api/scheduling/projects/" + url.PathEscape(projectID) + "/requirements"
	if err := s.get(ctx, resourceProjectRequirements, path, &list); err != nil {
		return nil, fmt.Errorf("project %s requirements: %w", projectID, err)
	}
	return list, nil
}

// get fetches path and decodes the JSON body into out. Transport failures and
// 5xx responses are retried with exponential backoff; a 404 is returned at once.
// Only lookups by id turn a 404 into ErrNotFound.
func (s *HTTPSource) get(ctx context.Context, resource, path string, out any) error {
	start := time.Now()
	result := "ok"
	defer func() {
		metrics.RecordUpstreamRequest(resource, result, float64(time.Since(start).Milliseconds()))
	}()

	target := s.base.String() + path

	var body []byte
	op := func() error {
		b, err := s.fetch(ctx, resource, target)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.initialInterval
	var policy backoff.BackOff = backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.maxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		s.logger.Warn(ctx, "upstream request failed, retrying",
			logger.String("resource", resource),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		switch {
		case errors.Is(err, types.ErrNotFound):
			result = "not_found"
		default:
			result = "error"
			metrics.RecordErrorByComponent("source", "upstream_unavailable")
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		result = "error"
		return fmt.Errorf("%w: decode %s: %v", types.ErrUpstreamUnavailable, resource, err)
	}
	return nil
}

func (s *HTTPSource) fetch(ctx context.Context, resource, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %v", types.ErrUpstreamUnavailable, err))
	}
	req.Header.Set("Accept", "application/json")
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", types.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && lookups[resource]:
		return nil, backoff.Permanent(types.ErrNotFound)
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s endpoint returned 404", types.ErrUpstreamUnavailable, resource))
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", types.ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("%w: unexpected status %d", types.ErrUpstreamUnavailable, resp.StatusCode))
	}
	return body, nil
}
