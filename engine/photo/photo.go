// Package photo picks a displayable portrait URL for a politician.
package photo

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/WessleyAI/polidossier/engine/oracle"
	"github.com/WessleyAI/polidossier/engine/prompt"
	"github.com/WessleyAI/polidossier/pkg/metrics"
)

// DefaultImage is served by the frontend and used whenever a candidate URL
// cannot be confirmed as an image.
const DefaultImage = "/images/default-profile.png"

// DefaultTimeout bounds a single HEAD check.
const DefaultTimeout = 10 * time.Second

// Validator confirms that a URL points at an image.
type Validator struct {
	client  *http.Client
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewValidator creates a Validator. A zero timeout uses DefaultTimeout.
func NewValidator(timeout time.Duration, m *metrics.Metrics, log *slog.Logger) *Validator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Validator{client: &http.Client{Timeout: timeout}, metrics: m, log: log}
}

// Validate returns candidate if a HEAD request answers with an image
// content type, otherwise DefaultImage. It never fails.
func (v *Validator) Validate(ctx context.Context, candidate string) string {
	ok := v.isImage(ctx, strings.TrimSpace(candidate))
	v.metrics.PhotoCheck(ok)
	if !ok {
		return DefaultImage
	}
	return strings.TrimSpace(candidate)
}

func (v *Validator) isImage(ctx context.Context, candidate string) bool {
	if candidate == "" {
		return false
	}
	u, err := url.Parse(candidate)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.log.Debug("photo candidate rejected", "url", candidate, "reason", "not an http url")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return false
	}
	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Debug("photo check failed", "url", candidate, "error", err)
		return false
	}
	resp.Body.Close()

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "image/") {
		v.log.Debug("photo candidate rejected", "url", candidate, "content_type", ct, "status", resp.StatusCode)
		return false
	}
	return true
}

// Resolver asks the oracle for a portrait URL and validates it.
type Resolver struct {
	gw        oracle.Gateway
	validator *Validator
	log       *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(gw oracle.Gateway, v *Validator, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{gw: gw, validator: v, log: log}
}

// Resolve returns a validated photo URL for name, or DefaultImage.
func (r *Resolver) Resolve(ctx context.Context, name string) string {
	raw, err := r.gw.Complete(ctx, prompt.SystemPhoto, prompt.Photo(name), false)
	if err != nil {
		r.log.Warn("photo lookup failed", "name", name, "error", err)
		return DefaultImage
	}
	return r.validator.Validate(ctx, raw)
}
