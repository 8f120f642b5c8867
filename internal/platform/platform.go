// Package platform contains the per-source search adapters. Each adapter
// owns its upstream's pagination semantics and maps the upstream payload
// into the canonical creator record at the boundary, so the rest of the
// engine never sees raw provider JSON.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/creatorpulse/discovery/internal/domain"
)

// ErrUpstream marks transport or auth failures against the provider API.
// The controller treats it as terminal for the job; an empty result page is
// never an error.
var ErrUpstream = errors.New("upstream search request failed")

// ErrUnknownPlatform is returned by the registry for unconfigured platforms.
var ErrUnknownPlatform = errors.New("unknown platform")

// Platform names accepted by the registry.
const (
	PlatformTikTok    = "tiktok"
	PlatformInstagram = "instagram"
	PlatformYouTube   = "youtube"
)

// SearchParams carries the job's search inputs. Exactly one search mode is
// used per job: a keyword set or a single target handle for similar-creator
// lookups.
type SearchParams struct {
	Keywords     []string
	TargetHandle string
	PerPage      int
}

// Validate rejects parameter sets with neither keywords nor a handle.
func (p SearchParams) Validate() error {
	if len(p.Keywords) == 0 && p.TargetHandle == "" {
		return fmt.Errorf("%w: keywords or target handle required", domain.ErrInvalidJobParams)
	}
	return nil
}

// Query joins the keyword list into a single upstream query term.
func (p SearchParams) Query() string {
	return strings.Join(p.Keywords, " ")
}

// PerPageOr returns the requested page size, falling back to the adapter
// default when the caller did not set one.
func (p SearchParams) PerPageOr(fallback int) int {
	if p.PerPage > 0 {
		return p.PerPage
	}
	return fallback
}

// Page is one page of canonical records plus the continuation token for the
// next upstream call. A nil NextCursor means the upstream is exhausted.
type Page struct {
	Records    []domain.CreatorRecord
	NextCursor *string
}

// Adapter is the per-source search contract.
type Adapter interface {
	Name() string
	Search(ctx context.Context, params SearchParams, cursor *string) (*Page, error)
}

// Config holds per-adapter settings. Engine knobs are explicit construction
// inputs, never ambient globals, so tests can vary them per run.
type Config struct {
	BaseURL          string
	APIKey           string
	RateLimitRPS     float64
	EnrichmentFanout int
	PageSize         int
	Timeout          time.Duration
}

const (
	defaultRateLimitRPS     = 5
	defaultEnrichmentFanout = 5
	defaultPageSize         = 20
	defaultTimeout          = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = defaultRateLimitRPS
	}
	if c.EnrichmentFanout <= 0 {
		c.EnrichmentFanout = defaultEnrichmentFanout
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Registry resolves a platform name to its configured adapter.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the given adapters, keyed by Name().
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

// Get returns the adapter for a platform.
func (r *Registry) Get(platform string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	return a, nil
}

// Names lists the registered platforms in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
