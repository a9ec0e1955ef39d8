// Package unified coordinates the per-vendor platform clients behind one
// API: parallel fan-out for reads, targeted dispatch for mutations, and
// cross-platform aggregation. One vendor's failure never aborts the others;
// it is recorded in the result's errors map instead.
package unified

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/marketing-hub/internal/pkg/logger"
	"github.com/ignite/marketing-hub/internal/platform"

	"github.com/google/uuid"
)

// Client routes requests to registered platform clients. It owns the
// connection registry exclusively; platform clients own their transport,
// limiter and auth state.
type Client struct {
	mu        sync.RWMutex
	clients   map[platform.Platform]platform.Client
	connected map[platform.Platform]bool
}

// New creates a unified client over the given platform clients.
func New(clients ...platform.Client) *Client {
	c := &Client{
		clients:   make(map[platform.Platform]platform.Client, len(clients)),
		connected: make(map[platform.Platform]bool, len(clients)),
	}
	for _, pc := range clients {
		c.clients[pc.Platform()] = pc
	}
	return c
}

// Register adds or replaces a platform client. A replaced platform starts
// disconnected.
func (c *Client) Register(pc platform.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[pc.Platform()] = pc
	c.connected[pc.Platform()] = false
}

// Connect connects one platform and records the outcome in the registry.
func (c *Client) Connect(ctx context.Context, p platform.Platform) error {
	c.mu.RLock()
	pc, ok := c.clients[p]
	c.mu.RUnlock()
	if !ok {
		return &platform.APIError{Platform: p, Body: "platform not registered"}
	}

	if err := pc.Connect(ctx); err != nil {
		c.setConnected(p, false)
		return err
	}
	c.setConnected(p, true)
	return nil
}

// ConnectAll connects every registered platform in parallel. Failures are
// logged and returned per platform; they never abort sibling connections.
func (c *Client) ConnectAll(ctx context.Context) map[platform.Platform]error {
	c.mu.RLock()
	targets := make([]platform.Platform, 0, len(c.clients))
	for p := range c.clients {
		targets = append(targets, p)
	}
	c.mu.RUnlock()

	type outcome struct {
		p   platform.Platform
		err error
	}
	results := make(chan outcome, len(targets))
	var wg sync.WaitGroup
	for _, p := range targets {
		wg.Add(1)
		go func(p platform.Platform) {
			defer wg.Done()
			results <- outcome{p: p, err: c.Connect(ctx, p)}
		}(p)
	}
	wg.Wait()
	close(results)

	errs := map[platform.Platform]error{}
	for out := range results {
		if out.err != nil {
			logger.Warn("platform connection failed", "platform", out.p.String(), "error", out.err.Error())
			errs[out.p] = out.err
		} else {
			logger.Info("platform connected", "platform", out.p.String())
		}
	}
	return errs
}

// Disconnect disconnects one platform and clears its registry entry.
func (c *Client) Disconnect(ctx context.Context, p platform.Platform) error {
	c.mu.RLock()
	pc, ok := c.clients[p]
	c.mu.RUnlock()
	if !ok {
		return &platform.APIError{Platform: p, Body: "platform not registered"}
	}
	c.setConnected(p, false)
	return pc.Disconnect(ctx)
}

// DisconnectAll disconnects every registered platform.
func (c *Client) DisconnectAll(ctx context.Context) {
	c.mu.RLock()
	targets := make([]platform.Platform, 0, len(c.clients))
	for p := range c.clients {
		targets = append(targets, p)
	}
	c.mu.RUnlock()

	for _, p := range targets {
		if err := c.Disconnect(ctx, p); err != nil {
			logger.Warn("platform disconnect failed", "platform", p.String(), "error", err.Error())
		}
	}
}

func (c *Client) setConnected(p platform.Platform, v bool) {
	c.mu.Lock()
	c.connected[p] = v
	c.mu.Unlock()
}

// IsConnected reports whether a platform is currently connected.
func (c *Client) IsConnected(p platform.Platform) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected[p]
}

// ConnectedPlatforms lists connected platforms in canonical order.
func (c *Client) ConnectedPlatforms() []platform.Platform {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []platform.Platform{}
	for _, p := range platform.Platforms() {
		if c.connected[p] {
			out = append(out, p)
		}
	}
	return out
}

// resolveTargets expands a platform selection into dispatch targets. An
// empty selection or "all" means every connected platform; explicitly named
// but unconnected platforms are reported in notReady.
func (c *Client) resolveTargets(requested []platform.Platform) (targets []platform.Platform, notReady []platform.Platform) {
	all := len(requested) == 0
	for _, p := range requested {
		if p == platform.All {
			all = true
		}
	}
	if all {
		return c.ConnectedPlatforms(), nil
	}

	seen := map[platform.Platform]bool{}
	for _, p := range requested {
		if seen[p] {
			continue
		}
		seen[p] = true
		if c.IsConnected(p) {
			targets = append(targets, p)
		} else {
			notReady = append(notReady, p)
		}
	}
	return targets, notReady
}

// FetchResult is the envelope for a cross-platform performance query.
// Results and Errors are disjoint and together cover every dispatched
// platform.
type FetchResult struct {
	RequestID string                                            `json:"request_id"`
	Query     Query                                             `json:"query"`
	Results   map[platform.Platform]*platform.PerformanceResult `json:"results"`
	Errors    map[platform.Platform]string                      `json:"errors,omitempty"`
	Summary   Summary                                           `json:"summary"`
}

// Query echoes the request parameters back to the caller.
type Query struct {
	CampaignIDs []string            `json:"campaign_ids"`
	StartDate   string              `json:"start_date"`
	EndDate     string              `json:"end_date"`
	Metrics     []string            `json:"metrics"`
	Platforms   []platform.Platform `json:"platforms"`
}

// FetchCampaignPerformance fans the query out to every target platform in
// parallel and aggregates the per-platform results. A platform's failure is
// recorded in Errors and does not affect the others.
func (c *Client) FetchCampaignPerformance(ctx context.Context, campaignIDs []string, start, end time.Time, metrics []string, platforms []platform.Platform) (*FetchResult, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("invalid date range: end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	if len(metrics) == 0 {
		metrics = []string{"impressions", "clicks", "conversions", "cost"}
	}

	targets, notReady := c.resolveTargets(platforms)

	result := &FetchResult{
		RequestID: uuid.NewString(),
		Query: Query{
			CampaignIDs: campaignIDs,
			StartDate:   start.Format("2006-01-02"),
			EndDate:     end.Format("2006-01-02"),
			Metrics:     metrics,
			Platforms:   targets,
		},
		Results: map[platform.Platform]*platform.PerformanceResult{},
		Errors:  map[platform.Platform]string{},
	}
	for _, p := range notReady {
		result.Errors[p] = "platform not connected"
	}

	type outcome struct {
		p    platform.Platform
		perf *platform.PerformanceResult
		err  error
	}
	outcomes := make(chan outcome, len(targets))
	var wg sync.WaitGroup
	for _, p := range targets {
		c.mu.RLock()
		pc := c.clients[p]
		c.mu.RUnlock()

		wg.Add(1)
		go func(p platform.Platform, pc platform.Client) {
			defer wg.Done()
			perf, err := pc.FetchCampaignPerformance(ctx, campaignIDs, start, end, metrics)
			outcomes <- outcome{p: p, perf: perf, err: err}
		}(p, pc)
	}
	wg.Wait()
	close(outcomes)

	for out := range outcomes {
		if out.err != nil {
			logger.Warn("performance fetch failed", "platform", out.p.String(), "error", out.err.Error())
			result.Errors[out.p] = out.err.Error()
			continue
		}
		result.Results[out.p] = out.perf
	}

	result.Summary = buildSummary(result.Results)
	return result, nil
}

// UpdateCampaignBudget applies a budget change on one platform. Read-only
// platforms answer with a not_supported envelope from the client itself.
func (c *Client) UpdateCampaignBudget(ctx context.Context, p platform.Platform, campaignID string, newBudget float64, budgetType string) (*platform.MutationResult, error) {
	c.mu.RLock()
	pc, ok := c.clients[p]
	c.mu.RUnlock()
	if !ok || !c.IsConnected(p) {
		return nil, &platform.APIError{Platform: p, Body: "platform not connected"}
	}
	return pc.UpdateCampaignBudget(ctx, campaignID, newBudget, budgetType)
}

// MutationBatch holds the per-target outcomes of a batch mutation, keyed
// "platform:campaign_id".
type MutationBatch struct {
	Results map[string]*platform.MutationResult `json:"results"`
	Errors  map[string]string                   `json:"errors,omitempty"`
}

// PauseCampaigns pauses every (platform, campaign) pair concurrently.
// Read-only platforms are excluded from dispatch.
func (c *Client) PauseCampaigns(ctx context.Context, campaignIDs []string, platforms []platform.Platform) *MutationBatch {
	return c.mutateCampaigns(ctx, campaignIDs, platforms, platform.Client.PauseCampaign)
}

// StartCampaigns starts every (platform, campaign) pair concurrently.
// Read-only platforms are excluded from dispatch.
func (c *Client) StartCampaigns(ctx context.Context, campaignIDs []string, platforms []platform.Platform) *MutationBatch {
	return c.mutateCampaigns(ctx, campaignIDs, platforms, platform.Client.StartCampaign)
}

func (c *Client) mutateCampaigns(ctx context.Context, campaignIDs []string, platforms []platform.Platform, op func(platform.Client, context.Context, string) (*platform.MutationResult, error)) *MutationBatch {
	batch := &MutationBatch{
		Results: map[string]*platform.MutationResult{},
		Errors:  map[string]string{},
	}

	targets, notReady := c.resolveTargets(platforms)
	for _, p := range notReady {
		for _, id := range campaignIDs {
			batch.Errors[key(p, id)] = "platform not connected"
		}
	}

	type outcome struct {
		key    string
		result *platform.MutationResult
		err    error
	}
	var pairs int
	for _, p := range targets {
		c.mu.RLock()
		pc := c.clients[p]
		c.mu.RUnlock()
		if pc.ReadOnly() {
			continue
		}
		pairs += len(campaignIDs)
	}

	outcomes := make(chan outcome, pairs)
	var wg sync.WaitGroup
	for _, p := range targets {
		c.mu.RLock()
		pc := c.clients[p]
		c.mu.RUnlock()
		if pc.ReadOnly() {
			continue
		}
		for _, id := range campaignIDs {
			wg.Add(1)
			go func(p platform.Platform, pc platform.Client, id string) {
				defer wg.Done()
				result, err := op(pc, ctx, id)
				outcomes <- outcome{key: key(p, id), result: result, err: err}
			}(p, pc, id)
		}
	}
	wg.Wait()
	close(outcomes)

	for out := range outcomes {
		if out.err != nil {
			batch.Errors[out.key] = out.err.Error()
			continue
		}
		batch.Results[out.key] = out.result
	}
	return batch
}

func key(p platform.Platform, campaignID string) string {
	return p.String() + ":" + campaignID
}

// AudienceReport is the envelope for a cross-platform audience query.
type AudienceReport struct {
	Results  map[platform.Platform]*platform.AudienceInsights `json:"results"`
	Errors   map[platform.Platform]string                     `json:"errors,omitempty"`
	Combined CombinedInsights                                 `json:"combined"`
}

// GetAudienceInsights fans out to every target platform and merges the
// per-platform insights.
func (c *Client) GetAudienceInsights(ctx context.Context, audienceID string, filters *platform.AudienceFilters, platforms []platform.Platform) *AudienceReport {
	report := &AudienceReport{
		Results: map[platform.Platform]*platform.AudienceInsights{},
		Errors:  map[platform.Platform]string{},
	}

	targets, notReady := c.resolveTargets(platforms)
	for _, p := range notReady {
		report.Errors[p] = "platform not connected"
	}

	type outcome struct {
		p        platform.Platform
		insights *platform.AudienceInsights
		err      error
	}
	outcomes := make(chan outcome, len(targets))
	var wg sync.WaitGroup
	for _, p := range targets {
		c.mu.RLock()
		pc := c.clients[p]
		c.mu.RUnlock()

		wg.Add(1)
		go func(p platform.Platform, pc platform.Client) {
			defer wg.Done()
			insights, err := pc.GetAudienceInsights(ctx, audienceID, filters)
			outcomes <- outcome{p: p, insights: insights, err: err}
		}(p, pc)
	}
	wg.Wait()
	close(outcomes)

	for out := range outcomes {
		if out.err != nil {
			logger.Warn("audience fetch failed", "platform", out.p.String(), "error", out.err.Error())
			report.Errors[out.p] = out.err.Error()
			continue
		}
		report.Results[out.p] = out.insights
	}

	report.Combined = combineAudienceInsights(report.Results)
	return report
}

// PlatformStatus is one platform's health snapshot.
type PlatformStatus struct {
	Connected        bool                 `json:"connected"`
	ReadOnly         bool                 `json:"read_only"`
	CredentialsValid bool                 `json:"credentials_valid"`
	RateLimit        platform.WindowUsage `json:"rate_limit"`
}

// GetPlatformStatus reports, per registered platform, the connection flag, a
// fresh credential probe and the rolling-window limiter occupancy. The probe
// runs only on connected platforms.
func (c *Client) GetPlatformStatus(ctx context.Context) map[platform.Platform]PlatformStatus {
	c.mu.RLock()
	clients := make(map[platform.Platform]platform.Client, len(c.clients))
	for p, pc := range c.clients {
		clients[p] = pc
	}
	c.mu.RUnlock()

	out := make(map[platform.Platform]PlatformStatus, len(clients))
	for p, pc := range clients {
		status := PlatformStatus{
			Connected: c.IsConnected(p),
			ReadOnly:  pc.ReadOnly(),
			RateLimit: pc.RateLimitUsage(),
		}
		if status.Connected {
			valid, err := pc.ValidateCredentials(ctx)
			if err != nil {
				logger.Warn("credential probe failed", "platform", p.String(), "error", err.Error())
			}
			status.CredentialsValid = valid
		}
		out[p] = status
	}
	return out
}

// ValidateCredentials probes the selected platforms and reports per-platform
// validity. Probe errors count as invalid.
func (c *Client) ValidateCredentials(ctx context.Context, platforms []platform.Platform) map[platform.Platform]bool {
	targets, notReady := c.resolveTargets(platforms)

	out := make(map[platform.Platform]bool, len(targets)+len(notReady))
	for _, p := range notReady {
		out[p] = false
	}
	for _, p := range targets {
		c.mu.RLock()
		pc := c.clients[p]
		c.mu.RUnlock()
		valid, err := pc.ValidateCredentials(ctx)
		out[p] = valid && err == nil
	}
	return out
}
