// Package dossier orchestrates identification and dossier lookups: it builds
// prompts, calls the oracle, validates replies, and keeps the record cache
// current. Every operation returns an fn.Result; the HTTP layer maps the
// error kinds to status codes.
package dossier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/WessleyAI/polidossier/engine/cache"
	"github.com/WessleyAI/polidossier/engine/domain"
	"github.com/WessleyAI/polidossier/engine/events"
	"github.com/WessleyAI/polidossier/engine/oracle"
	"github.com/WessleyAI/polidossier/engine/prompt"
	"github.com/WessleyAI/polidossier/pkg/fn"
	"github.com/WessleyAI/polidossier/pkg/metrics"
	"github.com/WessleyAI/polidossier/pkg/mid"
)

// DefaultNoMatchMessage is returned when the oracle declines without saying why.
const DefaultNoMatchMessage = "Could not identify a politician with the provided information."

// Outcome is the result of a search or refine. A declined identification is
// Found=false with a Message, not an error.
type Outcome struct {
	Found      bool
	Politician domain.Politician
	Message    string
}

// PhotoResolver picks a portrait URL for a politician. It never fails.
type PhotoResolver interface {
	Resolve(ctx context.Context, name string) string
}

// Deps are the collaborators of a Service. Events, Metrics and Logger are
// optional.
type Deps struct {
	Oracle  oracle.Gateway
	Photos  PhotoResolver
	Store   *cache.Store
	Events  events.Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Service implements search, refine and detail fetch.
type Service struct {
	gw      oracle.Gateway
	photos  PhotoResolver
	store   *cache.Store
	events  events.Publisher
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New creates a Service.
func New(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		gw:      d.Oracle,
		photos:  d.Photos,
		store:   d.Store,
		events:  d.Events,
		metrics: d.Metrics,
		log:     d.Logger,
	}
}

// Search identifies a politician from the query and caches a basic record.
// A client disconnect does not abort the lookup once it has started.
func (s *Service) Search(ctx context.Context, q domain.SearchQuery) fn.Result[Outcome] {
	return s.identify(context.WithoutCancel(ctx), q, prompt.Identify(q))
}

// Refine is Search with the refinement text folded into the prompt. The
// refined match may carry a different id than the earlier search.
func (s *Service) Refine(ctx context.Context, q domain.SearchQuery) fn.Result[Outcome] {
	return s.identify(context.WithoutCancel(ctx), q, prompt.Refine(q))
}

func (s *Service) identify(ctx context.Context, q domain.SearchQuery, userPrompt string) fn.Result[Outcome] {
	if err := domain.ValidateSearch(q); err != nil {
		return fn.Err[Outcome](err)
	}
	pipeline := fn.Then(
		fn.TracedStage("dossier.ask_identify", s.askIdentify),
		fn.TracedStage("dossier.record_match", s.recordMatch),
	)
	return pipeline(ctx, userPrompt)
}

func (s *Service) askIdentify(ctx context.Context, userPrompt string) fn.Result[domain.Identification] {
	raw, err := s.gw.Complete(ctx, prompt.SystemIdentify, userPrompt, true)
	if err != nil {
		return fn.Err[domain.Identification](fmt.Errorf("identify: %w", err))
	}
	return fn.FromPair[domain.Identification](oracle.DecodeJSON[domain.Identification](raw))
}

func (s *Service) recordMatch(ctx context.Context, ident domain.Identification) fn.Result[Outcome] {
	if ident.NoMatch() {
		msg := strings.TrimSpace(string(ident.Message))
		if msg == "" {
			msg = DefaultNoMatchMessage
		}
		return fn.Ok(Outcome{Message: msg})
	}
	p, err := ident.Basic()
	if err != nil {
		return fn.Err[Outcome](fmt.Errorf("identify: %w", err))
	}
	p.PhotoURL = s.photos.Resolve(ctx, p.Name)
	p.LastUpdated = s.store.Now()
	s.store.Put(p.ID, p)

	s.log.Info("politician identified", "id", p.ID, "name", p.Name, "request_id", mid.RequestIDFrom(ctx))
	s.publish(ctx, events.SubjectIdentified, p)
	return fn.Ok(Outcome{Found: true, Politician: p})
}

// Details returns the full record for id. A fresh full record is served from
// the cache without touching the oracle; otherwise the dossier is fetched,
// news and posts are fetched concurrently, and the merged record replaces
// the cached one. Like Search, it runs to completion after a client
// disconnect.
func (s *Service) Details(ctx context.Context, id string) fn.Result[domain.Politician] {
	ctx = context.WithoutCancel(ctx)
	if err := domain.ValidateID(id); err != nil {
		return fn.Err[domain.Politician](err)
	}
	cached, ok := s.store.Get(id)
	if !ok {
		s.metrics.CacheLookup("miss")
		return fn.Err[domain.Politician](fmt.Errorf("details %q: %w", id, domain.ErrNotFound))
	}
	if s.store.IsFreshFullDetail(cached) {
		s.metrics.CacheLookup("fresh")
		return fn.Ok(cached)
	}
	s.metrics.CacheLookup("stale")

	fetch := fn.TracedStage("dossier.fetch_details", s.fetchDossier)
	res := fetch(ctx, cached)
	if res.IsErr() {
		return res
	}
	full, _ := res.Unwrap()
	s.store.Put(id, full)

	s.log.Info("dossier refreshed", "id", id, "news", len(full.News), "posts", len(full.Posts), "request_id", mid.RequestIDFrom(ctx))
	s.publish(ctx, events.SubjectDossierRefreshed, full)
	return fn.Ok(full)
}

type enrichment struct {
	news  []domain.NewsArticle
	posts []domain.Post
}

func (s *Service) fetchDossier(ctx context.Context, base domain.Politician) fn.Result[domain.Politician] {
	raw, err := s.gw.Complete(ctx, prompt.SystemDossier, prompt.Dossier(base), true)
	if err != nil {
		return fn.Err[domain.Politician](fmt.Errorf("dossier %q: %w", base.ID, err))
	}
	d, err := oracle.DecodeJSON[domain.Dossier](raw)
	if err != nil {
		return fn.Err[domain.Politician](fmt.Errorf("dossier %q: %w", base.ID, err))
	}

	handle := d.Handle()
	parts := fn.FanOut(
		func() enrichment { return enrichment{news: s.fetchNews(ctx, base.Name)} },
		func() enrichment {
			if handle == "" {
				return enrichment{posts: []domain.Post{}}
			}
			return enrichment{posts: s.fetchPosts(ctx, handle)}
		},
	)

	full := base
	full.Biography = strings.TrimSpace(string(d.Biography))
	full.Age = int(d.Age)
	full.Donations = domain.NormalizeDonations(d.Donations)
	full.IsraelDonations = domain.NormalizeDonations(d.IsraelDonations)
	full.SocialMedia = d.Social()
	if handle != "" {
		if _, ok := full.SocialMedia["twitter"]; !ok {
			full.SocialMedia["twitter"] = handle
		}
	}
	full.News = parts[0].news
	full.Posts = parts[1].posts
	full.FullDetails = true
	full.LastUpdated = s.store.Now()
	return fn.Ok(full)
}

// fetchNews degrades to an empty list on any failure.
func (s *Service) fetchNews(ctx context.Context, name string) []domain.NewsArticle {
	raw, err := s.gw.Complete(ctx, prompt.SystemNews, prompt.News(name), true)
	if err == nil {
		var reply domain.NewsReply
		if reply, err = oracle.DecodeJSON[domain.NewsReply](raw); err == nil {
			return reply.Normalize()
		}
	}
	s.log.Warn("news fetch failed", "name", name, "error", err)
	return []domain.NewsArticle{}
}

// fetchPosts degrades to an empty list on any failure.
func (s *Service) fetchPosts(ctx context.Context, handle string) []domain.Post {
	raw, err := s.gw.Complete(ctx, prompt.SystemPosts, prompt.Posts(handle), true)
	if err == nil {
		var reply domain.PostsReply
		if reply, err = oracle.DecodeJSON[domain.PostsReply](raw); err == nil {
			return reply.Normalize()
		}
	}
	s.log.Warn("posts fetch failed", "handle", handle, "error", err)
	return []domain.Post{}
}

func (s *Service) publish(ctx context.Context, subject string, p domain.Politician) {
	if err := s.events.Publish(ctx, subject, events.FromPolitician(p, mid.RequestIDFrom(ctx))); err != nil {
		s.log.Warn("event publish failed", "subject", subject, "id", p.ID, "error", err)
	}
}
