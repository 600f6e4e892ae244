// Package pricelens implements an eBay price-validation assistant: it
// identifies products from an image or free-text query, searches eBay for
// comparable listings through a tool-calling conversation run, and returns
// a formatted summary of similar listings and their prices.
package pricelens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pricelens/pricelens/internal/poll"
	"github.com/pricelens/pricelens/internal/session"
	"github.com/pricelens/pricelens/marketplace"
	"github.com/pricelens/pricelens/providers"
	openaiengine "github.com/pricelens/pricelens/providers/openai"
)

// Type aliases for internal package types
type (
	Session      = session.Session
	Turn         = session.Turn
	SessionStore = session.Store
	PollConfig   = poll.Config
)

// Function and sentinel re-exports for convenience
var (
	NewMemorySessionStore = session.NewMemoryStore
	DefaultPollConfig     = poll.DefaultConfig
	ErrSessionNotFound    = session.ErrNotFound
	ErrRunInFlight        = session.ErrRunInFlight
	ErrPollDeadline       = poll.ErrDeadlineExceeded
)

const (
	assistantName = "eBay Price Validator"

	assistantInstructions = "As an eBay Price Validator, you assist users in estimating the market value of items by finding similar products listed on eBay. You analyze images provided by users to identify products, then search eBay to present similar items and their prices. This helps users gauge how much something is roughly worth. Provide concise, relevant information about similar listings, including price ranges, conditions, and direct links to the listings on eBay."

	runInstructions = "The user needs help validating the price of an item on eBay."

	defaultModel       = "gpt-4-1106-preview"
	defaultVisionModel = "gpt-4-vision-preview"
)

// MergePolicy decides what happens to the user's typed query when an image
// upload produces a product summary.
type MergePolicy string

const (
	// MergeReplace discards the typed query and sends only the summary.
	MergeReplace MergePolicy = "replace"

	// MergeCombine keeps the typed query beneath the summary.
	MergeCombine MergePolicy = "combine"
)

// Searcher is the subset of the marketplace client the dispatcher needs.
type Searcher interface {
	Search(ctx context.Context, query string) (*marketplace.Result, error)
}

// Config holds assistant configuration.
type Config struct {
	// OpenAIKey authenticates the conversation/vision provider.
	// Required unless Engine is set.
	OpenAIKey string

	// SerpAPIKey authenticates the search provider. Optional: when empty,
	// searches degrade to a "search unavailable" tool result.
	SerpAPIKey string

	Model       string
	VisionModel string

	// Merge controls how an image summary and a typed query are combined.
	Merge MergePolicy

	// Poll bounds the run wait loop.
	Poll *PollConfig

	// Engine overrides the default OpenAI engine. Used in tests.
	Engine providers.Engine

	// Searcher overrides the default marketplace client. Used in tests.
	Searcher Searcher

	Sessions SessionStore
	Logging  *LoggingConfig
	Tracer   Tracer
}

// Common validation errors.
var (
	ErrMissingAPIKey      = errors.New("pricelens: OpenAIKey is required")
	ErrInvalidMergePolicy = errors.New("pricelens: Merge must be \"replace\" or \"combine\"")
	ErrMissingSessionID   = errors.New("pricelens: session id is required")
)

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.OpenAIKey == "" && c.Engine == nil {
		return ErrMissingAPIKey
	}
	if c.Merge != "" && c.Merge != MergeReplace && c.Merge != MergeCombine {
		return ErrInvalidMergePolicy
	}
	return nil
}

// Assistant owns the conversation sessions, the tool dispatcher and the
// external provider clients.
type Assistant struct {
	engine      providers.Engine
	searcher    Searcher
	sessions    SessionStore
	dispatcher  *Dispatcher
	pollConfig  PollConfig
	merge       MergePolicy
	model       string
	visionModel string
	logger      *slog.Logger
	tracer      Tracer

	mu          sync.Mutex
	assistantID string
}

// New creates an assistant from the configuration.
func New(cfg Config) (*Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loggingConfig := DefaultLoggingConfig()
	if cfg.Logging != nil {
		loggingConfig = *cfg.Logging
	}
	logger := resolveLogger(loggingConfig)

	engine := cfg.Engine
	if engine == nil {
		engine = openaiengine.New(cfg.OpenAIKey, logger)
	}

	searcher := cfg.Searcher
	if searcher == nil {
		searcher = marketplace.New(cfg.SerpAPIKey, logger)
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}

	pollConfig := poll.DefaultConfig()
	if cfg.Poll != nil {
		pollConfig = *cfg.Poll
	}

	merge := cfg.Merge
	if merge == "" {
		merge = MergeReplace
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = defaultVisionModel
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = &NoOpTracer{}
	}

	dispatcher := NewDispatcher(logger, loggingConfig)
	dispatcher.Register(newSearchTool(searcher))

	return &Assistant{
		engine:      engine,
		searcher:    searcher,
		sessions:    sessions,
		dispatcher:  dispatcher,
		pollConfig:  pollConfig,
		merge:       merge,
		model:       model,
		visionModel: visionModel,
		logger:      logger,
		tracer:      tracer,
	}, nil
}

// NewSession registers a fresh session and returns it.
func (a *Assistant) NewSession(ctx context.Context) (Session, error) {
	return a.sessions.Create(ctx, "")
}

// Sessions exposes the session registry.
func (a *Assistant) Sessions() SessionStore {
	return a.sessions
}

// ensureAssistant lazily creates the fixed persona with the engine.
func (a *Assistant) ensureAssistant(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.assistantID != "" {
		return a.assistantID, nil
	}

	id, err := a.engine.EnsureAssistant(ctx, providers.Persona{
		Name:         assistantName,
		Instructions: assistantInstructions,
		Model:        a.model,
		Tools:        a.dispatcher.Definitions(),
	})
	if err != nil {
		return "", fmt.Errorf("pricelens: create assistant persona: %w", err)
	}

	a.assistantID = id
	return id, nil
}
