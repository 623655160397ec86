// Package triage turns one inbound message into an advisory reply.
//
// Per message the Engine classifies intent, extracts symptoms, merges them into
// the session, ranks conditions over the merged set and assembles the reply.
// The knowledge base is shared read-only; session state lives in a
// conversation.Store, which serialises turns of the same session.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lewisedginton/triage_assistant/internal/conversation"
	"github.com/lewisedginton/triage_assistant/internal/extractor"
	"github.com/lewisedginton/triage_assistant/internal/intent"
	"github.com/lewisedginton/triage_assistant/internal/knowledge"
	"github.com/lewisedginton/triage_assistant/internal/matcher"
	"github.com/lewisedginton/triage_assistant/internal/prompt_manager"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

var (
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message text is required")
	// ErrNoSymptoms is returned by AnalyzeSymptoms for an empty list.
	ErrNoSymptoms = errors.New("at least one symptom is required")
	// ErrEmptySessionID is returned when no session id is given.
	ErrEmptySessionID = errors.New("session id is required")
)

// Recorder receives per-turn observations. *metrics.TriageMetrics implements it.
type Recorder interface {
	ObserveTurn(intent string, urgent, insufficient bool, topScore float64, hasMatches bool)
}

// Engine is safe for concurrent use.
type Engine struct {
	kb         *knowledge.KnowledgeBase
	extractor  *extractor.Extractor
	classifier *intent.Classifier
	sessions   *conversation.Store
	templates  prompt_manager.Templates
	matchOpts  matcher.Options
	followUp   [][]string
	log        logger.Logger
	recorder   Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithMatchOptions overrides top-k and the relevance threshold.
func WithMatchOptions(o matcher.Options) Option {
	return func(e *Engine) { e.matchOpts = o }
}

// WithTemplates replaces the reply texts.
func WithTemplates(t prompt_manager.Templates) Option {
	return func(e *Engine) { e.templates = t }
}

// WithFollowUpMarkers replaces the words that mark a message as extending the previous one.
func WithFollowUpMarkers(markers []string) Option {
	return func(e *Engine) { e.followUp = compileMarkers(markers) }
}

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// New wires an engine. A nil classifier uses local rules only; a nil store
// gets a fresh one.
func New(kb *knowledge.KnowledgeBase, ex *extractor.Extractor, classifier *intent.Classifier, sessions *conversation.Store, opts ...Option) *Engine {
	if classifier == nil {
		classifier = intent.NewClassifier(nil, nil, intent.Options{})
	}
	if sessions == nil {
		sessions = conversation.NewStore()
	}
	if ex == nil {
		ex = extractor.New(kb.Vocabulary(), extractor.Config{})
	}
	e := &Engine{
		kb:         kb,
		extractor:  ex,
		classifier: classifier,
		sessions:   sessions,
		templates:  prompt_manager.Defaults(),
		matchOpts:  matcher.DefaultOptions(),
		followUp:   compileMarkers(DefaultFollowUpMarkers),
		log:        logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process handles one message for a session, creating the session if needed.
func (e *Engine) Process(ctx context.Context, sessionID, text string) (ChatResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatResult{}, ErrEmptyMessage
	}
	if strings.TrimSpace(sessionID) == "" {
		return ChatResult{}, ErrEmptySessionID
	}

	extraction := e.extractor.Extract(text)
	decision := e.classifier.Classify(ctx, text, len(extraction.Detected))

	res := ChatResult{
		SessionID:       sessionID,
		Intent:          decision.Label,
		IntentSource:    decision.Source,
		TurnSymptoms:    nonNil(extraction.Detected),
		NegatedSymptoms: nonNil(extraction.Negated),
		Entities:        extractor.ExtractEntities(text),
	}

	var matches []matcher.MatchResult
	err := e.sessions.Update(sessionID, func(s *conversation.SessionContext) error {
		merged := union(s.AccumulatedSymptoms(), extraction.Detected)

		var err error
		matches, err = matcher.Match(ctx, merged, text, e.kb, e.matchOpts)
		if err != nil {
			return err
		}

		res.FollowUp = !s.IsNew() && e.isFollowUp(text)
		s.Merge(extraction.Detected)
		s.LastMatches = matches
		s.TurnCount++

		res.DetectedSymptoms = nonNil(merged)
		res.TurnCount = s.TurnCount
		return nil
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("failed to process message: %w", err)
	}

	res.MatchedConditions = e.resolve(matches)
	res.Confidence = matcher.Confidence(matches)
	res.Urgent = res.Intent == intent.Emergency
	res.InsufficientInformation = len(res.DetectedSymptoms) == 0 && !res.Intent.Conversational()
	res.Message = e.compose(res)

	if e.recorder != nil {
		e.recorder.ObserveTurn(string(res.Intent), res.Urgent, res.InsufficientInformation, res.Confidence, len(matches) > 0)
	}
	e.log.Debug("processed message",
		logger.SessionIDField(sessionID),
		logger.StringField("intent", string(res.Intent)),
		logger.StringField("intent_source", string(res.IntentSource)),
		logger.IntField("symptoms", len(res.DetectedSymptoms)),
		logger.IntField("matches", len(matches)),
		logger.Float64Field("confidence", res.Confidence),
		logger.IntField("turn", res.TurnCount),
	)
	return res, nil
}

// AnalyzeSymptoms ranks conditions for a symptom list without touching any session.
func (e *Engine) AnalyzeSymptoms(ctx context.Context, symptoms []string) (Analysis, error) {
	var (
		canonical    []string
		unrecognised []string
		seen         = make(map[string]bool)
	)
	for _, s := range symptoms {
		norm := extractor.Normalize(s)
		if norm == "" {
			continue
		}
		c, ok := e.extractor.Canonical(norm)
		if !ok {
			c = norm
			unrecognised = append(unrecognised, norm)
		}
		if !seen[c] {
			seen[c] = true
			canonical = append(canonical, c)
		}
	}
	if len(canonical) == 0 {
		return Analysis{}, ErrNoSymptoms
	}

	matches, err := matcher.Match(ctx, canonical, "", e.kb, e.matchOpts)
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to analyse symptoms: %w", err)
	}
	return Analysis{
		Symptoms:          canonical,
		Unrecognised:      unrecognised,
		MatchedConditions: e.resolve(matches),
		Confidence:        matcher.Confidence(matches),
	}, nil
}

// ClearSession drops all state for the session. The next message starts fresh.
func (e *Engine) ClearSession(sessionID string) bool {
	return e.sessions.Clear(sessionID)
}

// ListConditions returns the catalogue in knowledge base order.
func (e *Engine) ListConditions() []knowledge.ConditionRecord {
	return e.kb.Conditions()
}

// KnowledgeBase exposes the shared catalogue.
func (e *Engine) KnowledgeBase() *knowledge.KnowledgeBase { return e.kb }

// Sessions exposes the session store so the owning layer can run its TTL policy.
func (e *Engine) Sessions() *conversation.Store { return e.sessions }

// IntentProvider names the configured external classifier, "none" when local only.
func (e *Engine) IntentProvider() string { return e.classifier.ExternalName() }

func (e *Engine) resolve(matches []matcher.MatchResult) []ConditionMatch {
	out := make([]ConditionMatch, 0, len(matches))
	for _, m := range matches {
		rec, ok := e.kb.Lookup(m.Condition)
		if !ok {
			continue
		}
		out = append(out, ConditionMatch{
			ConditionName:   rec.Name,
			Symptoms:        rec.Symptoms,
			Advice:          rec.Advice,
			Severity:        rec.Severity,
			SimilarityScore: m.SimilarityScore,
		})
	}
	return out
}

func union(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
