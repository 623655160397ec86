package intent

import (
	"context"
	"errors"
	"time"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// ErrNotConfigured is returned by an External with nothing to ask. The
// classifier then answers from the local rules without counting a fallback.
var ErrNotConfigured = errors.New("external intent service not configured")

// External is an optional remote classifier.
type External interface {
	ClassifyExternal(ctx context.Context, text string) (Label, float64, error)
	Name() string
}

// NoopExternal is the local-only implementation.
type NoopExternal struct{}

func (NoopExternal) ClassifyExternal(context.Context, string) (Label, float64, error) {
	return Unknown, 0, ErrNotConfigured
}

func (NoopExternal) Name() string { return "none" }

// Source says where a decision came from.
type Source string

const (
	SourceRules    Source = "rules"
	SourceExternal Source = "external"
	// SourceFallback means the external service was asked and its answer discarded.
	SourceFallback Source = "fallback"
)

// Decision is the outcome of Classifier.Classify.
type Decision struct {
	Label      Label   `json:"label"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
	// FallbackReason is set when Source is SourceFallback.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Fallback reasons.
const (
	ReasonTimeout       = "timeout"
	ReasonError         = "error"
	ReasonInvalidLabel  = "invalid_label"
	ReasonLowConfidence = "low_confidence"
	ReasonUnknown       = "unknown_label"
)

// FallbackObserver is told each time the external answer is discarded.
type FallbackObserver interface {
	ObserveClassifierFallback(reason string)
}

// Options for Classifier.
type Options struct {
	Timeout       time.Duration
	MinConfidence float64
	Logger        logger.Logger
	Observer      FallbackObserver
}

// DefaultTimeout bounds the external call.
const DefaultTimeout = 2 * time.Second

// Classifier combines the local rules with an optional external service.
// A local emergency is final and the external service is not consulted.
type Classifier struct {
	rules    *RuleClassifier
	external External
	opts     Options
}

// NewClassifier returns a classifier. A nil external means local rules only.
func NewClassifier(rules *RuleClassifier, external External, opts Options) *Classifier {
	if rules == nil {
		rules = NewRuleClassifier(DefaultRules())
	}
	if external == nil {
		external = NoopExternal{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Classifier{rules: rules, external: external, opts: opts}
}

// ExternalName reports which external provider is configured.
func (c *Classifier) ExternalName() string { return c.external.Name() }

// Classify labels text. External failures never surface; they degrade to the
// local label.
func (c *Classifier) Classify(ctx context.Context, text string, symptomCount int) Decision {
	local := c.rules.Classify(text, symptomCount)
	if local == Emergency {
		return Decision{Label: Emergency, Source: SourceRules, Confidence: 1}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	label, confidence, err := c.external.ClassifyExternal(callCtx, text)
	if errors.Is(err, ErrNotConfigured) {
		return Decision{Label: local, Source: SourceRules, Confidence: 1}
	}
	reason := ""
	switch {
	case err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
		reason = ReasonTimeout
	case err != nil:
		reason = ReasonError
	case !label.Valid():
		reason = ReasonInvalidLabel
	case label == Unknown:
		reason = ReasonUnknown
	case confidence < c.opts.MinConfidence:
		reason = ReasonLowConfidence
	}

	if reason != "" {
		fields := []logger.LogField{
			logger.StringField("provider", c.external.Name()),
			logger.StringField("reason", reason),
			logger.StringField("local_label", string(local)),
		}
		if err != nil {
			fields = append(fields, logger.ErrorField(err))
		}
		c.opts.Logger.Debug("external intent discarded", fields...)
		if c.opts.Observer != nil {
			c.opts.Observer.ObserveClassifierFallback(reason)
		}
		return Decision{Label: local, Source: SourceFallback, Confidence: 1, FallbackReason: reason}
	}

	return Decision{Label: label, Source: SourceExternal, Confidence: confidence}
}
