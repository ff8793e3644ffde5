// Package trust scores how likely a Roblox identity is an alt of a previously
// sanctioned identity.
package trust

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/roblox"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
)

// AltThreshold is the confidence at or above which an identity is flagged.
const AltThreshold = 40

const (
	maxConfidence = 100
	ageMatchDays  = 7
)

// IdentityLookup resolves identity metadata. Satisfied by *roblox.Client.
type IdentityLookup interface {
	GetIdentity(ctx context.Context, id int64) (*roblox.Identity, error)
}

// SanctionScanner lists a tenant's sanctions. Satisfied by repository.Store.
type SanctionScanner interface {
	ListSanctionsByTenant(ctx context.Context, tenantID string) ([]models.Sanction, error)
}

// Subject is everything the signals look at. It is built once per scoring run.
type Subject struct {
	IdentityID int64
	// AgeDays is nil when the identity lookup failed.
	AgeDays *int
	// DBMatches are sanctioned identity ids correlated by the sanction scan.
	DBMatches []int64
	// KnownAlts is the de-duplicated union of DBMatches and caller-supplied ids.
	KnownAlts []int64
}

// Signal evaluates one rule. A zero delta contributes nothing; an empty reason
// adds no reason line.
type Signal func(s *Subject) (delta int, reason string)

// DefaultSignals is the ordered rule table.
var DefaultSignals = []Signal{
	AccountAgeSignal,
	CrossReferenceSignal,
	PatternMatchSignal,
}

// AccountAgeSignal scores young accounts. Buckets are mutually exclusive.
func AccountAgeSignal(s *Subject) (int, string) {
	if s.AgeDays == nil {
		return 0, ""
	}
	switch age := *s.AgeDays; {
	case age < 30:
		return 35, "Account created within 30 days"
	case age < 90:
		return 20, "Account created within 90 days"
	case age < 180:
		return 10, "Account created within 180 days"
	default:
		return 0, ""
	}
}

// CrossReferenceSignal scores any correlation with known alts.
func CrossReferenceSignal(s *Subject) (int, string) {
	if len(s.KnownAlts) == 0 {
		return 0, ""
	}
	if len(s.KnownAlts) == 1 {
		return 45, "Linked to 1 previously sanctioned account"
	}
	return 45, "Linked to " + strconv.Itoa(len(s.KnownAlts)) + " previously sanctioned accounts"
}

// PatternMatchSignal adds weight when the sanction history itself matched.
func PatternMatchSignal(s *Subject) (int, string) {
	if len(s.DBMatches) == 0 {
		return 0, ""
	}
	return 10, "Matches the pattern of a sanctioned account"
}

// Scorer computes AltDetectionResults. It never returns an error: unavailable
// signals are omitted.
type Scorer struct {
	identities IdentityLookup
	sanctions  SanctionScanner
	signals    []Signal
	clock      clockwork.Clock
	logger     *slog.Logger
}

// Option customises a Scorer.
type Option func(*Scorer)

// WithClock overrides the clock used to compute account age.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scorer) { s.clock = c }
}

// WithSignals overrides the rule table.
func WithSignals(signals ...Signal) Option {
	return func(s *Scorer) { s.signals = signals }
}

// NewScorer creates a Scorer with the default rule table.
func NewScorer(identities IdentityLookup, sanctions SanctionScanner, opts ...Option) *Scorer {
	s := &Scorer{
		identities: identities,
		sanctions:  sanctions,
		signals:    DefaultSignals,
		clock:      clockwork.NewRealClock(),
		logger:     observability.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score evaluates identityID within a tenant. knownAlts are caller-supplied
// identity ids already believed to be linked.
func (s *Scorer) Score(ctx context.Context, tenantID string, identityID int64, knownAlts []int64) models.AltDetectionResult {
	ctx, span := observability.StartSpan(ctx, "trust.score",
		attribute.String("tenant.id", tenantID),
		attribute.Int64("roblox.user_id", identityID))
	defer span.End()

	subject := s.gather(ctx, tenantID, identityID, knownAlts)
	result := Evaluate(subject, s.signals)

	span.SetAttributes(attribute.Int("trust.confidence", result.Confidence))
	observability.TrustScores.Observe(float64(result.Confidence))
	return result
}

// Evaluate sums the signals over a subject, caps the total and applies the
// alt threshold.
func Evaluate(subject *Subject, signals []Signal) models.AltDetectionResult {
	total := 0
	reasons := []string{}
	for _, signal := range signals {
		delta, reason := signal(subject)
		total += delta
		if reason != "" {
			reasons = append(reasons, reason)
		}
	}
	if total > maxConfidence {
		total = maxConfidence
	}

	knownAlts := subject.KnownAlts
	if knownAlts == nil {
		knownAlts = []int64{}
	}
	return models.AltDetectionResult{
		IsLikelyAlt:    total >= AltThreshold,
		Confidence:     total,
		Reasons:        reasons,
		AccountAgeDays: subject.AgeDays,
		KnownAlts:      knownAlts,
	}
}

func (s *Scorer) gather(ctx context.Context, tenantID string, identityID int64, knownAlts []int64) *Subject {
	subject := &Subject{IdentityID: identityID}

	if identity, err := s.identities.GetIdentity(ctx, identityID); err == nil && identity != nil && !identity.Created.IsZero() {
		age := int(s.clock.Since(identity.Created) / (24 * time.Hour))
		subject.AgeDays = &age
	}

	sanctions, err := s.sanctions.ListSanctionsByTenant(ctx, tenantID)
	if err != nil {
		s.logger.WarnContext(ctx, "trust: sanction scan failed, skipping cross-reference",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
	} else {
		subject.DBMatches = matchSanctions(identityID, subject.AgeDays, sanctions)
	}

	subject.KnownAlts = union(subject.DBMatches, knownAlts, identityID)
	return subject
}

// matchSanctions returns the distinct identity ids of sanctions that either
// already list identityID as a known alt or were created within a week of it.
// Sanctions of identityID itself are ignored.
func matchSanctions(identityID int64, ageDays *int, sanctions []models.Sanction) []int64 {
	var matches []int64
	seen := map[int64]bool{}
	for i := range sanctions {
		rec := &sanctions[i]
		if rec.RobloxUserID == identityID || seen[rec.RobloxUserID] {
			continue
		}
		alt := rec.AltDetection()
		if alt == nil {
			continue
		}
		if containsID(alt.KnownAlts, identityID) || agesClose(ageDays, alt.AccountAgeDays) {
			seen[rec.RobloxUserID] = true
			matches = append(matches, rec.RobloxUserID)
		}
	}
	return matches
}

func agesClose(a, b *int) bool {
	if a == nil || b == nil {
		return false
	}
	diff := *a - *b
	if diff < 0 {
		diff = -diff
	}
	return diff <= ageMatchDays
}

func union(a, b []int64, exclude int64) []int64 {
	seen := map[int64]bool{exclude: true}
	var out []int64
	for _, list := range [][]int64{a, b} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
