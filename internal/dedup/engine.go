// Package dedup decides which records in a batch are genuinely new.
//
// Identity is never a single field: each platform exposes a different mix of
// numeric ids, handles and canonical URLs, and the same creator can surface
// under a different identifier on a later page. A record is accepted the
// first time any of its composite keys is unseen; once accepted, all of its
// keys are marked so later aliases are still caught.
//
// The engine is pure (no I/O) so it can be tested independently of the
// controller.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/creatorpulse/discovery/internal/domain"
)

// PlatformUnknown is the composite-key platform fallback when neither the
// record nor the caller supplies one.
const PlatformUnknown = "unknown"

// structKeyPrefix marks fingerprints derived from whole-record equality
// rather than a harvested identifier.
const structKeyPrefix = "struct"

// SeenSet tracks composite identity keys that have already been accepted.
type SeenSet map[string]struct{}

// NewSeenSet builds a SeenSet pre-populated with the fingerprints of the
// already-stored records for a job.
func NewSeenSet(existing []domain.CreatorRecord, platformHint string) SeenSet {
	seen := make(SeenSet, len(existing)*2)
	for i := range existing {
		seen.AddAll(Fingerprints(&existing[i], platformHint))
	}
	return seen
}

// Has reports whether any of the keys has been seen.
func (s SeenSet) Has(keys []string) bool {
	for _, k := range keys {
		if _, ok := s[k]; ok {
			return true
		}
	}
	return false
}

// AddAll marks every key as seen.
func (s SeenSet) AddAll(keys []string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

// Filter returns the subset of batch that is new relative to existing,
// preserving batch order. First-seen wins; an accepted record is never
// replaced by a later duplicate, even one matching via a different
// identifier.
func Filter(existing, batch []domain.CreatorRecord, platformHint string) []domain.CreatorRecord {
	seen := NewSeenSet(existing, platformHint)
	return FilterSeen(seen, batch, platformHint)
}

// FilterSeen is Filter against a pre-built SeenSet. The set is mutated:
// accepted records mark all of their keys.
func FilterSeen(seen SeenSet, batch []domain.CreatorRecord, platformHint string) []domain.CreatorRecord {
	unique := make([]domain.CreatorRecord, 0, len(batch))
	for i := range batch {
		keys := Fingerprints(&batch[i], platformHint)
		if seen.Has(keys) {
			continue
		}
		seen.AddAll(keys)
		unique = append(unique, batch[i])
	}
	return unique
}

// Fingerprints returns every composite "platform|identifier" key for a
// record, in candidate priority order. When a record yields no usable
// identifier it falls back to a whole-structure equality key; that is
// conservative and can admit near-duplicates whose inconsequential fields
// differ, which is accepted policy.
func Fingerprints(rec *domain.CreatorRecord, platformHint string) []string {
	platform := normalize(rec.Platform)
	if platform == "" {
		platform = normalize(platformHint)
	}
	if platform == "" {
		platform = PlatformUnknown
	}

	candidates := make([]string, 0, 5+len(rec.AltIDs))
	candidates = append(candidates,
		rec.CreatorID,
		rec.Handle,
		rec.ProfileURL,
		rec.Content.URL,
	)
	candidates = append(candidates, rec.AltIDs...)

	keys := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = normalize(c)
		if c == "" {
			continue
		}
		keys = append(keys, platform+"|"+c)
	}
	if len(keys) > 0 {
		return keys
	}

	return []string{platform + "|" + structuralKey(rec)}
}

// normalize maps a candidate identifier to its comparable form. Numeric ids
// arrive stringified already; everything is trimmed and lowercased.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// structuralKey hashes the canonical JSON encoding of the record. Struct
// encoding is field-order deterministic, so two payloads that differ only in
// upstream field ordering collapse to the same key.
func structuralKey(rec *domain.CreatorRecord) string {
	data, err := json.Marshal(rec)
	if err != nil {
		// Marshal of a plain struct cannot fail; keep a defined key anyway.
		data = []byte(strconv.Quote(rec.DisplayName))
	}
	sum := sha256.Sum256(data)
	return structKeyPrefix + "|" + hex.EncodeToString(sum[:])
}
