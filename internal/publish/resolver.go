package publish

import (
	"context"
	"fmt"
	"strings"
)

// TargetSource supplies the channel configuration resolution reads.
type TargetSource interface {
	// ObjectChannel returns the primary channel for an object, "" when
	// the object has none configured.
	ObjectChannel(ctx context.Context, objectName string) (string, error)
	// OrgBroadcastChannels returns the organization's distribution
	// channels in configuration order.
	OrgBroadcastChannels(ctx context.Context, orgName string) ([]string, error)
}

// Resolver maps report metadata to the ordered, deduplicated set of
// channels that should receive it. Resolution is deterministic and
// performs no writes: same object/org configuration, same answer.
type Resolver struct {
	source TargetSource
}

// NewResolver creates a Resolver over the given source.
func NewResolver(source TargetSource) *Resolver {
	return &Resolver{source: source}
}

// ResolveTargets returns the object's primary channel first, then the
// organization broadcast channels, with duplicates and blanks removed.
// An empty result is valid: the document is still considered published
// (weak guarantee, surfaced through Result counters).
func (r *Resolver) ResolveTargets(ctx context.Context, objectName, orgName string) ([]string, error) {
	var ordered []string
	if strings.TrimSpace(objectName) != "" {
		primary, err := r.source.ObjectChannel(ctx, objectName)
		if err != nil {
			return nil, fmt.Errorf("resolve object channel: %w", err)
		}
		ordered = append(ordered, primary)
	}
	if strings.TrimSpace(orgName) != "" {
		broadcast, err := r.source.OrgBroadcastChannels(ctx, orgName)
		if err != nil {
			return nil, fmt.Errorf("resolve org channels: %w", err)
		}
		ordered = append(ordered, broadcast...)
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(ordered))
	for _, ch := range ordered {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out, nil
}
