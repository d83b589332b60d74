package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/louisfellows/canto/internal/ports"
	"github.com/louisfellows/canto/pkg/canto"
)

// Resolver resolves node selectors to presence records.
type Resolver struct {
	Presence ports.Broker
	Config   Config
}

// ResolveBridge resolves a voice bridge selector using the configured
// default node. With no selector and a single bridge online, that bridge
// is chosen.
func (r Resolver) ResolveBridge(ctx context.Context, selector string) (canto.Presence, error) {
	if selector == "" {
		selector = r.Config.Node
	}

	presence, err := r.Presence.ListPresence(ctx)
	if err != nil {
		return canto.Presence{}, WrapError(ExitRuntime, "list presence", err)
	}

	bridges := make([]canto.Presence, 0, len(presence))
	for _, p := range presence {
		if p.Kind == "voicebridge" {
			bridges = append(bridges, p)
		}
	}

	if selector == "" {
		if len(bridges) == 1 {
			return bridges[0], nil
		}
		return canto.Presence{}, &CLIError{Code: ExitUsage, Msg: "node selector required"}
	}
	return resolveSelector(selector, bridges, r.Config.Aliases)
}

func resolveSelector(selector string, presence []canto.Presence, aliases map[string]string) (canto.Presence, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return canto.Presence{}, &CLIError{Code: ExitUsage, Msg: "node selector required"}
	}

	if strings.HasPrefix(selector, "canto:") {
		return resolveExact(selector, presence)
	}

	if alias, ok := aliases[selector]; ok {
		if strings.HasPrefix(alias, "canto:") {
			return resolveExact(alias, presence)
		}
		selector = alias
	}

	matches := make([]canto.Presence, 0)
	for _, p := range presence {
		if strings.EqualFold(p.Name, selector) || strings.EqualFold(p.NodeID, selector) {
			matches = append(matches, p)
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) == 0 {
		return canto.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no match for %q", selector)}
	}
	return canto.Presence{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous selector %q: %s", selector, suggestionList(matches))}
}

func resolveExact(nodeID string, presence []canto.Presence) (canto.Presence, error) {
	for _, p := range presence {
		if p.NodeID == nodeID {
			return p, nil
		}
	}
	return canto.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("node not found: %s", nodeID)}
}

func suggestionList(matches []canto.Presence) string {
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.NodeID))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
