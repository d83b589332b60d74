package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"

	"github.com/louisfellows/canto/internal/core"
	"github.com/louisfellows/canto/pkg/canto"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct{}

// Print renders human output.
func (HumanPrinter) Print(v any) error {
	switch data := v.(type) {
	case core.NodesResult:
		return printNodes(data)
	case core.ResolveResult:
		return printResolve(data)
	case core.StartResult:
		return printStart(data)
	case core.StatusResult:
		return printStatus(data)
	case core.RebuildResult:
		return printRebuild(data)
	default:
		_, err := fmt.Fprintln(os.Stdout, "ok")
		return err
	}
}

func printNodes(result core.NodesResult) error {
	rows := pterm.TableData{{"NAME", "KIND", "NODE_ID"}}
	for _, node := range result.Nodes {
		rows = append(rows, []string{node.Name, node.Kind, node.NodeID})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func printResolve(result core.ResolveResult) error {
	if !result.Reply.Matched {
		pterm.Warning.Printfln("no match for %q", result.Reply.Phrase)
		return nil
	}
	data := result.Reply.Data
	what := data.Name
	if what == "" {
		what = describeHints(data)
	}
	if data.Category != "" {
		what = fmt.Sprintf("%s (%s)", what, data.Category)
	}
	pterm.Success.Printfln("%s  tier=%s confidence=%d", what, result.Reply.Tier, result.Reply.Confidence)
	return nil
}

func printStart(result core.StartResult) error {
	pterm.Success.Printfln("queued %d tracks on %s", result.Reply.Queued, result.NodeID)
	return nil
}

func printStatus(result core.StatusResult) error {
	if !result.Reply.Playing || result.Reply.Track == nil {
		pterm.Info.Println("nothing playing")
		return nil
	}
	track := result.Reply.Track
	line := track.Name
	if track.Artist != "" {
		line = fmt.Sprintf("%s - %s", track.Artist, track.Name)
	}
	if track.Album != "" {
		line = fmt.Sprintf("%s [%s]", line, track.Album)
	}
	pterm.Info.Println(line)
	return nil
}

func printRebuild(result core.RebuildResult) error {
	pterm.Success.Printfln("catalog rebuilt: %d entries", result.Reply.Entries)
	return nil
}

func describeHints(data canto.ResolveData) string {
	parts := make([]string, 0, 3)
	if data.Track != "" {
		parts = append(parts, data.Track)
	}
	if data.Album != "" {
		parts = append(parts, data.Album)
	}
	if data.Artist != "" {
		parts = append(parts, data.Artist)
	}
	if len(parts) == 0 {
		return "(unnamed)"
	}
	return strings.Join(parts, " / ")
}
