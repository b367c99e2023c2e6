package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/picatz/taintflow"
	"github.com/picatz/taintflow/ir"
	"github.com/picatz/taintflow/score"
	"golang.org/x/term"
)

// Pastel / adaptive lipgloss styles. Users may disable color with NO_COLOR or
// TAINTFLOW_THEME=plain; output that is not a terminal is always plain.
var (
	styleBold    lipgloss.Style
	styleFaint   lipgloss.Style
	styleNumber  lipgloss.Style
	styleHeader  lipgloss.Style
	styleArrow   lipgloss.Style
	styleClass   lipgloss.Style
	styleMethod  lipgloss.Style
	styleSuccess lipgloss.Style
	styleRisk    map[score.Risk]lipgloss.Style
)

func plainOutput(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || strings.EqualFold(os.Getenv("TAINTFLOW_THEME"), "plain") {
		return true
	}
	f, ok := out.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

func initStyles(plain bool) {
	if plain {
		reset := lipgloss.NewStyle()
		styleBold = reset
		styleFaint = reset
		styleNumber = reset
		styleHeader = reset
		styleArrow = reset
		styleClass = reset
		styleMethod = reset
		styleSuccess = reset
		styleRisk = map[score.Risk]lipgloss.Style{}
		return
	}

	pastelBlue := lipgloss.AdaptiveColor{Light: "#3366cc", Dark: "#8fb3ff"}
	pastelTeal := lipgloss.AdaptiveColor{Light: "#2b7a78", Dark: "#7ad1c4"}
	pastelRose := lipgloss.AdaptiveColor{Light: "#ad5d7d", Dark: "#ffb3c9"}
	pastelGold := lipgloss.AdaptiveColor{Light: "#b58b00", Dark: "#ffd666"}
	pastelGreen := lipgloss.AdaptiveColor{Light: "#2f7d32", Dark: "#9ada9f"}
	pastelGray := lipgloss.AdaptiveColor{Light: "#6b6f76", Dark: "#9aa0aa"}
	pastelEdge := lipgloss.AdaptiveColor{Light: "#7a7f88", Dark: "#aab2bd"}
	pastelPkg := lipgloss.AdaptiveColor{Light: "#4a6892", Dark: "#87a7d9"}

	styleBold = lipgloss.NewStyle().Bold(true)
	styleFaint = lipgloss.NewStyle().Foreground(pastelGray)
	styleNumber = lipgloss.NewStyle().Foreground(pastelGold).Bold(true)
	styleHeader = lipgloss.NewStyle().Foreground(pastelBlue).Bold(true)
	styleArrow = lipgloss.NewStyle().Foreground(pastelEdge)
	styleClass = lipgloss.NewStyle().Foreground(pastelPkg)
	styleMethod = lipgloss.NewStyle().Foreground(pastelTeal).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(pastelGreen)
	styleRisk = map[score.Risk]lipgloss.Style{
		score.Critical: lipgloss.NewStyle().Foreground(pastelRose).Bold(true).Reverse(true),
		score.High:     lipgloss.NewStyle().Foreground(pastelRose).Bold(true),
		score.Medium:   lipgloss.NewStyle().Foreground(pastelGold).Bold(true),
		score.Low:      lipgloss.NewStyle().Foreground(pastelTeal),
		score.Info:     lipgloss.NewStyle().Foreground(pastelGray),
	}
}

// semanticSignature colors a method signature by part: class, return
// type, method name and parameters.
func semanticSignature(sig string) string {
	s, err := ir.ParseSignature(sig)
	if err != nil {
		return sig
	}
	return styleFaint.Render("<") +
		styleClass.Render(s.Class) +
		styleFaint.Render(": "+s.Return+" ") +
		styleMethod.Render(s.Name) +
		styleFaint.Render("("+strings.Join(s.Params, ",")+")>")
}

func riskLabel(r score.Risk) string {
	return styleRisk[r].Render("[" + string(r) + "]")
}

// writeText renders findings for a terminal, highest score first.
func writeText(w io.Writer, results taintflow.Results) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, styleSuccess.Render("no tainted flows found"))
		return err
	}

	for i, v := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}

		route := "unrouted"
		if v.Route != nil {
			route = v.Route.Method + " " + v.Route.Path
		}
		flow := "full flow"
		if !v.FullFlow {
			flow = "summarized"
		}

		fmt.Fprintf(w, "%s %s %s %s\n",
			riskLabel(v.Risk),
			styleNumber.Render(fmt.Sprintf("%.1f", v.Score)),
			styleHeader.Render(v.VulnType()),
			styleBold.Render(route),
		)
		fmt.Fprintf(w, "  %s\n", styleFaint.Render(fmt.Sprintf("confidence %.2f, %s, auth %.1f", v.Confidence, flow, v.AuthBarrier)))
		for j, sig := range v.Trace {
			prefix := "  "
			if j > 0 {
				prefix = "  " + styleArrow.Render("→") + " "
			}
			fmt.Fprintf(w, "%s%s\n", prefix, semanticSignature(sig))
		}
	}

	counts := results.Risk()
	var parts []string
	for _, r := range score.Risks {
		if counts[r] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[r], strings.ToLower(string(r))))
		}
	}
	noun := "findings"
	if len(results) == 1 {
		noun = "finding"
	}
	_, err := fmt.Fprintf(w, "\n%s %s\n", styleBold.Render(fmt.Sprintf("%d %s:", len(results), noun)), strings.Join(parts, ", "))
	return err
}
