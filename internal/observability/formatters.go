// Package observability provides formatted output utilities for verbose
// CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/marcus/jobgate/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintPosting outputs a summary of an ingested posting.
func (p *Printer) PrintPosting(posting *types.Posting) {
	if posting == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Key:       %s\n", posting.Key))
	sb.WriteString(fmt.Sprintf("Title:     %s\n", posting.Title))
	sb.WriteString(fmt.Sprintf("Org:       %s\n", posting.Organization))
	location := posting.Location
	if posting.Remote {
		location = location + " (remote)"
	}
	sb.WriteString(fmt.Sprintf("Location:  %s\n", strings.TrimSpace(location)))
	sb.WriteString(fmt.Sprintf("Found:     %s", posting.DiscoveredAt.Format("2006-01-02 15:04")))

	p.printBox("POSTING", sb.String())
}

// PrintDecision outputs the gate's verdict on a posting.
func (p *Printer) PrintDecision(key types.PostingKey, decision *types.DuplicateDecision) {
	if decision == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Posting:    %s\n", key))
	if decision.IsDuplicate() {
		sb.WriteString("Verdict:    duplicate\n")
		if decision.MatchedKey != nil {
			sb.WriteString(fmt.Sprintf("Matched:    %s\n", *decision.MatchedKey))
		}
		sb.WriteString(fmt.Sprintf("Group:      %s\n", decision.GroupID))
	} else {
		sb.WriteString("Verdict:    distinct\n")
	}
	sb.WriteString(fmt.Sprintf("Confidence: %.3f\n", decision.Confidence))
	sb.WriteString(fmt.Sprintf("Tier:       %d", decision.Tier))

	p.printBox("DUPLICATE GATE", sb.String())
}

// PrintRun outputs a pipeline run's progress and any recorded error.
func (p *Printer) PrintRun(run *types.PipelineRun, stageNames []string) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:     %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Posting: %s\n", run.PostingKey))
	sb.WriteString(fmt.Sprintf("Status:  %s\n", run.Status))
	sb.WriteString("\n")

	shown := 0
	for i, name := range stageNames {
		if shown >= maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more stages\n", len(stageNames)-shown))
			break
		}
		marker := " "
		switch {
		case i < len(run.CompletedStages):
			marker = "✓"
		case i == run.CurrentStageIndex && !types.IsTerminalStatus(run.Status):
			marker = "→"
		}
		sb.WriteString(fmt.Sprintf("  %s %s\n", marker, name))
		shown++
	}

	if run.LastError != nil {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("⚠ %s [%s]\n", run.LastError.Stage, run.LastError.Category))
		sb.WriteString(fmt.Sprintf("  %s", run.LastError.Message))
	}

	p.printBox("PIPELINE RUN", strings.TrimSuffix(sb.String(), "\n"))
}
