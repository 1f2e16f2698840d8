// Package prompt renders the README generation request sent to the backend.
package prompt

import (
	"fmt"
	"strings"

	"github.com/suPer8Hu/readmegen/internal/analysis"
)

// Tone is the writing guidance chosen from the detected languages.
type Tone string

const (
	ToneBackend Tone = "Use a backend-engineering tone. " +
		"Emphasize APIs, services, data flow, background processing, " +
		"configuration, and deployment considerations."
	ToneProduct Tone = "Use a product-focused tone. " +
		"Emphasize usability, user interaction, components, and developer experience."
	ToneNeutral Tone = "Use a neutral engineering tone. " +
		"Focus on clarity, structure, and maintainability."
)

var (
	backendLanguages = map[string]bool{
		"python": true, "go": true, "java": true, "kotlin": true, "scala": true,
		"rust": true, "c#": true, "ruby": true, "php": true, "elixir": true,
	}
	productLanguages = map[string]bool{
		"javascript": true, "typescript": true, "tsx": true, "vue": true,
		"svelte": true, "dart": true, "swift": true,
	}
)

// RequiredSections are the headings every generated README must contain.
var RequiredSections = []string{
	"Project Purpose",
	"Functionality",
	"How to Use",
	"File Structure",
	"Visuals (suggest only)",
	"Demo Links (suggest only)",
	"Tech Stack",
	"Contribution Guidelines",
	"License",
}

var rules = []string{
	"Do NOT invent features.",
	"Do NOT assume project type.",
	"Use only provided analysis.",
	"File structure section is mandatory.",
	"Use proper Markdown headings (#, ##, ###).",
	"Add hashtags where appropriate.",
	"Suggest (not fabricate) visuals and demo links.",
}

// InferTone checks backend languages before product ones, so a repository
// with both a Python service and a JavaScript frontend reads as a backend.
func InferTone(languages []string) Tone {
	for _, l := range languages {
		if backendLanguages[strings.ToLower(l)] {
			return ToneBackend
		}
	}
	for _, l := range languages {
		if productLanguages[strings.ToLower(l)] {
			return ToneProduct
		}
	}
	return ToneNeutral
}

// Build renders the generation request. It is a pure function of its inputs:
// member order is normalized and nothing time-dependent is embedded.
func Build(summary analysis.Summary, prior string) string {
	s := summary.Normalized()

	var b strings.Builder
	b.WriteString("You are a senior software engineer writing a high-quality README.md.\n\n")

	b.WriteString("TONE GUIDANCE:\n")
	b.WriteString(string(InferTone(s.Languages)))
	b.WriteString("\n\n")

	b.WriteString("RULES:\n")
	writeList(&b, rules)
	b.WriteString("\n")

	b.WriteString("INPUT DATA:\n")
	fmt.Fprintf(&b, "Project name: %s\n", s.ProjectName)
	fmt.Fprintf(&b, "Languages: %s\n", joinOrNone(s.Languages))

	b.WriteString("Dependencies:\n")
	if len(s.Dependencies) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, eco := range s.Ecosystems() {
		fmt.Fprintf(&b, "  %s: %s\n", eco, joinOrNone(s.Dependencies[eco]))
	}

	b.WriteString("Infrastructure:\n")
	if len(s.Infrastructure) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, k := range s.InfrastructureKeys() {
		fmt.Fprintf(&b, "  %s: %t\n", k, s.Infrastructure[k])
	}

	b.WriteString("File tree:\n")
	if len(s.FileTree) == 0 {
		b.WriteString("  (empty)\n")
	}
	for _, p := range s.FileTree {
		fmt.Fprintf(&b, "  %s\n", p)
	}
	b.WriteString("\n")

	b.WriteString("EXISTING README:\n")
	if strings.TrimSpace(prior) == "" {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(strings.TrimSpace(prior))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("REQUIRED SECTIONS:\n")
	writeList(&b, RequiredSections)
	b.WriteString("\n")

	b.WriteString("Return ONLY valid Markdown.\n")
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
