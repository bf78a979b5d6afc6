// Package prompt assembles system prompts for each interaction mode.
package prompt

import (
	"fmt"
	"strings"
)

const chatBase = "You are a helpful AI assistant in a terminal. Answer clearly and concisely. " +
	"Use GitHub-flavored markdown for structure and fenced code blocks for code."

const toolBase = "You are a helpful AI assistant in a terminal with access to tools. " +
	"Call a tool when it gives a more accurate or more current answer than your own knowledge, " +
	"then answer using the tool output. Cite URLs you relied on."

// BuildSystemPrompt constructs the system prompt for mode, listing enabled
// tools and appending the persona when one applies.
func BuildSystemPrompt(mode string, toolNames []string, persona *Persona) string {
	var sb strings.Builder
	switch mode {
	case "tool":
		sb.WriteString(toolBase)
		if len(toolNames) > 0 {
			sb.WriteString("\nTools available: ")
			sb.WriteString(strings.Join(toolNames, ", "))
			sb.WriteString(".")
		} else {
			sb.WriteString("\nNo tools are enabled for this session.")
		}
	default:
		sb.WriteString(chatBase)
	}

	if persona != nil && persona.AppliesTo(mode) {
		if md := ToPromptMarkdown(persona); md != "" {
			sb.WriteString("\n\n")
			sb.WriteString(md)
		}
	}
	return strings.TrimSpace(sb.String())
}

// ToPromptMarkdown renders a persona as a markdown section.
func ToPromptMarkdown(p *Persona) string {
	if p == nil || strings.TrimSpace(p.Body) == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Persona: %s\n", sanitizeMarkdown(p.Name)))
	if desc := sanitizeMarkdown(p.Description); desc != "" {
		sb.WriteString(desc)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(strings.TrimSpace(p.Body))
	return strings.TrimSpace(sb.String())
}

// sanitizeMarkdown keeps markdown fields single-line and trimmed.
func sanitizeMarkdown(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.TrimSpace(value)
}

// ApplicationPrompt is the instruction sent to the model in agent mode.
func ApplicationPrompt(description string) string {
	return fmt.Sprintf(`Create a complete, production ready application for: %s

CRITICAL REQUIREMENTS:
1. Generate all files needed for the application to run.
2. Include package.json with all packages and correct versions.
3. Include README.md with setup instructions.
4. Include configuration files (.gitignore, etc.)
5. Write clean, well-commented, production-ready code.
6. Include error handling and input validation.
7. Use modern JavaScript/TypeScript best practices.
8. Make sure all imports and paths are correct.
9. NO PLACEHOLDERS - everything must be complete and working.
10. Every file path must be relative to the project folder and must not contain "..".

Provide:
- A meaningful kebab-case folder name
- ALL necessary files with complete content
- Setup commands (cd folder, npm install, npm run dev, etc.)
- All dependencies with versions`, strings.TrimSpace(description))
}
