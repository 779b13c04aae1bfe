package stream

import (
	"net/url"
	"strings"

	"github.com/Folken2/ag-ui-research/internal/session"
)

// maxWireSources caps the SOURCES_UPDATE payload.
const maxWireSources = 5

// formatResearchContent reflows a research answer for display: bullet groups
// are split onto their own lines and short heading-like paragraphs are
// promoted to markdown headers. Chat replies are never run through this.
func formatResearchContent(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return content
	}

	var formatted []string
	for _, paragraph := range strings.Split(content, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if strings.HasPrefix(paragraph, "•") {
			for _, bullet := range strings.Split(paragraph, "•") {
				if bullet = strings.TrimSpace(bullet); bullet != "" {
					formatted = append(formatted, "• "+bullet)
				}
			}
			continue
		}

		if looksLikeHeading(paragraph) {
			formatted = append(formatted, "## "+paragraph)
			continue
		}

		formatted = append(formatted, paragraph)
	}

	return strings.Join(formatted, "\n\n")
}

// looksLikeHeading applies the display heuristic for promoting a short
// paragraph to a header: under 80 characters, no sentence-ending punctuation,
// and not opening like prose.
func looksLikeHeading(paragraph string) bool {
	if len(paragraph) >= 80 {
		return false
	}
	if strings.HasSuffix(paragraph, ".") ||
		strings.HasSuffix(paragraph, "!") ||
		strings.HasSuffix(paragraph, "?") {
		return false
	}
	for _, prefix := range []string{"In ", "The ", "This "} {
		if strings.HasPrefix(paragraph, prefix) {
			return false
		}
	}
	return true
}

// extractDomain returns a presentable domain name for a URL, used as the
// title fallback for untitled sources.
func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "Source"
	}
	domain := strings.TrimPrefix(parsed.Host, "www.")
	if domain == "" {
		return "Source"
	}
	return strings.ToUpper(domain[:1]) + domain[1:]
}

// formatSources prepares the SOURCES_UPDATE payload: at most five sources,
// each guaranteed a title.
func formatSources(sources []session.Source) []session.Source {
	if len(sources) > maxWireSources {
		sources = sources[:maxWireSources]
	}
	out := make([]session.Source, len(sources))
	for i, src := range sources {
		if src.Title == "" {
			src.Title = extractDomain(src.URL)
		}
		out[i] = src
	}
	return out
}
