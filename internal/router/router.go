// Package router maps an incoming query to the name of the backend
// that should answer it. Selection is a pure function over the message
// text and the first attachment's media type.
package router

import (
	"regexp"
	"strings"

	"github.com/medlocal/assistant/internal/config"
	"github.com/medlocal/assistant/internal/models"
)

type mediaRule struct {
	prefix string
	target string
}

type contentRule struct {
	pattern *regexp.Regexp
	target  string
}

// Router holds the routing tables. The rules are data, not code: tests
// and future configuration extend the tables without touching Select.
type Router struct {
	media    []mediaRule
	content  []contentRule
	fallback string
}

// Default returns the built-in routing table: images and audio route by
// media type, molecule and drug terminology routes to the molecule
// backend, everything else goes to the general text backend.
func Default() *Router {
	moleculeTerms := []string{
		"SMILES",
		"InChI",
		"molecola",
		"farmaco",
		"composto",
		"drug",
	}

	content := make([]contentRule, 0, len(moleculeTerms))
	for _, term := range moleculeTerms {
		content = append(content, contentRule{
			pattern: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term)),
			target:  config.MoleculeBackend,
		})
	}

	return &Router{
		media: []mediaRule{
			{prefix: "image/", target: config.TextBackend},
			{prefix: "audio/", target: config.AudioBackend},
		},
		content:  content,
		fallback: config.TextBackend,
	}
}

// Select returns the backend name for a query. It is total: some name
// always comes back, and liveness is the caller's problem.
func (r *Router) Select(message string, attachments []models.Attachment) string {
	if len(attachments) > 0 {
		// Only the first attachment's declared type matters.
		mediaType := attachments[0].Type
		for _, rule := range r.media {
			if strings.HasPrefix(mediaType, rule.prefix) {
				return rule.target
			}
		}
	}

	for _, rule := range r.content {
		if rule.pattern.MatchString(message) {
			return rule.target
		}
	}

	return r.fallback
}
