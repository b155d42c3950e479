package utils

import (
	"net/url"
	"strings"
)

// DemoAgentID is served on local and preview hosts and on bare paths
const DemoAgentID = "bj"

// AgentIDFromURL derives the agent identifier from a page location: the
// lower-cased final path segment.
func AgentIDFromURL(u *url.URL, fallback string) string {
	if fallback == "" {
		fallback = DemoAgentID
	}
	if u == nil {
		return fallback
	}

	host := u.Hostname()
	if host == "" || strings.Contains(host, "localhost") || strings.Contains(host, "googleusercontent") {
		return fallback
	}

	var last string
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			last = part
		}
	}
	if last == "" {
		return fallback
	}

	candidate := strings.ToLower(last)
	if strings.Contains(candidate, "index.html") || strings.Contains(candidate, "preview") {
		return fallback
	}
	return candidate
}

// AgentIDFromString parses raw as a URL first; anything unparseable gets the fallback
func AgentIDFromString(raw, fallback string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return AgentIDFromURL(nil, fallback)
	}
	return AgentIDFromURL(u, fallback)
}
