// Package privacy decides which observed activities may be recorded and
// scrubs sensitive fragments from the ones that are.
package privacy

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Rules is the declarative filter configuration.
type Rules struct {
	Enabled            bool     `yaml:"enabled"`
	BlockedApps        []string `yaml:"blocked_apps"`
	BlockedURLPatterns []string `yaml:"blocked_url_patterns"`
	BlockedDirectories []string `yaml:"blocked_directories"`
	ExcludedExtensions []string `yaml:"excluded_extensions"`
}

// Subject carries the activity fields the filter inspects.
type Subject struct {
	AppName     string
	WindowTitle string
	FilePath    string
	URL         string
}

// Stats summarizes the loaded rule set.
type Stats struct {
	Enabled            bool `json:"enabled"`
	BlockedApps        int  `json:"blocked_apps"`
	URLPatterns        int  `json:"blocked_url_patterns"`
	BlockedDirectories int  `json:"blocked_directories"`
	ExcludedExtensions int  `json:"excluded_extensions"`
}

var (
	emailRe         = regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b`)
	tokenRe         = regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`)
	parenPasswordRe = regexp.MustCompile(`(?i)\([^)]*password[^)]*\)`)

	sensitiveParams = []string{"password", "token", "key", "secret", "auth", "api_key"}

	sensitiveKeywords = []string{
		"password",
		"login",
		"signin",
		"sign in",
		"authenticate",
		"private browsing",
		"incognito",
		"secret",
		"confidential",
	}
)

// Filter applies privacy rules to activities before they reach storage.
type Filter struct {
	enabled     bool
	apps        map[string]bool
	urlPatterns []*regexp.Regexp
	dirs        []string
	extensions  map[string]bool
	paramRes    []*regexp.Regexp
}

// NewFilter compiles the rule set. Invalid URL patterns are an error rather
// than silently skipped.
func NewFilter(rules Rules) (*Filter, error) {
	f := &Filter{
		enabled:    rules.Enabled,
		apps:       make(map[string]bool),
		extensions: make(map[string]bool),
	}

	for _, app := range rules.BlockedApps {
		f.apps[strings.ToLower(app)] = true
	}
	for _, ext := range rules.ExcludedExtensions {
		f.extensions[strings.ToLower(ext)] = true
	}
	for _, pattern := range rules.BlockedURLPatterns {
		re, err := globToRegexp(pattern)
		if err != nil {
			return nil, fmt.Errorf("url pattern %q: %w", pattern, err)
		}
		f.urlPatterns = append(f.urlPatterns, re)
	}
	for _, dir := range rules.BlockedDirectories {
		f.dirs = append(f.dirs, expandHome(dir))
	}
	for _, param := range sensitiveParams {
		f.paramRes = append(f.paramRes, regexp.MustCompile(`(?i)[?&]`+regexp.QuoteMeta(param)+`=[^&]*`))
	}

	log.Printf("privacy: filter loaded (enabled=%v apps=%d urls=%d dirs=%d exts=%d)",
		f.enabled, len(f.apps), len(f.urlPatterns), len(f.dirs), len(f.extensions))
	return f, nil
}

// Allow reports whether the activity may be recorded at all.
func (f *Filter) Allow(s Subject) bool {
	if !f.enabled {
		return true
	}

	if f.apps[strings.ToLower(s.AppName)] {
		return false
	}
	if s.URL != "" && f.urlBlocked(s.URL) {
		return false
	}
	if s.FilePath != "" {
		if f.pathBlocked(s.FilePath) {
			return false
		}
		if f.extensions[strings.ToLower(filepath.Ext(s.FilePath))] {
			return false
		}
	}
	if containsSensitiveKeyword(s.WindowTitle) {
		return false
	}
	return true
}

// Sanitize scrubs sensitive fragments from an allowed activity.
func (f *Filter) Sanitize(s Subject) Subject {
	if !f.enabled {
		return s
	}
	s.WindowTitle = RedactTitle(s.WindowTitle)
	s.URL = f.redactURL(s.URL)
	if s.FilePath != "" && f.pathBlocked(s.FilePath) {
		s.FilePath = "[PRIVATE]"
	}
	return s
}

// Stats reports rule counts for the stats endpoint.
func (f *Filter) Stats() Stats {
	return Stats{
		Enabled:            f.enabled,
		BlockedApps:        len(f.apps),
		URLPatterns:        len(f.urlPatterns),
		BlockedDirectories: len(f.dirs),
		ExcludedExtensions: len(f.extensions),
	}
}

func (f *Filter) urlBlocked(url string) bool {
	for _, re := range f.urlPatterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

func (f *Filter) pathBlocked(path string) bool {
	clean := filepath.Clean(expandHome(path))
	for _, dir := range f.dirs {
		if clean == dir || strings.HasPrefix(clean, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// RedactTitle strips emails, long token-like strings, and password hints
// from a window title.
func RedactTitle(title string) string {
	if title == "" {
		return title
	}
	title = parenPasswordRe.ReplaceAllString(title, "(***)")
	title = emailRe.ReplaceAllString(title, "[EMAIL]")
	title = tokenRe.ReplaceAllString(title, "[TOKEN]")
	return title
}

func (f *Filter) redactURL(url string) string {
	if url == "" {
		return url
	}
	for i, re := range f.paramRes {
		param := sensitiveParams[i]
		url = re.ReplaceAllString(url, "?"+param+"=[REDACTED]")
	}
	return url
}

func containsSensitiveKeyword(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// globToRegexp translates a shell-style pattern ("*://*/login*") into an
// anchored case-insensitive regexp.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?i)^`)
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	return regexp.Compile(b.String())
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
