package jsonpath

import (
	"fmt"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
)

// Per spec §6/§9: I-Regexp patterns over 4 KiB are rejected outright, and
// every match/search call carries an explicit timeout rather than relying
// on best-effort cancellation, to bound ReDoS exposure.
const (
	maxPatternBytes = 4 * 1024
	matchTimeout    = 100 * time.Millisecond
	compileTimeout  = 10 * time.Millisecond
)

// regexCache compiles I-Regexp patterns (via regexp2, which natively
// supports a per-match timeout) and memoizes them by pattern text, per
// spec §4.3 ("cached compiler keyed by pattern text").
type regexCache struct {
	mu    sync.RWMutex
	cache map[string]*regexp2.Regexp
}

var globalRegexCache = &regexCache{cache: make(map[string]*regexp2.Regexp)}

func (c *regexCache) compile(pattern string) (*regexp2.Regexp, error) {
	if len(pattern) > maxPatternBytes {
		return nil, fmt.Errorf("regex pattern exceeds %d bytes", maxPatternBytes)
	}

	c.mu.RLock()
	if re, ok := c.cache[pattern]; ok {
		c.mu.RUnlock()
		return re, nil
	}
	c.mu.RUnlock()

	start := time.Now()
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	if time.Since(start) > compileTimeout {
		return nil, fmt.Errorf("regex pattern took too long to compile")
	}
	re.MatchTimeout = matchTimeout

	c.mu.Lock()
	c.cache[pattern] = re
	c.mu.Unlock()
	return re, nil
}

// matchAnchored implements the `match` built-in: a whole-string anchored
// match, per spec §6.
func matchAnchored(s, pattern string) (bool, error) {
	re, err := globalRegexCache.compile(anchor(pattern))
	if err != nil {
		return false, err
	}
	ok, err := re.MatchString(s)
	if err != nil {
		return false, fmt.Errorf("regex match timed out or failed: %w", err)
	}
	return ok, nil
}

// matchUnanchored implements the `search` built-in: an unanchored substring
// match, per spec §6.
func matchUnanchored(s, pattern string) (bool, error) {
	re, err := globalRegexCache.compile(pattern)
	if err != nil {
		return false, err
	}
	ok, err := re.MatchString(s)
	if err != nil {
		return false, fmt.Errorf("regex search timed out or failed: %w", err)
	}
	return ok, nil
}

// anchor wraps a pattern so `match` performs a whole-string comparison,
// matching I-Regexp's implicit full-match semantics for match() while
// search() stays unanchored.
func anchor(pattern string) string {
	return `\A(?:` + pattern + `)\z`
}
