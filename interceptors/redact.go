// (c) Copyright IBM Corp. 2024

package interceptors

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Parameter name match types accepted by NamedMatcher
const (
	MatchEquals             = "equals"
	MatchEqualsIgnoreCase   = "equals-ignore-case"
	MatchContains           = "contains"
	MatchContainsIgnoreCase = "contains-ignore-case"
	// MatchRegexp matches names fully matching any of the terms, each of them
	// being a regular expression
	MatchRegexp = "regex"
	MatchNone   = "none"
)

// RedactedValue replaces the values of parameters matched by a secrets matcher
const RedactedValue = "<redacted>"

// Matcher tells whether a parameter name denotes a secret
type Matcher interface {
	Match(name string) bool
}

// MatcherFunc is a Matcher implemented by a function
type MatcherFunc func(name string) bool

// Match calls fn(name)
func (fn MatcherFunc) Match(name string) bool { return fn(name) }

// NamedMatcher returns a matcher of the given match type for terms
func NamedMatcher(matchType string, terms []string) (Matcher, error) {
	switch strings.ToLower(matchType) {
	case MatchEquals:
		terms = slices.Clone(terms)
		return MatcherFunc(func(name string) bool {
			return slices.Contains(terms, name)
		}), nil
	case MatchEqualsIgnoreCase:
		return MatcherFunc(func(name string) bool {
			return slices.ContainsFunc(terms, func(t string) bool { return strings.EqualFold(t, name) })
		}), nil
	case MatchContains:
		terms = slices.Clone(terms)
		return MatcherFunc(func(name string) bool {
			return slices.ContainsFunc(terms, func(t string) bool { return strings.Contains(name, t) })
		}), nil
	case MatchContainsIgnoreCase:
		lower := make([]string, len(terms))
		for i, t := range terms {
			lower[i] = strings.ToLower(t)
		}

		return MatcherFunc(func(name string) bool {
			name = strings.ToLower(name)
			return slices.ContainsFunc(lower, func(t string) bool { return strings.Contains(name, t) })
		}), nil
	case MatchRegexp:
		return regexpMatcher(terms)
	case MatchNone:
		return MatcherFunc(func(string) bool { return false }), nil
	default:
		return nil, fmt.Errorf("unknown match type %q", matchType)
	}
}

// regexpMatcher combines terms into a single expression anchored on both ends:
// [RE1, RE2, ..., REn] -> \A(?:RE1|RE2|...|REn)\z
func regexpMatcher(terms []string) (Matcher, error) {
	if len(terms) == 0 {
		return MatcherFunc(func(string) bool { return false }), nil
	}

	exprs := make([]string, len(terms))
	for i, t := range terms {
		if _, err := regexp.Compile(t); err != nil {
			return nil, fmt.Errorf("malformed regexp %q: %w", t, err)
		}

		t = strings.TrimPrefix(strings.TrimLeft(t, "^"), `\A`)
		t = strings.TrimSuffix(strings.TrimRight(t, "$"), `\z`)
		exprs[i] = "(?:" + t + ")"
	}

	re, err := regexp.Compile(`\A(?:` + strings.Join(exprs, "|") + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("malformed regexp: %w", err)
	}

	return MatcherFunc(re.MatchString), nil
}

// DefaultSecretsMatcher matches parameter names containing "key", "pass",
// "secret" or "token" ignoring the case
func DefaultSecretsMatcher() Matcher {
	m, _ := NamedMatcher(MatchContainsIgnoreCase, []string{"key", "pass", "secret", "token"})
	return m
}
