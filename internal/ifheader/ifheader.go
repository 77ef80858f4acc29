// Package ifheader parses and evaluates the WebDAV `If:` request header
// (spec §4.4, §4.7): a disjunction of parenthesized condition lists, each
// condition either a bracketed ETag or an angle-bracketed lock token,
// optionally negated.
//
// Grounded on google-go-webdav/cond/{cond.go,lex.go}: a hand-rolled
// recursive-descent parser over a rune lexer producing the same DNF shape
// (IfTag -> []ConditionList -> []Condition), generalized only in naming to
// match this repo's Env contract (ETag lookup + lock-token membership).
package ifheader

import (
	"fmt"
	"net/url"
	"strings"
)

// Env supplies the facts a parsed If-header is evaluated against.
type Env interface {
	// ETag returns the current weak ETag for a resource path.
	ETag(resource string) string
	// Locked reports whether lock token tok currently covers resource.
	Locked(resource, tok string) bool
}

// Condition is a single (possibly negated) state: either a lock token or a
// bracketed ETag.
type Condition struct {
	Not   bool
	Token string
	ETag  string
}

func (c Condition) eval(e Env, resource string) bool {
	var res bool
	if c.Token != "" {
		res = e.Locked(resource, c.Token)
	} else {
		res = e.ETag(resource) == c.ETag
	}
	if c.Not {
		res = !res
	}
	return res
}

func (c Condition) String() string {
	prefix := ""
	if c.Not {
		prefix = "Not "
	}
	if c.Token != "" {
		return prefix + c.Token
	}
	return prefix + "[" + c.ETag + "]"
}

// ConditionList is a parenthesized, AND'ed list of Conditions, optionally
// scoped to a specific tagged resource.
type ConditionList struct {
	Resource   string
	Conditions []Condition
}

func (l *ConditionList) eval(e Env, defaultResource string) bool {
	resource := defaultResource
	if l.Resource != "" {
		resource = l.Resource
	}
	for _, c := range l.Conditions {
		if !c.eval(e, resource) {
			return false
		}
	}
	return true
}

// Tag is a fully parsed `If:` header: a disjunction (OR) of ConditionLists,
// forming a DNF condition over the request.
type Tag struct {
	Lists []*ConditionList
}

// Eval reports whether the header is satisfied for the given default
// resource (the request path).
func (t *Tag) Eval(e Env, defaultResource string) bool {
	if t == nil {
		return true
	}
	for _, l := range t.Lists {
		if l.eval(e, defaultResource) {
			return true
		}
	}
	return false
}

// Tokens returns every lock token mentioned anywhere in the header.
func (t *Tag) Tokens() []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, l := range t.Lists {
		for _, c := range l.Conditions {
			if c.Token != "" {
				out = append(out, c.Token)
			}
		}
	}
	return out
}

// ETags returns every bracketed ETag mentioned anywhere in the header.
func (t *Tag) ETags() []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, l := range t.Lists {
		for _, c := range l.Conditions {
			if c.ETag != "" {
				out = append(out, c.ETag)
			}
		}
	}
	return out
}

// RewriteHosts validates that every tagged resource URI in the header
// names the given host (or no host), rewriting each to a bare path.
func (t *Tag) RewriteHosts(host string) error {
	if t == nil {
		return nil
	}
	for _, l := range t.Lists {
		if l.Resource == "" {
			continue
		}
		u, err := url.Parse(l.Resource)
		if err != nil {
			return err
		}
		if u.Host != "" && u.Host != host {
			return fmt.Errorf("ifheader: resource host %q does not match request host %q", u.Host, host)
		}
		l.Resource = u.Path
	}
	return nil
}

func (t *Tag) String() string {
	parts := make([]string, len(t.Lists))
	for i, l := range t.Lists {
		parts[i] = l.String()
	}
	return strings.Join(parts, " ")
}

func (l *ConditionList) String() string {
	prefix := ""
	if l.Resource != "" {
		prefix = "<" + l.Resource + "> "
	}
	parts := make([]string, len(l.Conditions))
	for i, c := range l.Conditions {
		parts[i] = c.String()
	}
	return prefix + "(" + strings.Join(parts, " ") + ")"
}

// Parse parses a complete `If:` header value.
func Parse(s string) (*Tag, error) {
	t := &Tag{}
	l := newLexer(s)
	for {
		if l.peek() == tokEOF {
			break
		}
		list, err := parseList(l)
		t.Lists = append(t.Lists, list)
		if err != nil {
			return t, fmt.Errorf("ifheader: parsing list: %w", err)
		}
	}
	return t, nil
}

func parseList(l *lexer) (*ConditionList, error) {
	res := &ConditionList{}
	tok := l.peek()
	if tok == '<' {
		l.consume()
		r, err := l.consumeUntil('>')
		res.Resource = r
		if err != nil || r == "" {
			return res, fmt.Errorf("bad resource tag: %w", err)
		}
		tok = l.peek()
	}
	if tok != '(' {
		return res, fmt.Errorf("expected '(' got %q", l.text(tok))
	}
	l.consume()
	tok = l.peek()
	for tok != ')' && tok != tokEOF {
		c, err := parseCondition(l)
		res.Conditions = append(res.Conditions, c)
		if err != nil {
			return res, fmt.Errorf("bad condition: %w", err)
		}
		tok = l.peek()
	}
	if tok != ')' {
		return res, fmt.Errorf("expected ')' got EOF")
	}
	l.consume()
	return res, nil
}

func parseCondition(l *lexer) (Condition, error) {
	var c Condition
	tok := l.peek()
	if tok == tokNot {
		c.Not = true
		l.consume()
		tok = l.peek()
	}
	if tok == '[' {
		l.consume()
		etag, err := l.consumeUntil(']')
		c.ETag = etag
		if etag == "" {
			return c, fmt.Errorf("empty etag")
		}
		return c, err
	}
	raw, err := l.consumeWhile(func(r rune) bool { return r != ')' && r != ' ' })
	if len(raw) >= 2 && raw[0] == '<' {
		raw = raw[1 : len(raw)-1]
	}
	c.Token = raw
	if raw == "" {
		return c, fmt.Errorf("empty condition")
	}
	return c, err
}
