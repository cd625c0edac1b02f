// Package binding resolves a receiver operation against delegate candidates.
//
// The Registry turns one parameter tag into an argument source, the
// Resolver builds a scored Plan for one candidate, the Chain compares two
// valid plans and the Selector folds all candidates into a single winner.
package binding

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/bindsmith/internal/diagnostics"
)

// TagKind enumerates the parameter roles a delegate can declare.
type TagKind int

const (
	TagNone     TagKind = iota // untagged, bound by declaration order
	TagArgument                // a specific receiver argument
	TagThis                    // the receiver instance
	TagOrigin                  // a runtime hint describing the receiver
	TagField                   // a field of the receiver's declaring type
	TagAllArguments            // every receiver argument as one slice
)

func (k TagKind) String() string {
	switch k {
	case TagNone:
		return "none"
	case TagArgument:
		return "arg"
	case TagThis:
		return "this"
	case TagOrigin:
		return "origin"
	case TagField:
		return "field"
	case TagAllArguments:
		return "all"
	default:
		return fmt.Sprintf("TagKind(%d)", int(k))
	}
}

// Tag is the role attached to one delegate parameter. The zero value is the
// untagged role.
type Tag struct {
	kind  TagKind
	index int
	field string
	slack bool
}

func Untagged() Tag { return Tag{} }
func Argument(index int) Tag { return Tag{kind: TagArgument, index: index} }
func This() Tag { return Tag{kind: TagThis} }
func Origin() Tag { return Tag{kind: TagOrigin} }
func FieldValue(name string) Tag { return Tag{kind: TagField, field: name} }

// AllArguments collects the receiver arguments into a slice. A strict tag
// fails when any argument does not fit the element type; a slack tag leaves
// such arguments out.
func AllArguments(slack bool) Tag { return Tag{kind: TagAllArguments, slack: slack} }

func (t Tag) Kind() TagKind { return t.kind }

// Index returns the receiver slot of an argument tag.
func (t Tag) Index() (int, bool) {
	if t.kind != TagArgument {
		return 0, false
	}
	return t.index, true
}

// Field returns the field name of a field tag.
func (t Tag) Field() (string, bool) {
	if t.kind != TagField {
		return "", false
	}
	return t.field, true
}

// Slack reports whether an all-arguments tag skips incompatible arguments.
func (t Tag) Slack() bool { return t.kind == TagAllArguments && t.slack }

func (t Tag) String() string {
	switch t.kind {
	case TagArgument:
		return "arg(" + strconv.Itoa(t.index) + ")"
	case TagField:
		return "field(" + t.field + ")"
	case TagAllArguments:
		if t.slack {
			return "all(slack)"
		}
		return "all"
	case TagNone:
		return ""
	default:
		return t.kind.String()
	}
}

// ParseTag reads the textual tag syntax shared by configuration files and
// source directives: "", "arg(N)", "this", "origin", "field(name)" and
// "all" with an optional "strict" or "slack" mode.
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Untagged(), nil
	}
	name, arg, hasArg := s, "", false
	if open := strings.IndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return Tag{}, diagnostics.Configuration("malformed tag %q", s)
		}
		name, arg, hasArg = s[:open], strings.TrimSpace(s[open+1:len(s)-1]), true
	}
	switch strings.ToLower(name) {
	case "arg", "argument":
		if !hasArg {
			return Tag{}, diagnostics.Configuration("tag %q needs an index", s)
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return Tag{}, diagnostics.Configuration("tag %q: index must be a non-negative integer", s)
		}
		return Argument(n), nil
	case "this":
		if hasArg {
			return Tag{}, diagnostics.Configuration("tag %q takes no argument", s)
		}
		return This(), nil
	case "origin":
		if hasArg {
			return Tag{}, diagnostics.Configuration("tag %q takes no argument", s)
		}
		return Origin(), nil
	case "field":
		if !hasArg || arg == "" {
			return Tag{}, diagnostics.Configuration("tag %q needs a field name", s)
		}
		return FieldValue(arg), nil
	case "all", "allarguments":
		switch strings.ToLower(arg) {
		case "", "strict":
			return AllArguments(false), nil
		case "slack":
			return AllArguments(true), nil
		}
		return Tag{}, diagnostics.Configuration("tag %q: mode must be strict or slack", s)
	}
	return Tag{}, diagnostics.Configuration("unknown tag %q", s)
}
