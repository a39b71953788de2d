// Package command parses chat commands addressed to the clip queue.
//
// A command is the configured prefix followed by a verb and its arguments, for example
// "!cq removeidx 4" or "!cq providers twitch-clip,youtube". Parse only tokenizes; argument
// validation happens where the command is executed.
package command

import (
	"strings"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "!cq"

// Kind names a command verb.
type Kind string

const (
	Open        Kind = "open"
	Close       Kind = "close"
	Next        Kind = "next"
	Skip        Kind = "skip"
	VoteSkip    Kind = "voteskip"
	Previous    Kind = "prev"
	Cancel      Kind = "cancel"
	Remove      Kind = "remove"
	RemoveIdx   Kind = "removeidx"
	Add         Kind = "add"
	Bump        Kind = "bump"
	Highlight   Kind = "ht"
	Clear       Kind = "clear"
	PurgeMemory Kind = "purgememory"
	Autoplay    Kind = "autoplay"
	Delay       Kind = "delay"
	Limit       Kind = "limit"
	Replace     Kind = "replace"
	Providers   Kind = "providers"
	Reorder     Kind = "reorder"
	Votes       Kind = "votes"
)

var kinds = map[Kind]bool{
	Open: true, Close: true, Next: true, Skip: true, VoteSkip: true, Previous: true, Cancel: true,
	Remove: true, RemoveIdx: true, Add: true, Bump: true, Highlight: true, Clear: true,
	PurgeMemory: true, Autoplay: true, Delay: true, Limit: true, Replace: true, Providers: true,
	Reorder: true, Votes: true,
}

// Privileged reports whether only moderators may run k.
func (k Kind) Privileged() bool { return k != VoteSkip }

// Command is a parsed command.
type Command struct {
	Kind Kind
	Args []string
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Rest joins every argument with single spaces.
func (c Command) Rest() string { return strings.Join(c.Args, " ") }

func (c Command) String() string {
	if len(c.Args) == 0 {
		return string(c.Kind)
	}
	return string(c.Kind) + " " + c.Rest()
}

// Parse reads text as a command for prefix. It reports false when text is not addressed to the
// queue or names an unknown verb.
func Parse(text, prefix string) (Command, bool) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	fields := strings.Fields(text)
	if len(fields) < 2 || !strings.EqualFold(fields[0], prefix) {
		return Command{}, false
	}
	return ParseVerb(strings.Join(fields[1:], " "))
}

// ParseVerb reads a command without prefix, as sent by the admin API.
func ParseVerb(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, false
	}
	k := Kind(strings.ToLower(fields[0]))
	if !kinds[k] {
		return Command{}, false
	}
	return Command{Kind: k, Args: fields[1:]}, true
}

// Identity is whoever issued a submission or command.
type Identity struct {
	Name        string
	Moderator   bool
	Broadcaster bool
}

// Privileged reports whether the identity may run moderator commands.
func (id Identity) Privileged() bool { return id.Moderator || id.Broadcaster }

// Allowed reports whether id may run c.
func Allowed(c Command, id Identity) bool {
	return !c.Kind.Privileged() || id.Privileged()
}
