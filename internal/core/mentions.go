package core

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var mentionRe = regexp.MustCompile(`@([A-Za-z][A-Za-z0-9]*(?:[-\.][A-Za-z0-9]+)*)`)

// Broadcast mentions reach everyone in the channel.
var broadcastMentions = map[string]struct{}{"all": {}, "here": {}, "channel": {}}

// ExtractMentions returns the lowercased mention targets in body without the
// @ prefix, in order of first appearance. Email addresses are not mentions.
func ExtractMentions(body string) []string {
	matches := mentionRe.FindAllStringSubmatchIndex(body, -1)
	seen := make(map[string]struct{}, len(matches))
	mentions := make([]string, 0, len(matches))
	for _, match := range matches {
		start := match[0]
		if start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(body[:start])
			if isAlphaNum(prev) {
				continue
			}
		}
		name := strings.ToLower(body[match[2]:match[3]])
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		mentions = append(mentions, name)
	}
	return mentions
}

// Mentions reports whether body mentions name directly or through a
// broadcast mention.
func Mentions(body, name string) bool {
	name = strings.ToLower(strings.TrimPrefix(name, "@"))
	if name == "" {
		return false
	}
	for _, m := range ExtractMentions(body) {
		if m == name || IsBroadcastMention(m) {
			return true
		}
	}
	return false
}

// IsBroadcastMention reports whether mention is @all, @here or @channel.
func IsBroadcastMention(mention string) bool {
	_, ok := broadcastMentions[mention]
	return ok
}

func isAlphaNum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
