// Package utils provides text transformations for Slack message content.
package utils

import (
	"regexp"
	"strings"
)

// slackRefPattern matches Slack's bracketed reference syntax <MARK?TARGET(|LABEL)?>
// where MARK is one of @ (user mention), # (channel reference), ! (special
// mention) or absent (links).
var slackRefPattern = regexp.MustCompile(`<(?P<mark>[@#!])?(?P<target>[^<>|]+)(?:\|(?P<label>[^<>]*))?>`)

// leadingMentionPattern matches a single user mention at the start of a
// message, plus any whitespace that follows it.
var leadingMentionPattern = regexp.MustCompile(`^<@[^<>|]+>\s*`)

// Humanize converts Slack's inline markup into plain, issue-friendly text.
// Newlines are collapsed to spaces, backticks escaped so the result can be
// embedded in a fenced code block, and bracketed references rewritten:
//
//	<@U1>         -> @name from users, or @U1 when unknown
//	<!here>       -> @here (the label, if present, is ignored)
//	<#C1|general> -> #general, or #C1 when no label is present
//
// Any other mark passes through as mark + target. Humanize is a pure,
// single-pass function: applying it twice double-escapes backticks.
func Humanize(text string, users map[string]string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "`", "\\`")

	return slackRefPattern.ReplaceAllStringFunc(text, func(ref string) string {
		groups := slackRefPattern.FindStringSubmatch(ref)
		mark := groups[1]
		target := groups[2]
		label := groups[3]

		switch mark {
		case "@":
			if name, ok := users[target]; ok {
				return "@" + name
			}
			return "@" + target
		case "!":
			return "@" + target
		case "#":
			if label != "" {
				return "#" + label
			}
			return "#" + target
		default:
			return mark + target
		}
	})
}

// StripLeadingMention removes a single leading <@USERID> token and the
// whitespace after it. Used for app-mention commands where the bot's own
// mention prefixes the actual command text.
func StripLeadingMention(text string) string {
	return leadingMentionPattern.ReplaceAllString(text, "")
}
