package parser

import (
	"regexp"
	"strings"
)

// signatureDelimiter matches the first line that starts a signature: a bare
// "--" marker, a short closing salutation line, or a mobile client footer.
// A salutation may carry at most two more words, so body sentences such as
// "Thanks for the order." do not count.
var signatureDelimiter = regexp.MustCompile(`(?im)^(?:--[ \t]*` +
	`|(?:(?:best|kind|warm)[ \t]+)?regards[ \t]*[,!]?` +
	`|(?:best|sincerely|cheers|many thanks|thanks|thank you|yours truly|respectfully)(?:[ \t]+\w+){0,2}[ \t]*[,!]?` +
	`|sent from my\b.*)\r?$`)

const fallbackSignatureLines = 5

// ExtractSignature returns the trailing signature-like block of body: the
// text after the first delimiter line, or the last five non-blank lines when
// no delimiter leaves anything behind it.
func ExtractSignature(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")

	if loc := signatureDelimiter.FindStringIndex(body); loc != nil {
		if block := trimBlock(body[loc[1]:]); block != "" {
			return block
		}
	}

	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > fallbackSignatureLines {
		lines = lines[len(lines)-fallbackSignatureLines:]
	}
	return strings.Join(lines, "\n")
}

// TruncateTail keeps the last max characters of s.
func TruncateTail(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[len(runes)-max:])
}

func trimBlock(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.Trim(strings.Join(out, "\n"), "\n ")
}
