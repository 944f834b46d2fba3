package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	mailtoPrefixConstant   = "mailto:"
	hrefAttributeConstant  = "href"
	textSeparatorConstant  = " "
	querySeparatorConstant = "?"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

type rewriteRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// deobfuscationRules run in order. A spaced " at " only becomes "@" when the domain that follows
// is itself spelled with a dot marker, so prose such as "visit us at www.acme.com" is left alone.
var deobfuscationRules = []rewriteRule{
	{pattern: regexp.MustCompile(`(?i)\s*[\[\(\{]\s*at\s*[\]\)\}]\s*`), replacement: "@"},
	{pattern: regexp.MustCompile(`(?i)([a-z0-9._%+\-]+)\s+at\s+([a-z0-9\-]+(?:(?:\s*[\[\(\{]\s*dot\s*[\]\)\}]\s*|\s+dot\s+)[a-z0-9\-]+)+)\b`), replacement: "$1@$2"},
	{pattern: regexp.MustCompile(`(?i)\s*[\[\(\{]\s*dot\s*[\]\)\}]\s*`), replacement: "."},
	{pattern: regexp.MustCompile(`(?i)([a-z0-9\-])\s+dot\s+([a-z]{2,})\b`), replacement: "$1.$2"},
}

var deniedDomains = map[string]struct{}{
	"example.com":              {},
	"sentry.io":                {},
	"wixpress.com":             {},
	"domain.com":               {},
	"email.com":                {},
	"yourdomain.com":           {},
	"sentry-next.wixpress.com": {},
	"godaddy.com":              {},
}

var deniedLocalParts = map[string]struct{}{
	"noreply":    {},
	"no-reply":   {},
	"donotreply": {},
	"example":    {},
	"test":       {},
	"user":       {},
	"username":   {},
	"email":      {},
	"your":       {},
	"name":       {},
	"us":         {},
	"me":         {},
	"we":         {},
	"you":        {},
}

var deniedSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

// Extract returns the acceptable addresses in an HTML document in first-seen order:
// mailto links, then addresses found in the de-obfuscated text.
func Extract(document string) []string {
	mailtoAddresses, text := scanDocument(document)
	found := newCollector()
	for _, address := range mailtoAddresses {
		if accepted, ok := acceptAddress(address); ok {
			found.addAll([]string{accepted})
		}
	}
	for _, match := range emailPattern.FindAllString(Deobfuscate(text), -1) {
		if accepted, ok := acceptAddress(match); ok {
			found.addAll([]string{accepted})
		}
	}
	return found.values()
}

// Deobfuscate rewrites "[at]", "(at)", " at ", "[dot]" and "(dot)" spellings into plain addresses.
func Deobfuscate(text string) string {
	for _, rule := range deobfuscationRules {
		text = rule.pattern.ReplaceAllString(text, rule.replacement)
	}
	return text
}

// IsDenied reports whether a lowercased address is a placeholder, a tracking address or an asset name.
func IsDenied(address string) bool {
	atIndex := strings.LastIndex(address, "@")
	if atIndex <= 0 {
		return true
	}
	localPart := address[:atIndex]
	domain := address[atIndex+1:]
	if _, denied := deniedLocalParts[localPart]; denied {
		return true
	}
	for deniedDomain := range deniedDomains {
		if matchesDomain(domain, deniedDomain) {
			return true
		}
	}
	for _, suffix := range deniedSuffixes {
		if strings.HasSuffix(address, suffix) {
			return true
		}
	}
	return false
}

func acceptAddress(candidate string) (string, bool) {
	normalized := strings.ToLower(strings.Trim(strings.TrimSpace(candidate), "."))
	if !emailPattern.MatchString(normalized) || emailPattern.FindString(normalized) != normalized {
		return "", false
	}
	if IsDenied(normalized) {
		return "", false
	}
	return normalized, true
}

// scanDocument collects mailto targets and visible text. Script and style contents are skipped.
func scanDocument(document string) ([]string, string) {
	tokenizer := html.NewTokenizer(strings.NewReader(document))
	var mailtoAddresses []string
	var text strings.Builder
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return mailtoAddresses, text.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.DataAtom == atom.Script || token.DataAtom == atom.Style {
				if token.Type == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if token.DataAtom != atom.A {
				continue
			}
			for _, attribute := range token.Attr {
				if attribute.Key != hrefAttributeConstant {
					continue
				}
				if address, isMailto := mailtoAddress(attribute.Val); isMailto {
					mailtoAddresses = append(mailtoAddresses, address)
				}
			}
		case html.EndTagToken:
			token := tokenizer.Token()
			if (token.DataAtom == atom.Script || token.DataAtom == atom.Style) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				text.Write(tokenizer.Text())
				text.WriteString(textSeparatorConstant)
			}
		}
	}
}

func mailtoAddress(href string) (string, bool) {
	trimmedHref := strings.TrimSpace(href)
	if !strings.HasPrefix(strings.ToLower(trimmedHref), mailtoPrefixConstant) {
		return "", false
	}
	address := trimmedHref[len(mailtoPrefixConstant):]
	if queryIndex := strings.Index(address, querySeparatorConstant); queryIndex >= 0 {
		address = address[:queryIndex]
	}
	if unescaped, unescapeError := url.PathUnescape(address); unescapeError == nil {
		address = unescaped
	}
	return address, len(address) > 0
}
