package logging

import "regexp"

const maskPlaceholder = "[REDACTED]"

var (
	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-\._~+/]+=*)`)
	keyValuePattern = regexp.MustCompile(
		`(?i)((?:"|')?(?:api[_-]?key|access[_-]?token|token|secret|password)(?:"|')?\s*(?:=|:)\s*)(?:"|')?([^"'\s,;]+)((?:"|')?)`,
	)
	standaloneKeyPattern = regexp.MustCompile(`(?i)sk-[A-Za-z0-9\-_]{16,}`)
)

// MaskSecrets redacts credential material from a log line before it reaches
// any sink. Request payloads are never logged verbatim, but headers and
// config dumps can still leak keys through error messages.
func MaskSecrets(line string) string {
	sanitized := bearerPattern.ReplaceAllStringFunc(line, func(match string) string {
		parts := bearerPattern.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		return parts[1] + maskPlaceholder
	})

	sanitized = keyValuePattern.ReplaceAllStringFunc(sanitized, func(match string) string {
		parts := keyValuePattern.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		return parts[1] + maskPlaceholder + parts[3]
	})

	return standaloneKeyPattern.ReplaceAllString(sanitized, maskPlaceholder)
}

// MaskKey shortens a credential for display, keeping enough of the prefix
// and suffix to identify which key is loaded.
func MaskKey(key string) string {
	runes := []rune(key)
	if len(runes) <= 12 {
		return maskPlaceholder
	}
	return string(runes[:6]) + "..." + string(runes[len(runes)-4:])
}
