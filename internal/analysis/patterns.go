package analysis

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/loglens/pkg/models"
)

// Normalization regexes compiled once at package init.
var (
	reDatetime   = regexp.MustCompile(`^\[?\d{4}[-/]\d{2}[-/]\d{2}[T ]\d{2}:\d{2}:\d{2}([.,]\d+)?(Z|[+-]\d{2}:?\d{2})?\]?\s*`)
	reHexAddr    = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	reUUID       = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	reIPv4       = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(:\d+)?\b`)
	reDuration   = regexp.MustCompile(`\b\d+(\.\d+)?(ns|us|µs|ms|s|m|h)\b`)
	reBracketNum = regexp.MustCompile(`\[\d+\]`)
	reParenNum   = regexp.MustCompile(`\(\d+\)`)
	reNumber     = regexp.MustCompile(`\b\d+\b`)
	reWhitespace = regexp.MustCompile(`\s+`)
	reLevelKV    = regexp.MustCompile(`(?i)\blevel=["']?([a-z]+)`)
	reLevelWord  = regexp.MustCompile(`(?i)\b(fatal|panic|critical|crit|error|err|warning|warn)\b`)
)

const (
	maxTemplateBytes = 500
	maxExampleBytes  = 2000
	maxDominant      = 3
)

// ExtractPatterns groups the chunk's lines by fingerprint.
// Returns patterns sorted by (Count DESC, Severity DESC, Template ASC).
// Returns empty slice for an empty chunk (never nil).
func ExtractPatterns(chunk models.LogChunk) []models.Pattern {
	if chunk.Len() == 0 {
		return []models.Pattern{}
	}

	groups := make(map[string]*models.Pattern)
	order := make([]string, 0)

	for i := 0; i < chunk.Len(); i++ {
		line := chunk.Line(i)
		template := NormalizeMessage(line)
		fp := fingerprintNormalized(template)
		p, exists := groups[fp]
		if !exists {
			p = &models.Pattern{
				Signature: fp,
				Template:  template,
				Example:   truncateString(line, maxExampleBytes),
				Severity:  DetectSeverity(line),
			}
			groups[fp] = p
			order = append(order, fp)
		}

		p.Count++
		if sev := DetectSeverity(line); sev > p.Severity {
			p.Severity = sev
		}
	}

	patterns := make([]models.Pattern, 0, len(groups))
	for _, fp := range order {
		patterns = append(patterns, *groups[fp])
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		if patterns[i].Severity != patterns[j].Severity {
			return patterns[i].Severity > patterns[j].Severity
		}
		return patterns[i].Template < patterns[j].Template
	})

	return patterns
}

// ResolveContext reduces patterns to the summary handed to inference.
// An empty pattern set yields an unclassified context.
func ResolveContext(patterns []models.Pattern) models.Context {
	if len(patterns) == 0 {
		return models.Context{
			Dominant:     []models.Pattern{},
			Patterns:     []models.Pattern{},
			Severity:     models.SeverityInfo,
			Description:  "unclassified",
			Unclassified: true,
		}
	}

	all := make([]models.Pattern, len(patterns))
	copy(all, patterns)

	top := 0
	total := 0
	severity := models.SeverityInfo
	for _, p := range all {
		total += p.Count
		if p.Count > top {
			top = p.Count
		}
		if p.Severity > severity {
			severity = p.Severity
		}
	}

	dominant := make([]models.Pattern, 0, maxDominant)
	for _, p := range all {
		if p.Count == top && len(dominant) < maxDominant {
			dominant = append(dominant, p)
		}
	}

	return models.Context{
		Dominant:    dominant,
		Patterns:    all,
		Severity:    severity,
		Description: describe(dominant, len(all), total, severity),
		TotalLines:  total,
	}
}

func describe(dominant []models.Pattern, distinct, total int, severity models.Severity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d lines, %d distinct patterns, max severity %s.", total, distinct, severity)
	for _, p := range dominant {
		fmt.Fprintf(&b, " dominant (%d/%d): %s.", p.Count, total, p.Template)
	}
	return b.String()
}

// Fingerprint computes a stable SHA-256 fingerprint for a log message.
func Fingerprint(message string) string {
	return fingerprintNormalized(NormalizeMessage(message))
}

func fingerprintNormalized(normalized string) string {
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hash)
}

// NormalizeMessage applies all normalization rules to a log message.
func NormalizeMessage(msg string) string {
	msg = reDatetime.ReplaceAllString(msg, "")
	msg = reHexAddr.ReplaceAllString(msg, "0xADDR")
	msg = reUUID.ReplaceAllString(msg, "UUID")
	msg = reIPv4.ReplaceAllString(msg, "IP")
	msg = reDuration.ReplaceAllString(msg, "DUR")
	msg = reBracketNum.ReplaceAllString(msg, "[N]")
	msg = reParenNum.ReplaceAllString(msg, "(N)")
	msg = reNumber.ReplaceAllString(msg, "N")
	msg = reWhitespace.ReplaceAllString(msg, " ")
	msg = strings.ToLower(msg)
	msg = strings.TrimSpace(msg)
	msg = truncateString(msg, maxTemplateBytes)
	return msg
}

// DetectSeverity infers the severity of a raw log line from its level marker.
// A level=... key/value pair wins over bare keywords.
func DetectSeverity(line string) models.Severity {
	if m := reLevelKV.FindStringSubmatch(line); m != nil {
		return LevelSeverity(m[1])
	}
	sev := models.SeverityInfo
	for _, m := range reLevelWord.FindAllString(line, -1) {
		if s := LevelSeverity(m); s > sev {
			sev = s
		}
	}
	return sev
}

// LevelSeverity maps a log level string to a severity.
func LevelSeverity(level string) models.Severity {
	switch strings.ToUpper(level) {
	case "FATAL", "PANIC":
		return models.SeverityFatal
	case "CRITICAL", "CRIT":
		return models.SeverityCritical
	case "ERROR", "ERR":
		return models.SeverityError
	case "WARN", "WARNING":
		return models.SeverityWarn
	default:
		return models.SeverityInfo
	}
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
