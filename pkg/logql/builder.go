package logql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// QueryBuilder constructs safe LogQL query strings.
// Zero value is ready to use.
type QueryBuilder struct{}

// TailParams selects the log stream a poller follows.
type TailParams struct {
	Service   string
	Namespace string
	Levels    []string
	Keyword   string
}

// BuildTailQuery returns the LogQL query for tailing a service, optionally
// narrowed to a set of levels and a line substring.
func (b QueryBuilder) BuildTailQuery(p TailParams) string {
	parts := []string{b.buildSelector(p.Service, p.Namespace)}

	if kf := b.buildKeywordFilter(p.Keyword); kf != "" {
		parts = append(parts, kf)
	}
	if lf := b.buildLevelFilter(p.Levels); lf != "" {
		parts = append(parts, lf)
	}

	return strings.Join(parts, " ")
}

func (b QueryBuilder) buildSelector(service, namespace string) string {
	if namespace != "" {
		return fmt.Sprintf(`{service=%s, namespace=%s}`, strconv.Quote(service), strconv.Quote(namespace))
	}
	return fmt.Sprintf(`{service=%s}`, strconv.Quote(service))
}

func (b QueryBuilder) buildLevelFilter(levels []string) string {
	if len(levels) == 0 {
		return ""
	}
	lower := make([]string, len(levels))
	for i, l := range levels {
		lower[i] = regexp.QuoteMeta(strings.ToLower(l))
	}
	return fmt.Sprintf(`| level =~ %s`, strconv.Quote("(?i)("+strings.Join(lower, "|")+")"))
}

func (b QueryBuilder) buildKeywordFilter(keyword string) string {
	if keyword == "" {
		return ""
	}
	// Raw strings cannot contain a backtick.
	if strings.Contains(keyword, "`") {
		return "|= " + strconv.Quote(keyword)
	}
	return fmt.Sprintf("|= `%s`", keyword)
}
