package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// TickerPattern é a união de expressões parciais aplicada ao Ticker.
// Um padrão nil aceita qualquer ticker.
type TickerPattern struct {
	source []string
	re     *regexp.Regexp
}

func CompileTickerPattern(patterns []string) (*TickerPattern, error) {
	var parts []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}

	re, err := regexp.Compile(strings.Join(parts, "|"))
	if err != nil {
		return nil, fmt.Errorf("padrão de ticker inválido: %w", err)
	}

	return &TickerPattern{source: parts, re: re}, nil
}

func MustCompileTickerPattern(patterns ...string) *TickerPattern {
	p, err := CompileTickerPattern(patterns)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *TickerPattern) Match(ticker string) bool {
	if p == nil {
		return true
	}
	return p.re.MatchString(ticker)
}

func (p *TickerPattern) String() string {
	if p == nil {
		return ""
	}
	return p.re.String()
}

func (p *TickerPattern) Parts() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.source...)
}
