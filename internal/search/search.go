// Package search turns a full-text search operand into query predicates
// and match-offset columns. Two backends exist: Keyword follows the
// pgroonga operator contract and Stemmed follows the Postgres tsearch
// contract. Both lower to LIKE scans on SQLite.
package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/narrow/internal/queryir"
	"github.com/roach88/narrow/internal/querysql"
)

// Columns read by the strategies. The compiler joins messages as "m".
var (
	ContentCol   = queryir.Col{Table: "m", Name: "content"}
	RenderedCol  = queryir.Col{Table: "m", Name: "rendered_content"}
	TopicCol     = queryir.Col{Table: "m", Name: "topic"}
	IsChannelCol = queryir.Col{Table: "m", Name: "is_channel_message"}
	PgroongaCol  = queryir.Col{Table: "m", Name: "search_pgroonga"}
	TsvectorCol  = queryir.Col{Table: "m", Name: "search_tsvector"}
)

// DefaultConfig is the text-search configuration used when none is set.
const DefaultConfig = "english"

// Match is what a strategy contributes for one search operand.
type Match struct {
	Conditions     []queryir.Predicate
	ContentMatches queryir.Value
	TopicMatches   queryir.Value
}

// Strategy compiles a search operand.
type Strategy interface {
	Name() string
	Match(operand string, negated bool) Match
}

// New returns the strategy for a configured backend name.
func New(backend, config string) (Strategy, error) {
	if config == "" {
		config = DefaultConfig
	}
	switch backend {
	case "keyword", "pgroonga":
		return Keyword{}, nil
	case "stemmed", "tsearch", "":
		return Stemmed{Config: config}, nil
	default:
		return nil, fmt.Errorf("unknown search backend %q", backend)
	}
}

var phrasePattern = regexp.MustCompile(`"[^"]+"|\S+`)

// ExtractPhrases returns the quoted phrases of a search string, without
// their quotes.
func ExtractPhrases(s string) []string {
	var phrases []string
	for _, tok := range phrasePattern.FindAllString(s, -1) {
		if len(tok) > 2 && strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) {
			phrases = append(phrases, tok[1:len(tok)-1])
		}
	}
	return phrases
}

// Keywords splits a search string into lower-cased words with phrase
// quotes removed.
func Keywords(s string) []string {
	var words []string
	for _, tok := range phrasePattern.FindAllString(s, -1) {
		words = append(words, strings.Fields(strings.ToLower(strings.Trim(tok, `"`)))...)
	}
	return words
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML escapes s exactly like the escape_html SQL function, so
// search terms line up with rendered content.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

func wrap(negated bool, preds []queryir.Predicate) []queryir.Predicate {
	if !negated {
		return preds
	}
	out := make([]queryir.Predicate, len(preds))
	for i, p := range preds {
		out[i] = queryir.Negate(p)
	}
	return out
}

// Keyword matches with the pgroonga &@~ operator over HTML-escaped input.
type Keyword struct{}

func (Keyword) Name() string { return "keyword" }

func (Keyword) Match(operand string, negated bool) Match {
	escaped := EscapeHTML(operand)
	cond := queryir.TextSearch{
		Column:   PgroongaCol,
		Mode:     queryir.SearchKeyword,
		Query:    escaped,
		Keywords: Keywords(operand),
		Fallback: []queryir.Col{ContentCol, TopicCol},
	}
	return Match{
		Conditions: wrap(negated, []queryir.Predicate{cond}),
		ContentMatches: queryir.MatchPositions{
			Source: RenderedCol,
			Mode:   queryir.SearchKeyword,
			Query:  escaped,
		},
		TopicMatches: queryir.MatchPositions{
			Source: queryir.EscapeHTML{Arg: TopicCol},
			Mode:   queryir.SearchKeyword,
			Query:  escaped,
		},
	}
}

// Stemmed matches with a tsvector column and requires every quoted phrase
// to appear verbatim in the content or, for channel messages, the topic.
type Stemmed struct {
	Config string
}

func (s Stemmed) Name() string { return "stemmed" }

func (s Stemmed) Match(operand string, negated bool) Match {
	var conds []queryir.Predicate
	for _, phrase := range ExtractPhrases(operand) {
		pattern := "%" + querysql.EscapeLike(phrase) + "%"
		conds = append(conds, queryir.AnyOf(
			queryir.Like{Left: ContentCol, Pattern: pattern, Fold: true},
			queryir.AllOf(
				queryir.Like{Left: TopicCol, Pattern: pattern, Fold: true},
				queryir.Truthy{Col: IsChannelCol},
			),
		))
	}
	conds = append(conds, queryir.TextSearch{
		Column:   TsvectorCol,
		Mode:     queryir.SearchStemmed,
		Config:   s.Config,
		Query:    operand,
		Keywords: Keywords(operand),
		Fallback: []queryir.Col{ContentCol, TopicCol},
	})

	return Match{
		Conditions: wrap(negated, conds),
		ContentMatches: queryir.MatchPositions{
			Source: RenderedCol,
			Mode:   queryir.SearchStemmed,
			Config: s.Config,
			Query:  operand,
		},
		TopicMatches: queryir.MatchPositions{
			Source: queryir.EscapeHTML{Arg: TopicCol},
			Mode:   queryir.SearchStemmed,
			Config: s.Config,
			Query:  operand,
		},
	}
}
