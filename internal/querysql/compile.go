package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/narrow/internal/queryir"
)

// tsHeadlineOptions marks every stemmed match with the highlight markers.
var tsHeadlineOptions = fmt.Sprintf("HighlightAll = TRUE, StartSel = %s, StopSel = %s",
	queryir.HighlightStart, queryir.HighlightStop)

// Compile lowers a query tree to SQL for the dialect. Literals are always
// bound parameters, never interpolated.
func Compile(d Dialect, q queryir.Query) (string, []any, error) {
	if d != SQLite && d != Postgres {
		return "", nil, fmt.Errorf("compile: unsupported dialect %d", d)
	}
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("compile: invalid query: %s", strings.Join(res.Problems, "; "))
	}

	c := &compiler{dialect: d}
	if err := c.query(q); err != nil {
		return "", nil, err
	}
	return c.sb.String(), c.args, nil
}

// CompilePredicate lowers a single predicate, for callers that splice it
// into hand-written SQL.
func CompilePredicate(d Dialect, p queryir.Predicate) (string, []any, error) {
	c := &compiler{dialect: d}
	if err := c.predicate(p); err != nil {
		return "", nil, err
	}
	return c.sb.String(), c.args, nil
}

type compiler struct {
	dialect Dialect
	sb      strings.Builder
	args    []any
}

func (c *compiler) write(parts ...string) {
	for _, p := range parts {
		c.sb.WriteString(p)
	}
}

func (c *compiler) bind(v any) {
	c.args = append(c.args, v)
	c.sb.WriteString(c.dialect.Placeholder(len(c.args)))
}

func (c *compiler) query(q queryir.Query) error {
	switch query := q.(type) {
	case *queryir.Select:
		return c.selectStmt(query)
	case *queryir.Page:
		return c.page(query)
	default:
		return fmt.Errorf("compile: unsupported query type %T", q)
	}
}

func (c *compiler) page(p *queryir.Page) error {
	c.write("SELECT * FROM (")
	if len(p.Parts) == 1 {
		if err := c.selectStmt(p.Parts[0]); err != nil {
			return err
		}
	} else {
		for i, part := range p.Parts {
			if i > 0 {
				c.write(" UNION ALL ")
			}
			c.write("SELECT * FROM (")
			if err := c.selectStmt(part); err != nil {
				return err
			}
			c.write(fmt.Sprintf(") AS part_%d", i+1))
		}
	}
	c.write(") AS window_rows ORDER BY ", p.OrderBy, " ASC")
	return nil
}

func (c *compiler) selectStmt(s *queryir.Select) error {
	c.write("SELECT ")
	for i, col := range s.Columns {
		if i > 0 {
			c.write(", ")
		}
		if err := c.value(col.Value); err != nil {
			return err
		}
		if col.Alias != "" {
			c.write(" AS ", col.Alias)
		}
	}

	c.write(" FROM ")
	c.table(s.From)
	for _, j := range s.Joins {
		c.write(" JOIN ")
		c.table(j.Table)
		c.write(" ON ")
		if err := c.predicate(j.On); err != nil {
			return err
		}
	}

	if len(s.Where) > 0 {
		c.write(" WHERE ")
		if err := c.conjunction(s.Where); err != nil {
			return err
		}
	}

	if len(s.OrderBy) > 0 {
		c.write(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				c.write(", ")
			}
			if err := c.value(o.Value); err != nil {
				return err
			}
			if o.Desc {
				c.write(" DESC")
			} else {
				c.write(" ASC")
			}
		}
	}

	if s.Limit > 0 {
		c.write(" LIMIT ")
		c.bind(s.Limit)
	}
	return nil
}

func (c *compiler) table(t queryir.Table) {
	c.write(t.Name)
	if t.Alias != "" {
		c.write(" ", t.Alias)
	}
}

func (c *compiler) conjunction(preds []queryir.Predicate) error {
	for i, p := range preds {
		if i > 0 {
			c.write(" AND ")
		}
		if err := c.predicate(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) predicate(p queryir.Predicate) error {
	switch pred := p.(type) {
	case queryir.Const:
		if pred {
			c.write("(1 = 1)")
		} else {
			c.write("(1 = 0)")
		}
		return nil

	case queryir.Truthy:
		return c.value(pred.Col)

	case queryir.Compare:
		if err := c.value(pred.Left); err != nil {
			return err
		}
		c.write(" ", pred.Op.String(), " ")
		return c.value(pred.Right)

	case queryir.In:
		if len(pred.Values) == 0 {
			c.write("(1 = 0)")
			return nil
		}
		if err := c.value(pred.Left); err != nil {
			return err
		}
		c.write(" IN (")
		for i, v := range pred.Values {
			if i > 0 {
				c.write(", ")
			}
			c.bind(v)
		}
		c.write(")")
		return nil

	case queryir.Like:
		if err := c.value(pred.Left); err != nil {
			return err
		}
		if pred.Fold && c.dialect == Postgres {
			c.write(" ILIKE ")
		} else {
			c.write(" LIKE ")
		}
		c.bind(pred.Pattern)
		c.write(` ESCAPE '\'`)
		return nil

	case queryir.TextSearch:
		return c.textSearch(pred)

	case queryir.Exists:
		c.write("EXISTS (SELECT 1 FROM ")
		c.table(pred.From)
		if len(pred.Where) > 0 {
			c.write(" WHERE ")
			if err := c.conjunction(pred.Where); err != nil {
				return err
			}
		}
		c.write(")")
		return nil

	case queryir.And:
		if len(pred.Predicates) == 0 {
			c.write("(1 = 1)")
			return nil
		}
		return c.combine(" AND ", pred.Predicates)

	case queryir.Or:
		if len(pred.Predicates) == 0 {
			c.write("(1 = 0)")
			return nil
		}
		return c.combine(" OR ", pred.Predicates)

	case queryir.Not:
		c.write("NOT (")
		if err := c.predicate(pred.Predicate); err != nil {
			return err
		}
		c.write(")")
		return nil

	default:
		return fmt.Errorf("compile: unsupported predicate type %T", p)
	}
}

func (c *compiler) combine(sep string, preds []queryir.Predicate) error {
	c.write("(")
	for i, p := range preds {
		if i > 0 {
			c.write(sep)
		}
		if err := c.predicate(p); err != nil {
			return err
		}
	}
	c.write(")")
	return nil
}

func (c *compiler) textSearch(ts queryir.TextSearch) error {
	if c.dialect == SQLite {
		return c.likeSearch(ts)
	}

	if err := c.value(ts.Column); err != nil {
		return err
	}
	switch ts.Mode {
	case queryir.SearchKeyword:
		c.write(" &@~ ")
		c.bind(ts.Query)
	case queryir.SearchStemmed:
		c.write(" @@ ")
		c.tsquery(ts.Config, ts.Query)
	default:
		return fmt.Errorf("compile: unknown search mode %d", ts.Mode)
	}
	return nil
}

// likeSearch requires every keyword to appear, case-insensitively, in at
// least one fallback column.
func (c *compiler) likeSearch(ts queryir.TextSearch) error {
	if len(ts.Keywords) == 0 || len(ts.Fallback) == 0 {
		c.write("(1 = 0)")
		return nil
	}
	preds := make([]queryir.Predicate, 0, len(ts.Keywords))
	for _, kw := range ts.Keywords {
		alts := make([]queryir.Predicate, 0, len(ts.Fallback))
		for _, col := range ts.Fallback {
			alts = append(alts, queryir.Like{Left: queryir.Lower{Arg: col}, Pattern: "%" + EscapeLike(strings.ToLower(kw)) + "%", Fold: true})
		}
		preds = append(preds, queryir.Or{Predicates: alts})
	}
	return c.combine(" AND ", preds)
}

func (c *compiler) tsquery(config, query string) {
	c.write("plainto_tsquery(CAST(")
	c.bind(config)
	c.write(" AS regconfig), ")
	c.bind(query)
	c.write(")")
}

func (c *compiler) value(v queryir.Value) error {
	switch val := v.(type) {
	case queryir.Col:
		if val.Table != "" {
			c.write(val.Table, ".")
		}
		c.write(val.Name)
		return nil

	case queryir.Int:
		c.bind(int64(val))
		return nil

	case queryir.Str:
		c.bind(string(val))
		return nil

	case queryir.Null:
		c.write("NULL")
		return nil

	case queryir.BitAnd:
		c.write("(")
		if err := c.value(val.Left); err != nil {
			return err
		}
		c.write(" & ")
		c.bind(val.Mask)
		c.write(")")
		return nil

	case queryir.Lower:
		c.write("lower(")
		if err := c.value(val.Arg); err != nil {
			return err
		}
		c.write(")")
		return nil

	case queryir.EscapeHTML:
		return c.escapeHTML(val.Arg)

	case queryir.MatchPositions:
		return c.matchPositions(val)

	default:
		return fmt.Errorf("compile: unsupported value type %T", v)
	}
}

// htmlEscapes is the replacement order of the escape_html SQL function;
// & must go first.
var htmlEscapes = [][2]string{
	{"&", "&amp;"},
	{"<", "&lt;"},
	{">", "&gt;"},
	{`"`, "&quot;"},
	{"'", "&#39;"},
}

func (c *compiler) escapeHTML(arg queryir.Value) error {
	if c.dialect == Postgres {
		c.write("escape_html(")
		if err := c.value(arg); err != nil {
			return err
		}
		c.write(")")
		return nil
	}

	c.write(strings.Repeat("replace(", len(htmlEscapes)))
	if err := c.value(arg); err != nil {
		return err
	}
	for _, e := range htmlEscapes {
		c.write(", ", sqlString(e[0]), ", ", sqlString(e[1]), ")")
	}
	return nil
}

func (c *compiler) matchPositions(mp queryir.MatchPositions) error {
	if c.dialect == SQLite {
		c.write("NULL")
		return nil
	}

	switch mp.Mode {
	case queryir.SearchKeyword:
		c.write("pgroonga_match_positions_character(")
		if err := c.value(mp.Source); err != nil {
			return err
		}
		c.write(", pgroonga_query_extract_keywords(")
		c.bind(mp.Query)
		c.write("))")
		return nil

	case queryir.SearchStemmed:
		stop := len(queryir.HighlightStop)
		c.write(fmt.Sprintf("ARRAY(SELECT ARRAY[sum(length(part) - %d) OVER (ROWS BETWEEN UNBOUNDED PRECEDING AND 1 PRECEDING) + %d, strpos(part, %s) - 1] FROM unnest(string_to_array(ts_headline(CAST(",
			stop, stop, sqlString(queryir.HighlightStop)))
		c.bind(mp.Config)
		c.write(" AS regconfig), ")
		if err := c.value(mp.Source); err != nil {
			return err
		}
		c.write(", ")
		c.tsquery(mp.Config, mp.Query)
		c.write(", ", sqlString(tsHeadlineOptions), "), ", sqlString(queryir.HighlightStart), ")) AS part OFFSET 1)")
		return nil

	default:
		return fmt.Errorf("compile: unknown search mode %d", mp.Mode)
	}
}

// sqlString quotes a constant known at build time. User input never goes
// through here.
func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// EscapeLike escapes LIKE wildcards so s matches literally with
// ESCAPE '\'.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
