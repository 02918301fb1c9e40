package queryir

// Value is a scalar expression.
type Value interface {
	valueNode()
}

// Predicate is a boolean expression.
type Predicate interface {
	predicateNode()
}

// Query is a row source.
type Query interface {
	queryNode()
}

// Col references a column, optionally qualified by a table alias.
type Col struct {
	Table string
	Name  string
}

func (Col) valueNode() {}

// Int is an integer literal.
type Int int64

func (Int) valueNode() {}

// Str is a string literal.
type Str string

func (Str) valueNode() {}

// Null is the SQL NULL literal.
type Null struct{}

func (Null) valueNode() {}

// BitAnd is Left & Mask.
type BitAnd struct {
	Left Value
	Mask int64
}

func (BitAnd) valueNode() {}

// Lower is lower(Arg).
type Lower struct {
	Arg Value
}

func (Lower) valueNode() {}

// EscapeHTML escapes & < > " ' in Arg the same way rendered content is
// escaped, so highlight offsets line up with what clients display.
type EscapeHTML struct {
	Arg Value
}

func (EscapeHTML) valueNode() {}

// SearchMode selects the full-text index contract.
type SearchMode int

const (
	// SearchKeyword is the token/keyword index (pgroonga-style).
	SearchKeyword SearchMode = iota + 1
	// SearchStemmed is the stemmed phrase index (tsearch-style).
	SearchStemmed
)

func (m SearchMode) String() string {
	switch m {
	case SearchKeyword:
		return "keyword"
	case SearchStemmed:
		return "stemmed"
	default:
		return "unknown"
	}
}

// Highlight markers wrapped around stemmed matches before offsets are
// computed. They never occur in rendered content or escaped topics.
const (
	HighlightStart = "<ts-match>"
	HighlightStop  = "</ts-match>"
)

// MatchPositions computes [offset, length] pairs of Query matches inside
// Source. Backends without index support return NULL.
type MatchPositions struct {
	Source Value
	Mode   SearchMode
	Config string
	Query  string
}

func (MatchPositions) valueNode() {}

// Const is TRUE or FALSE.
type Const bool

func (Const) predicateNode() {}

// True and False are the constant predicates.
const (
	True  = Const(true)
	False = Const(false)
)

// Truthy tests a boolean column.
type Truthy struct {
	Col Col
}

func (Truthy) predicateNode() {}

// CmpOp is a comparison operator.
type CmpOp int

const (
	OpEq CmpOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (o CmpOp) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// Compare is Left Op Right.
type Compare struct {
	Left  Value
	Op    CmpOp
	Right Value
}

func (Compare) predicateNode() {}

// In is Left IN (Values). An empty list matches nothing.
type In struct {
	Left   Value
	Values []int64
}

func (In) predicateNode() {}

// Like matches Left against a LIKE pattern whose wildcards are already
// placed and whose literal parts are escaped with a backslash. Fold makes
// the match case-insensitive.
type Like struct {
	Left    Value
	Pattern string
	Fold    bool
}

func (Like) predicateNode() {}

// TextSearch matches Query against a full-text index column. Keywords and
// Fallback drive backends without the index: every keyword must appear in
// one of the Fallback columns.
type TextSearch struct {
	Column   Col
	Mode     SearchMode
	Config   string
	Query    string
	Keywords []string
	Fallback []Col
}

func (TextSearch) predicateNode() {}

// Exists is EXISTS (SELECT 1 FROM From WHERE Where...). Where may refer
// to columns of the enclosing query.
type Exists struct {
	From  Table
	Where []Predicate
}

func (Exists) predicateNode() {}

// And is a conjunction. Empty means TRUE.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. Empty means FALSE.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Table is a table reference with an optional alias.
type Table struct {
	Name  string
	Alias string
}

// Join is an inner join.
type Join struct {
	Table Table
	On    Predicate
}

// Column is an output column.
type Column struct {
	Value Value
	Alias string
}

// Order is one ORDER BY key.
type Order struct {
	Value Value
	Desc  bool
}

// Select is a single SELECT over a base table, its joins and a list of
// conjuncts. Limit zero means no limit.
type Select struct {
	Columns []Column
	From    Table
	Joins   []Join
	Where   []Predicate
	OrderBy []Order
	Limit   int
}

func (*Select) queryNode() {}

// Page combines one or two limited selects with UNION ALL and orders the
// result by the OrderBy output column.
type Page struct {
	Parts   []*Select
	OrderBy string
}

func (*Page) queryNode() {}
