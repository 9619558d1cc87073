// Package token defines the lexical token kinds and the CQL vocabulary
// used for highlighting and autocomplete.
package token

import "fmt"

// Kind classifies a lexical token.
type Kind int32

// Token kinds.
const (
	Unknown Kind = iota
	Keyword
	Type
	Function
	String
	Number
	VariablePlaceholder // {{name}} template variables, delimiters included
	Identifier
	Operator
	Punctuation
	Comment
	Whitespace
)

// kindNames maps token kinds to their string representations.
var kindNames = map[Kind]string{
	Unknown:             "UNKNOWN",
	Keyword:             "KEYWORD",
	Type:                "TYPE",
	Function:            "FUNCTION",
	String:              "STRING",
	Number:              "NUMBER",
	VariablePlaceholder: "VARIABLE",
	Identifier:          "IDENT",
	Operator:            "OPERATOR",
	Punctuation:         "PUNCT",
	Comment:             "COMMENT",
	Whitespace:          "WHITESPACE",
}

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND(%d)", k)
}

// Token is a classified span of query text. Start and End are byte
// offsets into the original input; Text is input[Start:End] verbatim.
type Token struct {
	Kind  Kind
	Text  string
	Start int
	End   int
}

// Keywords is the CQL keyword vocabulary, sorted and uppercase.
var Keywords = []string{
	"ADD", "ALL", "ALLOW", "ALTER", "AND", "ANY", "APPLY", "AS", "ASC",
	"AUTHORIZE", "BATCH", "BEGIN", "BY", "CALLED", "CLUSTERING",
	"COLUMNFAMILY", "COMPACT", "CONTAINS", "CREATE", "CUSTOM",
	"DELETE", "DESC", "DESCRIBE", "DISTINCT", "DROP", "EACH_QUORUM",
	"ENTRIES", "EXECUTE", "EXISTS", "FILTERING", "FINALFUNC", "FROM",
	"FULL", "GRANT", "IF", "IN", "INDEX", "INITCOND", "INPUT", "INSERT",
	"INTO", "IS", "JSON", "KEY", "KEYSPACE", "KEYSPACES", "LANGUAGE",
	"LIMIT", "LOCAL_ONE", "LOCAL_QUORUM", "LOGGED", "LOGIN",
	"MATERIALIZED", "MODIFY", "NORECURSIVE", "NOSUPERUSER", "NOT",
	"NULL", "OF", "ON", "ONE", "OR", "ORDER", "PARTITION", "PASSWORD",
	"PER", "PERMISSION", "PERMISSIONS", "PRIMARY", "QUORUM", "RENAME",
	"REPLACE", "RETURNS", "REVOKE", "SCHEMA", "SELECT", "SET", "SFUNC",
	"STATIC", "STORAGE", "STYPE", "SUPERUSER", "TABLE", "THREE",
	"TO", "TOKEN", "TRIGGER", "TRUNCATE", "TTL", "TWO", "TYPE",
	"UNLOGGED", "UPDATE", "USE", "USER", "USERS", "USING", "VALUES",
	"VIEW", "WHERE", "WITH", "WRITETIME",
}

// Types is the CQL data type vocabulary, sorted and uppercase.
var Types = []string{
	"ASCII", "BIGINT", "BLOB", "BOOLEAN", "COUNTER", "DATE", "DECIMAL",
	"DOUBLE", "DURATION", "FLOAT", "FROZEN", "INET", "INT", "LIST",
	"MAP", "SET", "SMALLINT", "TEXT", "TIME", "TIMESTAMP", "TIMEUUID",
	"TINYINT", "TUPLE", "UUID", "VARCHAR", "VARINT",
}

// Functions is the CQL built-in function vocabulary, sorted and uppercase.
var Functions = []string{
	"AVG", "CAST", "COUNT", "DATEOF", "FROMJSON", "MAX", "MIN",
	"NOW", "SUM", "TOJSON", "TOKEN", "TOUNIXTIMESTAMP", "TTL",
	"UUID", "WRITETIME",
}

// keywordSet, typeSet and functionSet provide O(1) classification lookups.
var (
	keywordSet  = toSet(Keywords)
	typeSet     = toSet(Types)
	functionSet = toSet(Functions)
)

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// LookupWord classifies an uppercased word against the vocabulary.
// Keywords take precedence over types, types over functions; anything
// else is an Identifier.
func LookupWord(upper string) Kind {
	if _, ok := keywordSet[upper]; ok {
		return Keyword
	}
	if _, ok := typeSet[upper]; ok {
		return Type
	}
	if _, ok := functionSet[upper]; ok {
		return Function
	}
	return Identifier
}

// IsKeyword reports whether the uppercased word is a CQL keyword.
func IsKeyword(upper string) bool {
	_, ok := keywordSet[upper]
	return ok
}

// Vocabulary returns the combined keyword/type/function vocabulary.
// The result is a fresh slice the caller may mutate.
func Vocabulary() []string {
	out := make([]string, 0, len(Keywords)+len(Types)+len(Functions))
	out = append(out, Keywords...)
	out = append(out, Types...)
	out = append(out, Functions...)
	return out
}
