package styles

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// sqlPalette holds the handful of colors the generated-SQL preview uses.
// GRANT/REVOKE statements are mostly keywords, identifiers and the regclass
// cast, so the palette is small.
type sqlPalette struct {
	background string
	text       string
	keyword    string
	typ        string
	literal    string
	number     string
	function   string
	comment    string
	identifier string
}

var (
	darkPalette = sqlPalette{
		background: "#1a1a2e",
		text:       "#eaeaea",
		keyword:    "#50fa7b",
		typ:        "#8be9fd",
		literal:    "#f1fa8c",
		number:     "#bd93f9",
		function:   "#ff79c6",
		comment:    "#6272a4",
		identifier: "#f8f8f2",
	}
	lightPalette = sqlPalette{
		background: "#fafafa",
		text:       "#383a42",
		keyword:    "#a626a4",
		typ:        "#0184bc",
		literal:    "#50a14f",
		number:     "#986801",
		function:   "#4078f2",
		comment:    "#a0a1a7",
		identifier: "#e45649",
	}
)

const (
	sqlDarkStyleName  = "studio"
	sqlLightStyleName = "studio-light"
)

func init() {
	styles.Register(newSQLStyle(sqlDarkStyleName, darkPalette))
	styles.Register(newSQLStyle(sqlLightStyleName, lightPalette))
}

func newSQLStyle(name string, p sqlPalette) *chroma.Style {
	return chroma.MustNewStyle(name, chroma.StyleEntries{
		chroma.Background:       "bg:" + p.background,
		chroma.Text:             p.text,
		chroma.Error:            "bold #ff5555",
		chroma.Keyword:          "bold " + p.keyword,
		chroma.KeywordNamespace: "bold " + p.keyword,
		chroma.KeywordConstant:  p.number,
		chroma.KeywordType:      p.typ, // regclass
		chroma.OperatorWord:     "bold " + p.function,
		chroma.Operator:         p.typ,
		chroma.LiteralString:    p.literal,
		chroma.StringEscape:     p.number,
		chroma.LiteralNumber:    p.number,
		chroma.NameBuiltin:      p.function,
		chroma.NameFunction:     p.function,
		chroma.Name:             p.identifier,
		chroma.Punctuation:      p.text,
		chroma.Comment:          "italic " + p.comment,
	})
}

// SQLTheme returns the chroma style name for a ui.theme value.
func SQLTheme(uiTheme string) string {
	if uiTheme == "light" {
		return sqlLightStyleName
	}
	return sqlDarkStyleName
}
