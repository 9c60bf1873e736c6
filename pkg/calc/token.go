package calc

// TokenType identifies the lexical category of a token. Tokens carry no
// payload; literal values and identifier names travel in a separate queue.
type TokenType int

const (
	TOKEN_EOF TokenType = iota
	TOKEN_PLUS
	TOKEN_MINUS
	TOKEN_TIMES
	TOKEN_DIVIDE
	TOKEN_POWER
	TOKEN_LEFT_SHIFT
	TOKEN_RIGHT_SHIFT
	TOKEN_REMAINDER
	TOKEN_PRINT_BIN
	TOKEN_PRINT_HEX
	TOKEN_ALIGN
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_NUMBER
	TOKEN_OR
	TOKEN_AND
	TOKEN_XOR
	TOKEN_IDENT
	TOKEN_ASSIGN
	TOKEN_SIN
	TOKEN_COS
	TOKEN_EXP
	TOKEN_SQRT
	TOKEN_PI
	TOKEN_COMPLEMENT
)

var tokenNames = map[TokenType]string{
	TOKEN_EOF:         "end of line",
	TOKEN_PLUS:        "+",
	TOKEN_MINUS:       "-",
	TOKEN_TIMES:       "*",
	TOKEN_DIVIDE:      "/",
	TOKEN_POWER:       "**",
	TOKEN_LEFT_SHIFT:  "<<",
	TOKEN_RIGHT_SHIFT: ">>",
	TOKEN_REMAINDER:   "%",
	TOKEN_PRINT_BIN:   "bin",
	TOKEN_PRINT_HEX:   "hex",
	TOKEN_ALIGN:       "align",
	TOKEN_LPAREN:      "(",
	TOKEN_RPAREN:      ")",
	TOKEN_NUMBER:      "number",
	TOKEN_OR:          "|",
	TOKEN_AND:         "&",
	TOKEN_XOR:         "^",
	TOKEN_IDENT:       "identifier",
	TOKEN_ASSIGN:      "=",
	TOKEN_SIN:         "sin",
	TOKEN_COS:         "cos",
	TOKEN_EXP:         "exp",
	TOKEN_SQRT:        "sqrt",
	TOKEN_PI:          "pi",
	TOKEN_COMPLEMENT:  "~",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "unknown"
}

// keywords maps reserved words to their tokens. "exit" and "ans" are
// handled by the lexer directly.
var keywords = map[string]TokenType{
	"sqrt":  TOKEN_SQRT,
	"sin":   TOKEN_SIN,
	"cos":   TOKEN_COS,
	"exp":   TOKEN_EXP,
	"pi":    TOKEN_PI,
	"bin":   TOKEN_PRINT_BIN,
	"hex":   TOKEN_PRINT_HEX,
	"align": TOKEN_ALIGN,
}

// singleCharTokens are operators that never need lookahead.
var singleCharTokens = map[byte]TokenType{
	'+': TOKEN_PLUS,
	'-': TOKEN_MINUS,
	'/': TOKEN_DIVIDE,
	'%': TOKEN_REMAINDER,
	'(': TOKEN_LPAREN,
	')': TOKEN_RPAREN,
	'|': TOKEN_OR,
	'&': TOKEN_AND,
	'^': TOKEN_XOR,
	'~': TOKEN_COMPLEMENT,
	'=': TOKEN_ASSIGN,
}
