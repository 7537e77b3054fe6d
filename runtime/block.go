package runtime

// BlockKind tags a block with the operation it performs.
type BlockKind string

const (
	KindHTTPRequest    BlockKind = "HttpRequest"
	KindParseLR        BlockKind = "ParseLR"
	KindParseRegex     BlockKind = "ParseRegex"
	KindParseJSON      BlockKind = "ParseJSON"
	KindParseCSS       BlockKind = "ParseCSS"
	KindParseXPath     BlockKind = "ParseXPath"
	KindParseCookie    BlockKind = "ParseCookie"
	KindKeyCheck       BlockKind = "KeyCheck"
	KindIfElse         BlockKind = "IfElse"
	KindLoop           BlockKind = "Loop"
	KindGroup          BlockKind = "Group"
	KindDelay          BlockKind = "Delay"
	KindSetVariable    BlockKind = "SetVariable"
	KindLog            BlockKind = "Log"
	KindClearCookies   BlockKind = "ClearCookies"
	KindStringFunction BlockKind = "StringFunction"
	KindListFunction   BlockKind = "ListFunction"
	KindCryptoFunction BlockKind = "CryptoFunction"
	KindScript         BlockKind = "Script"
	KindGenerateGUID   BlockKind = "GenerateGUID"
)

// Block is one node of a pipeline's block tree.
type Block struct {
	ID       string
	Kind     BlockKind
	Label    string
	Disabled bool

	// SafeMode lets the walk continue past a failure of this block.
	SafeMode bool
	Settings Settings
}

// Settings is the closed set of per-kind block configurations.
type Settings interface {
	Kind() BlockKind
	sealed()
}

// Container is implemented by settings that own child block lists.
type Container interface {
	Settings
	Children() [][]Block
}

// Walk visits every block in tree order, descending into containers.
func Walk(blocks []Block, fn func(b Block)) {
	for _, b := range blocks {
		fn(b)
		if c, ok := b.Settings.(Container); ok {
			for _, children := range c.Children() {
				Walk(children, fn)
			}
		}
	}
}

// DefaultLabel is the label used when a block is declared without one.
func DefaultLabel(kind BlockKind) string {
	switch kind {
	case KindHTTPRequest:
		return "HTTP Request"
	case KindParseLR:
		return "Parse LR"
	case KindParseRegex:
		return "Parse Regex"
	case KindParseJSON:
		return "Parse JSON"
	case KindParseCSS:
		return "Parse CSS"
	case KindParseXPath:
		return "Parse XPath"
	case KindParseCookie:
		return "Parse Cookie"
	case KindKeyCheck:
		return "Key Check"
	case KindIfElse:
		return "If / Else"
	case KindSetVariable:
		return "Set Variable"
	case KindClearCookies:
		return "Clear Cookies"
	case KindStringFunction:
		return "String Function"
	case KindListFunction:
		return "List Function"
	case KindCryptoFunction:
		return "Crypto Function"
	case KindGenerateGUID:
		return "Generate GUID"
	default:
		return string(kind)
	}
}
