package runtime

import (
	"fmt"
	"reflect"
)

// Header is one request header, kept ordered.
type Header struct {
	Name  string `yaml:"name" validate:"required"`
	Value string `yaml:"value"`
}

// Comparison names a condition operator.
type Comparison string

const (
	CompareContains    Comparison = "Contains"
	CompareNotContains Comparison = "NotContains"
	CompareEqualTo     Comparison = "EqualTo"
	CompareNotEqualTo  Comparison = "NotEqualTo"
	CompareRegex       Comparison = "MatchesRegex"
	CompareGreaterThan Comparison = "GreaterThan"
	CompareLessThan    Comparison = "LessThan"
	CompareExists      Comparison = "Exists"
	CompareNotExists   Comparison = "NotExists"
	// CompareExpression evaluates Value as a boolean expression over all variables.
	CompareExpression Comparison = "Expression"
)

// Condition compares the variable named by Source with the interpolated Value.
type Condition struct {
	Source     string     `yaml:"source"`
	Comparison Comparison `yaml:"comparison" default:"Contains" validate:"oneof=Contains NotContains EqualTo NotEqualTo MatchesRegex GreaterThan LessThan Exists NotExists Expression"`
	Value      string     `yaml:"value"`
}

type KeychainMode string

const (
	ModeAnd KeychainMode = "And"
	ModeOr  KeychainMode = "Or"
)

// Keychain maps a group of conditions to a status.
type Keychain struct {
	Name       string       `yaml:"name"`
	Result     Status       `yaml:"result" validate:"required,status_name"`
	Mode       KeychainMode `yaml:"mode" default:"And" validate:"oneof=And Or"`
	Conditions []Condition  `yaml:"conditions" validate:"dive"`
}

type HTTPRequestSettings struct {
	Method          string   `yaml:"method" default:"GET" validate:"oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	URL             string   `yaml:"url" validate:"required"`
	Headers         []Header `yaml:"headers" validate:"dive"`
	Body            string   `yaml:"body"`
	BodyType        string   `yaml:"body_type" default:"None" validate:"oneof=None Standard Raw BasicAuth"`
	ContentType     string   `yaml:"content_type"`
	BasicAuthUser   string   `yaml:"basic_auth_user"`
	BasicAuthPass   string   `yaml:"basic_auth_pass"`
	FollowRedirects bool     `yaml:"follow_redirects" default:"true"`
	MaxRedirects    int      `yaml:"max_redirects" default:"8" validate:"gte=0,lte=50"`
	TimeoutMS       int      `yaml:"timeout_ms" default:"10000" validate:"gte=0"`
	ResponseVar     string   `yaml:"response_var" default:"SOURCE"`
	CustomCookies   string   `yaml:"custom_cookies"`
	SSLVerify       bool     `yaml:"ssl_verify" default:"true"`
	CipherSuites    string   `yaml:"cipher_suites"`
}

type ParseLRSettings struct {
	InputVar        string `yaml:"input_var" default:"data.SOURCE"`
	Left            string `yaml:"left"`
	Right           string `yaml:"right"`
	OutputVar       string `yaml:"output_var" default:"PARSED" validate:"required"`
	Capture         bool   `yaml:"capture"`
	Recursive       bool   `yaml:"recursive"`
	CaseInsensitive bool   `yaml:"case_insensitive"`
}

type ParseRegexSettings struct {
	InputVar     string `yaml:"input_var" default:"data.SOURCE"`
	Pattern      string `yaml:"pattern" validate:"required"`
	OutputFormat string `yaml:"output_format" default:"$1"`
	OutputVar    string `yaml:"output_var" default:"PARSED" validate:"required"`
	Capture      bool   `yaml:"capture"`
	MultiLine    bool   `yaml:"multi_line"`
}

type ParseJSONSettings struct {
	InputVar  string `yaml:"input_var" default:"data.SOURCE"`
	JSONPath  string `yaml:"json_path" validate:"required"`
	OutputVar string `yaml:"output_var" default:"PARSED" validate:"required"`
	Capture   bool   `yaml:"capture"`
}

type ParseCSSSettings struct {
	InputVar  string `yaml:"input_var" default:"data.SOURCE"`
	Selector  string `yaml:"selector" validate:"required"`
	Attribute string `yaml:"attribute" default:"innerText"`
	Index     int    `yaml:"index" validate:"gte=0"`
	OutputVar string `yaml:"output_var" default:"PARSED" validate:"required"`
	Capture   bool   `yaml:"capture"`
}

type ParseXPathSettings struct {
	InputVar  string `yaml:"input_var" default:"data.SOURCE"`
	XPath     string `yaml:"xpath" validate:"required"`
	OutputVar string `yaml:"output_var" default:"PARSED" validate:"required"`
	Capture   bool   `yaml:"capture"`
}

type ParseCookieSettings struct {
	InputVar   string `yaml:"input_var" default:"data.COOKIES"`
	CookieName string `yaml:"cookie_name" validate:"required"`
	OutputVar  string `yaml:"output_var" default:"PARSED" validate:"required"`
	Capture    bool   `yaml:"capture"`
}

type KeyCheckSettings struct {
	Keychains []Keychain `yaml:"keychains" validate:"dive"`
}

type IfElseSettings struct {
	Condition   Condition `yaml:"condition"`
	TrueBlocks  []Block   `yaml:"-"`
	FalseBlocks []Block   `yaml:"-"`
}

type LoopType string

const (
	LoopForEach LoopType = "ForEach"
	LoopRepeat  LoopType = "Repeat"
)

type LoopSettings struct {
	LoopType LoopType `yaml:"loop_type" default:"ForEach" validate:"oneof=ForEach Repeat"`
	ListVar  string   `yaml:"list_var"`
	ItemVar  string   `yaml:"item_var" default:"ITEM"`

	// Delimiter splits a plain string list; empty means newline.
	Delimiter string  `yaml:"delimiter"`
	Count     int     `yaml:"count" validate:"gte=0"`
	Blocks    []Block `yaml:"-"`
}

type GroupSettings struct {
	Blocks []Block `yaml:"-"`
}

type DelaySettings struct {
	MinMS int `yaml:"min_ms" default:"1000" validate:"gte=0"`
	MaxMS int `yaml:"max_ms" default:"1000" validate:"gtefield=MinMS"`
}

type SetVariableSettings struct {
	Name    string `yaml:"name" validate:"required"`
	Value   string `yaml:"value"`
	Capture bool   `yaml:"capture"`
}

type LogSettings struct {
	Message string `yaml:"message"`
}

type ClearCookiesSettings struct{}

type StringFunctionSettings struct {
	Function  string `yaml:"function" default:"Replace" validate:"oneof=Replace Substring Trim ToUpper ToLower Title URLEncode URLDecode Base64Encode Base64Decode HTMLEncode HTMLDecode Split RandomString Reverse Length"`
	InputVar  string `yaml:"input_var"`
	OutputVar string `yaml:"output_var" default:"RESULT" validate:"required"`
	Capture   bool   `yaml:"capture"`
	Param1    string `yaml:"param1"`
	Param2    string `yaml:"param2"`
}

type ListFunctionSettings struct {
	Function  string `yaml:"function" default:"Join" validate:"oneof=Join Sort Shuffle Add Remove Deduplicate RandomItem Length"`
	InputVar  string `yaml:"input_var"`
	OutputVar string `yaml:"output_var" default:"RESULT" validate:"required"`
	Capture   bool   `yaml:"capture"`
	Param1    string `yaml:"param1"`
}

type CryptoFunctionSettings struct {
	Function  string `yaml:"function" default:"MD5" validate:"oneof=MD5 SHA1 SHA256 SHA384 SHA512 CRC32 HMACSHA256 HMACSHA512 HMACMD5 BCryptHash BCryptVerify Base64Encode Base64Decode"`
	InputVar  string `yaml:"input_var"`
	OutputVar string `yaml:"output_var" default:"HASH" validate:"required"`
	Capture   bool   `yaml:"capture"`
	Key       string `yaml:"key"`
}

type ScriptSettings struct {
	Language  string `yaml:"language" default:"risor" validate:"oneof=risor javascript"`
	Code      string `yaml:"code" validate:"required"`
	OutputVar string `yaml:"output_var" default:"RESULT"`
	Capture   bool   `yaml:"capture"`
}

type GenerateGUIDSettings struct {
	OutputVar string `yaml:"output_var" default:"GUID" validate:"required"`
	Capture   bool   `yaml:"capture"`
}

func (HTTPRequestSettings) Kind() BlockKind    { return KindHTTPRequest }
func (ParseLRSettings) Kind() BlockKind        { return KindParseLR }
func (ParseRegexSettings) Kind() BlockKind     { return KindParseRegex }
func (ParseJSONSettings) Kind() BlockKind      { return KindParseJSON }
func (ParseCSSSettings) Kind() BlockKind       { return KindParseCSS }
func (ParseXPathSettings) Kind() BlockKind     { return KindParseXPath }
func (ParseCookieSettings) Kind() BlockKind    { return KindParseCookie }
func (KeyCheckSettings) Kind() BlockKind       { return KindKeyCheck }
func (IfElseSettings) Kind() BlockKind         { return KindIfElse }
func (LoopSettings) Kind() BlockKind           { return KindLoop }
func (GroupSettings) Kind() BlockKind          { return KindGroup }
func (DelaySettings) Kind() BlockKind          { return KindDelay }
func (SetVariableSettings) Kind() BlockKind    { return KindSetVariable }
func (LogSettings) Kind() BlockKind            { return KindLog }
func (ClearCookiesSettings) Kind() BlockKind   { return KindClearCookies }
func (StringFunctionSettings) Kind() BlockKind { return KindStringFunction }
func (ListFunctionSettings) Kind() BlockKind   { return KindListFunction }
func (CryptoFunctionSettings) Kind() BlockKind { return KindCryptoFunction }
func (ScriptSettings) Kind() BlockKind         { return KindScript }
func (GenerateGUIDSettings) Kind() BlockKind   { return KindGenerateGUID }

func (HTTPRequestSettings) sealed()    {}
func (ParseLRSettings) sealed()        {}
func (ParseRegexSettings) sealed()     {}
func (ParseJSONSettings) sealed()      {}
func (ParseCSSSettings) sealed()       {}
func (ParseXPathSettings) sealed()     {}
func (ParseCookieSettings) sealed()    {}
func (KeyCheckSettings) sealed()       {}
func (IfElseSettings) sealed()         {}
func (LoopSettings) sealed()           {}
func (GroupSettings) sealed()          {}
func (DelaySettings) sealed()          {}
func (SetVariableSettings) sealed()    {}
func (LogSettings) sealed()            {}
func (ClearCookiesSettings) sealed()   {}
func (StringFunctionSettings) sealed() {}
func (ListFunctionSettings) sealed()   {}
func (CryptoFunctionSettings) sealed() {}
func (ScriptSettings) sealed()         {}
func (GenerateGUIDSettings) sealed()   {}

func (s IfElseSettings) Children() [][]Block { return [][]Block{s.TrueBlocks, s.FalseBlocks} }
func (s LoopSettings) Children() [][]Block   { return [][]Block{s.Blocks} }
func (s GroupSettings) Children() [][]Block  { return [][]Block{s.Blocks} }

// newSettings returns a zero settings value of the given kind, addressable for decoding.
func newSettings(kind BlockKind) (any, bool) {
	switch kind {
	case KindHTTPRequest:
		return &HTTPRequestSettings{}, true
	case KindParseLR:
		return &ParseLRSettings{}, true
	case KindParseRegex:
		return &ParseRegexSettings{}, true
	case KindParseJSON:
		return &ParseJSONSettings{}, true
	case KindParseCSS:
		return &ParseCSSSettings{}, true
	case KindParseXPath:
		return &ParseXPathSettings{}, true
	case KindParseCookie:
		return &ParseCookieSettings{}, true
	case KindKeyCheck:
		return &KeyCheckSettings{}, true
	case KindIfElse:
		return &IfElseSettings{}, true
	case KindLoop:
		return &LoopSettings{}, true
	case KindGroup:
		return &GroupSettings{}, true
	case KindDelay:
		return &DelaySettings{}, true
	case KindSetVariable:
		return &SetVariableSettings{}, true
	case KindLog:
		return &LogSettings{}, true
	case KindClearCookies:
		return &ClearCookiesSettings{}, true
	case KindStringFunction:
		return &StringFunctionSettings{}, true
	case KindListFunction:
		return &ListFunctionSettings{}, true
	case KindCryptoFunction:
		return &CryptoFunctionSettings{}, true
	case KindScript:
		return &ScriptSettings{}, true
	case KindGenerateGUID:
		return &GenerateGUIDSettings{}, true
	}
	return nil, false
}

// DecodeBlockSettings builds the settings of a block kind from its raw YAML mapping.
// Child block lists are not decoded here; loaders attach them afterwards.
func DecodeBlockSettings(kind BlockKind, raw map[string]any) (Settings, error) {
	target, ok := newSettings(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlock, kind)
	}
	if err := DecodeSettings(target, raw); err != nil {
		return nil, err
	}
	return reflect.ValueOf(target).Elem().Interface().(Settings), nil
}
