package blocks

import (
	"testing"

	"github.com/sflowg/blockrunner/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteStringFunction(t *testing.T) {
	tests := []struct {
		function string
		input    string
		p1, p2   string
		want     string
	}{
		{"Replace", "a-b-c", "-", "+", "a+b+c"},
		{"Substring", "héllo world", "1", "4", "éllo"},
		{"Substring", "short", "3", "100", "rt"},
		{"Substring", "short", "10", "", ""},
		{"Trim", "  padded \n", "", "", "padded"},
		{"ToUpper", "MiXed", "", "", "MIXED"},
		{"ToLower", "MiXed", "", "", "mixed"},
		{"Title", "hello world", "", "", "Hello World"},
		{"URLEncode", "a b&c=d", "", "", "a+b%26c%3Dd"},
		{"URLDecode", "a+b%26c", "", "", "a b&c"},
		{"Base64Encode", "user:pass", "", "", "dXNlcjpwYXNz"},
		{"Base64Decode", "dXNlcjpwYXNz", "", "", "user:pass"},
		{"Base64Decode", "!!not base64", "", "", ""},
		{"HTMLEncode", `<a href="x">`, "", "", "&lt;a href=&#34;x&#34;&gt;"},
		{"HTMLDecode", "&lt;b&gt; &amp;", "", "", "<b> &"},
		{"Split", "a,b,c", "", "", "a, b, c"},
		{"Split", "a|b", "|", "", "a, b"},
		{"Reverse", "abc→", "", "", "→cba"},
		{"Length", "héllo", "", "", "5"},
	}

	e := newTestExecutor()
	for _, tt := range tests {
		t.Run(tt.function, func(t *testing.T) {
			execution := newExecution()
			execution.Variables.SetInput("VALUE", tt.input)

			s := runtime.StringFunctionSettings{Function: tt.function, InputVar: "input.VALUE", OutputVar: "OUT", Param1: tt.p1, Param2: tt.p2}
			require.NoError(t, run(t, e, execution, s))
			assert.Equal(t, tt.want, get(execution, "OUT"))
		})
	}
}

func TestExecuteStringFunction_TypedResults(t *testing.T) {
	e := newTestExecutor()
	execution := newExecution()

	require.NoError(t, run(t, e, execution, runtime.StringFunctionSettings{Function: "Split", InputVar: "x;y", OutputVar: "PARTS", Param1: ";"}))
	parts, ok := execution.Variables.Lookup("PARTS")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, parts.Value.List())

	require.NoError(t, run(t, e, execution, runtime.StringFunctionSettings{Function: "RandomString", OutputVar: "R"}))
	assert.Len(t, get(execution, "R"), 16)

	require.NoError(t, run(t, e, execution, runtime.StringFunctionSettings{Function: "RandomString", OutputVar: "R", Param1: "4"}))
	assert.Len(t, get(execution, "R"), 4)

	assert.Error(t, run(t, e, execution, runtime.StringFunctionSettings{Function: "URLDecode", InputVar: "%zz", OutputVar: "BAD"}))
	assert.Error(t, run(t, e, execution, runtime.StringFunctionSettings{Function: "Explode", OutputVar: "BAD"}))
}

func TestSubstring(t *testing.T) {
	assert.Equal(t, "llo", substring("hello", "2", ""))
	assert.Equal(t, "he", substring("hello", "-3", "2"))
	assert.Equal(t, "hello", substring("hello", "x", "-1"))
	assert.Equal(t, "ello", substring("hello", "1", "9223372036854775807"))
	assert.Equal(t, "", substring("hello", "9223372036854775807", "9223372036854775807"))
	assert.Equal(t, "ñé", substring("añéb", "1", "2"))
}

func TestExecuteListFunction(t *testing.T) {
	e := newTestExecutor()
	execution := newExecution()
	execution.Variables.SetUser("ITEMS", runtime.ListValue([]string{"b", "a", "b", "c"}), false)

	list := func(name string) []string {
		v, ok := execution.Variables.Lookup(name)
		require.True(t, ok, name)
		return v.Value.List()
	}

	require.NoError(t, run(t, e, execution, runtime.ListFunctionSettings{Function: "Join", InputVar: "ITEMS", OutputVar: "JOINED", Param1: "|"}))
	assert.Equal(t, "b|a|b|c", get(execution, "JOINED"))

	require.NoError(t, run(t, e, execution, runtime.ListFunctionSettings{Function: "Sort", InputVar: "ITEMS", OutputVar: "SORTED"}))
	assert.Equal(t, []string{"a", "b", "b", "c"}, list("SORTED"))

	require.NoError(t, run(t, e, execution, runtime.ListFunctionSettings{Function: "Shuffle", InputVar: "ITEMS", OutputVar: "SHUFFLED"}))
	assert.ElementsMatch(t, []string{"b", "a", "b", "c"}, list("SHUFFLED"))

	require.NoError(t, run(t, e, execution, runtime.ListFunctionSettings{Function: "Add", InputVar: "ITEMS", OutputVar: "ADDED", Param1: "d"}))
	assert.Equal(t, []string{"b", "a", "b", "c", "d"}, list("ADDED"))

	require.NoError(t, run(t, e, execution, runtime.ListFunctionSettings{Function: "Remove", InputVar: "ITEMS", OutputVar: "REMOVED", Param1: "b"}))
	assert.Equal(t, []string{"a", "c"}, list("REMOVED"))

	require.NoError(t, run(t, e, execution, runtime.ListFunctionSettings{Function: "Deduplicate", InputVar: "ITEMS", OutputVar: "UNIQUE"}))
	assert.Equal(t, []string{"b", "a", "c"}, list("UNIQUE"))

	require.NoError(t, run(t, e, execution, runtime.ListFunctionSettings{Function: "RandomItem", InputVar: "ITEMS", OutputVar: "PICK"}))
	assert.Contains(t, []string{"a", "b", "c"}, get(execution, "PICK"))

	require.NoError(t, run(t, e, execution, runtime.ListFunctionSettings{Function: "Length", InputVar: "ITEMS", OutputVar: "N"}))
	assert.Equal(t, "4", get(execution, "N"))

	// the source list is never modified
	assert.Equal(t, []string{"b", "a", "b", "c"}, list("ITEMS"))
}

func TestListInput(t *testing.T) {
	vars := runtime.NewVariables()
	vars.SetData("JSON", `["x", 2, true]`)
	vars.SetData("PLAIN", "single")

	assert.Equal(t, []string{"x", "2", "true"}, listInput(vars, "data.JSON"))
	assert.Equal(t, []string{"single"}, listInput(vars, "data.PLAIN"))
	assert.Nil(t, listInput(vars, ""))
}
