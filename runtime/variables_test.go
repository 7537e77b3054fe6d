package runtime

import (
	"math"
	"regexp"
	"strconv"
	"testing"
)

func newTestVariables() *Variables {
	v := NewVariables()
	v.SetInput("USER", "alice")
	v.SetInput("PASS", "hunter2")
	v.SetData("SOURCE", `{"ok":true}`)
	v.SetData("RESPONSECODE", "200")
	v.SetGlobal("TOKEN", "abc")
	v.SetUser("CSRF", StringValue("xyz"), true)
	v.SetUser("ITEMS", ListValue([]string{"a", "b"}), false)
	return v
}

func TestVariables_Get(t *testing.T) {
	v := newTestVariables()

	tests := []struct {
		name  string
		want  string
		found bool
	}{
		{"input.USER", "alice", true},
		{"data.RESPONSECODE", "200", true},
		{"globals.TOKEN", "abc", true},
		{"CSRF", "xyz", true},
		{"ITEMS", "a, b", true},
		{"input.MISSING", "", false},
		{"USER", "", false},
	}

	for _, tt := range tests {
		got, found := v.Get(tt.name)
		if got != tt.want || found != tt.found {
			t.Errorf("Get(%q) = %q, %v; want %q, %v", tt.name, got, found, tt.want, tt.found)
		}
	}
}

func TestVariables_Interpolate(t *testing.T) {
	v := newTestVariables()

	tests := []struct {
		template string
		want     string
	}{
		{"user=<input.USER>&pass=<input.PASS>", "user=alice&pass=hunter2"},
		{"no placeholders", "no placeholders"},
		{"<CSRF><globals.TOKEN>", "xyzabc"},
		{"keep <UNKNOWN> as written", "keep <UNKNOWN> as written"},
		{"empty <> stays", "empty <> stays"},
		{"a < b and <input.USER", "a < b and <input.USER"},
		{"1 < 2 > 0", "1 < 2 > 0"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := v.Interpolate(tt.template); got != tt.want {
			t.Errorf("Interpolate(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestVariables_InterpolateIdempotentWithoutPlaceholders(t *testing.T) {
	v := newTestVariables()

	once := v.Interpolate("user=<input.USER> <UNKNOWN>")
	if twice := v.Interpolate(once); twice != once {
		t.Errorf("Interpolating twice changed the result: %q -> %q", once, twice)
	}
}

func TestVariables_InterpolateRandom(t *testing.T) {
	v := NewVariables()

	uuidRe := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	if got := v.Interpolate("<random.uuid>"); !uuidRe.MatchString(got) {
		t.Errorf("Expected a UUID, got %q", got)
	}
	if got := v.Interpolate("<random.email>"); !regexp.MustCompile(`^\S+@\S+\.\S+$`).MatchString(got) {
		t.Errorf("Expected an email address, got %q", got)
	}
	if got := v.Interpolate("<random.string>"); len(got) != 16 {
		t.Errorf("Expected a 16 character string, got %q", got)
	}
}

func TestRandomNumber(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi int64
	}{
		{"small range", 5, 7},
		{"reversed bounds", 7, 5},
		{"single value", 3, 3},
		{"negative", -10, -1},
		{"span overflows int64", 0, math.MaxInt64},
		{"full range", math.MinInt64, math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := min(tt.lo, tt.hi), max(tt.lo, tt.hi)
			for i := 0; i < 100; i++ {
				if got := RandomNumber(tt.lo, tt.hi); got < lo || got > hi {
					t.Fatalf("RandomNumber(%d, %d) = %d, out of range", tt.lo, tt.hi, got)
				}
			}
		})
	}

	v := NewVariables()
	got := v.Interpolate("<random.number.0.9223372036854775807>")
	if _, err := strconv.ParseInt(got, 10, 64); err != nil {
		t.Errorf("Expected a number, got %q", got)
	}
}

func TestVariables_ResolveInput(t *testing.T) {
	v := newTestVariables()

	if got := v.ResolveInput("data.SOURCE"); got != `{"ok":true}` {
		t.Errorf("Expected variable value, got %q", got)
	}
	if got := v.ResolveInput("<input.USER>:<input.PASS>"); got != "alice:hunter2" {
		t.Errorf("Expected interpolated template, got %q", got)
	}
	if got := v.ResolveInput("pre[A]post"); got != "pre[A]post" {
		t.Errorf("Expected literal fallback, got %q", got)
	}
}

func TestVariables_Captures(t *testing.T) {
	v := newTestVariables()
	v.SetUser("BALANCE", IntValue(42), true)
	v.SetUser("CSRF", StringValue("updated"), false)

	captures := v.Captures()
	if len(captures) != 1 || captures["BALANCE"] != "42" {
		t.Errorf("Unexpected captures: %v", captures)
	}

	names := v.UserNames()
	if len(names) != 3 || names[0] != "CSRF" || names[2] != "BALANCE" {
		t.Errorf("Expected first-write order, got %v", names)
	}
}

func TestVariables_Env(t *testing.T) {
	v := newTestVariables()
	v.SetUser("COUNT", IntValue(3), false)

	env := v.Env()
	if env["input_USER"] != "alice" || env["data_RESPONSECODE"] != "200" {
		t.Errorf("Unexpected scoped entries: %v", env)
	}
	if env["COUNT"] != int64(3) {
		t.Errorf("Expected typed user variable, got %T %v", env["COUNT"], env["COUNT"])
	}
	if items, ok := env["ITEMS"].([]string); !ok || len(items) != 2 {
		t.Errorf("Expected list user variable, got %v", env["ITEMS"])
	}
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   any
		want string
		list bool
	}{
		{nil, "", false},
		{"x", "x", false},
		{int(7), "7", false},
		{2.5, "2.5", false},
		{true, "true", false},
		{[]any{"a", 1}, "a, 1", true},
		{map[string]any{"k": "v"}, `{"k":"v"}`, false},
	}

	for _, tt := range tests {
		v := ValueOf(tt.in)
		if v.String() != tt.want || v.IsList() != tt.list {
			t.Errorf("ValueOf(%v) = %q (list %v), want %q (list %v)", tt.in, v.String(), v.IsList(), tt.want, tt.list)
		}
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in, sep string
		want    []string
	}{
		{`["a","b",3]`, ",", []string{"a", "b", "3"}},
		{"a,b,c", ",", []string{"a", "b", "c"}},
		{"line1\nline2", "\n", []string{"line1", "line2"}},
		{"single", "", []string{"single"}},
		{"", ",", nil},
		{"[not json", ",", []string{"[not json"}},
	}

	for _, tt := range tests {
		got := SplitList(tt.in, tt.sep)
		if len(got) != len(tt.want) {
			t.Errorf("SplitList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitList(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, in := range []string{"success", "SUCCESS", " Success "} {
		if st, err := ParseStatus(in); err != nil || st != StatusSuccess {
			t.Errorf("ParseStatus(%q) = %v, %v", in, st, err)
		}
	}
	if _, err := ParseStatus("Maybe"); err == nil {
		t.Error("Expected error for unknown status")
	}
	if StatusNone.Terminal() || !StatusBan.Terminal() {
		t.Error("Only None is non-terminal")
	}
	if StatusRetry.Label() != "RETRY" {
		t.Errorf("Expected RETRY, got %s", StatusRetry.Label())
	}
}
