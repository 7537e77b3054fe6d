package blocks

import (
	"testing"

	"github.com/sflowg/blockrunner/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptoFunction(t *testing.T) {
	tests := []struct {
		function string
		input    string
		key      string
		want     string
	}{
		{"MD5", "abc", "", "900150983cd24fb0d6963f7d28e17f72"},
		{"SHA1", "abc", "", "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{"SHA256", "abc", "", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"CRC32", "abc", "", "352441c2"},
		{"HMACSHA256", "The quick brown fox jumps over the lazy dog", "key", "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"},
		{"Base64Encode", "abc", "", "YWJj"},
		{"Base64Decode", "YWJj", "", "abc"},
		{"Base64Decode", "%%%", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.function, func(t *testing.T) {
			got, err := cryptoFunction(tt.function, tt.input, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := cryptoFunction("ROT13", "abc", "")
	assert.Error(t, err)
}

func TestCryptoFunction_BCrypt(t *testing.T) {
	hashed, err := cryptoFunction("BCryptHash", "secret", "4")
	require.NoError(t, err)
	assert.Contains(t, hashed, "$2a$04$")

	ok, err := cryptoFunction("BCryptVerify", "secret", hashed)
	require.NoError(t, err)
	assert.Equal(t, "true", ok)

	ok, err = cryptoFunction("BCryptVerify", "wrong", hashed)
	require.NoError(t, err)
	assert.Equal(t, "false", ok)

	ok, err = cryptoFunction("BCryptVerify", "secret", "not a hash")
	require.NoError(t, err)
	assert.Equal(t, "false", ok)
}

func TestExecuteCryptoFunction(t *testing.T) {
	e := newTestExecutor()
	execution := newExecution()
	execution.Variables.SetInput("PASS", "abc")

	require.NoError(t, run(t, e, execution, runtime.CryptoFunctionSettings{Function: "MD5", InputVar: "input.PASS", OutputVar: "HASH", Capture: true}))
	assert.Equal(t, map[string]string{"HASH": "900150983cd24fb0d6963f7d28e17f72"}, execution.Variables.Captures())

	err := run(t, e, execution, runtime.CryptoFunctionSettings{Function: "Nope", InputVar: "input.PASS", OutputVar: "HASH"})
	assert.ErrorContains(t, err, "Nope")
}
