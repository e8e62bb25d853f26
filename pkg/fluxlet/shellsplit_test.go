package fluxlet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matensemble/matensemble/pkg/errtypes"
)

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "./run.sh --flag value", []string{"./run.sh", "--flag", "value"}},
		{"single quotes", `echo 'hello world'`, []string{"echo", "hello world"}},
		{"double quotes", `echo "hello world"`, []string{"echo", "hello world"}},
		{"escaped space", `echo hello\ world`, []string{"echo", "hello world"}},
		{"escaped quote in double quotes", `echo "say \"hi\""`, []string{"echo", `say "hi"`}},
		{"empty", "", []string{}},
		{"extra whitespace", "  a   b  ", []string{"a", "b"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := splitCommand(tc.in)
			require.NoError(t, err)
			if len(tc.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSplitCommandUnterminatedQuoteErrors(t *testing.T) {
	_, err := splitCommand(`echo "unterminated`)
	require.Error(t, err)
	var invalid *errtypes.InvalidConfig
	assert.ErrorAs(t, err, &invalid)
}
