package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnescape(t *testing.T) {
	cases := map[string]struct {
		escaped  string
		expected string
	}{
		"plain":         {"not escaped", "not escaped"},
		"newline":       {`newline\n`, "newline\n"},
		"double-escape": {`double-escape\\n`, `double-escape\n`},
		"tab-and-bell":  {`a\tb\a`, "a\tb\a"},

		"octal-one-digit":    {`\07`, string(rune(7))},
		"octal-two-digits":   {`\011`, "\t"},
		"octal-three-digits": {`\0101`, "A"},
		"octal-stops-at-3":   {`\01019`, "A9"},
		"octal-max":          {`\0377`, string(rune(0377))},
		"octal-non-octal":    {`\08`, `\08`},
		"octal-nine":         {`\09x`, `\09x`},
		"octal-bare-zero":    {`\0`, `\0`},
		"octal-overflow":     {`\0400`, `\0400`},

		"hex-one-digit":  {`\x7`, string(rune(07))},
		"hex-tab":        {`\x9`, "\t"},
		"hex-two-digits": {`\x4A`, "J"},
		"hex-stops-at-2": {`\x4A1`, "J1"},
		"hex-no-digits":  {`\xZZ`, `\xZZ`},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			actual := unescape(tc.escaped)

			assert.Equal(t, tc.expected, actual)
		})
	}
}
