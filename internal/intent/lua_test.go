package intent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appointmentScript = `
local m = string.lower(message)
print("classifying", #m)
if string.find(m, "appointment", 1, true) then
  result = {intent = "help", confidence = 0.9}
elseif string.find(m, "cheers", 1, true) then
  result = {intent = "gratitude"}
else
  result = {intent = "unknown", confidence = 0}
end
`

func TestLuaExternal(t *testing.T) {
	ext, err := NewLuaExternal("appointments.lua", appointmentScript, nil)
	require.NoError(t, err)

	testCases := []struct {
		text string
		want Label
		conf float64
	}{
		{"Can I book an APPOINTMENT?", Help, 0.9},
		{"cheers", Gratitude, 1},
		{"my head hurts", Unknown, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			label, conf, err := ext.ClassifyExternal(context.Background(), tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, label)
			assert.InDelta(t, tc.conf, conf, 1e-9)
		})
	}
}

func TestLuaExternalErrors(t *testing.T) {
	_, err := NewLuaExternal("broken.lua", "result = {", nil)
	assert.Error(t, err)

	testCases := map[string]string{
		"no result":      `local x = 1`,
		"missing intent": `result = {confidence = 1}`,
		"bad label":      `result = {intent = "weather"}`,
		"runtime error":  `error("boom")`,
		"sandboxed io":   `io.write("x")`,
		"sandboxed os":   `os.execute("true")`,
		"sandboxed load": `load("return 1")()`,
	}
	for name, src := range testCases {
		t.Run(name, func(t *testing.T) {
			ext, err := NewLuaExternal(name, src, nil)
			require.NoError(t, err)
			_, _, err = ext.ClassifyExternal(context.Background(), "hi")
			assert.Error(t, err)
		})
	}
}

func TestLuaExternalHonoursContext(t *testing.T) {
	ext, err := NewLuaExternal("loop.lua", `while true do end`, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err = ext.ClassifyExternal(ctx, "hi")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
