package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// LuaExternal runs an operator-supplied script as the external classifier.
//
// The script sees the message as the global `message` and must set the global
// `result` to a table {intent = "<label>", confidence = <0..1>}. Only the base,
// string, table and math libraries are available and print goes to the log.
//
//	local m = string.lower(message)
//	if string.find(m, "appointment") then
//	  result = {intent = "help", confidence = 0.9}
//	end
type LuaExternal struct {
	proto *lua.FunctionProto
	name  string
	log   logger.Logger
}

// NewLuaExternal compiles source once. name identifies the script in logs.
func NewLuaExternal(name, source string, log logger.Logger) (*LuaExternal, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lua script %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile lua script %s: %w", name, err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &LuaExternal{proto: proto, name: name, log: log}, nil
}

func (l *LuaExternal) Name() string { return "lua" }

// ClassifyExternal runs the script in a fresh sandboxed state, so concurrent
// calls share nothing. ctx bounds execution.
func (l *LuaExternal) ClassifyExternal(ctx context.Context, text string) (Label, float64, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibraries(L)
	L.SetGlobal("print", L.NewFunction(func(ls *lua.LState) int {
		parts := make([]string, 0, ls.GetTop())
		for i := 1; i <= ls.GetTop(); i++ {
			parts = append(parts, ls.ToStringMeta(ls.Get(i)).String())
		}
		l.log.Debug("lua classifier output", logger.StringField("script", l.name), logger.StringField("output", strings.Join(parts, "\t")))
		return 0
	}))
	L.SetGlobal("message", lua.LString(text))
	L.SetContext(ctx)

	L.Push(L.NewFunctionFromProto(l.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return Unknown, 0, fmt.Errorf("lua script %s failed: %w", l.name, err)
	}

	tbl, ok := L.GetGlobal("result").(*lua.LTable)
	if !ok {
		return Unknown, 0, errors.New("lua script did not set result")
	}
	raw, ok := tbl.RawGetString("intent").(lua.LString)
	if !ok {
		return Unknown, 0, errors.New("lua result has no intent")
	}
	label, valid := ParseLabel(string(raw))
	if !valid {
		return label, 0, fmt.Errorf("lua script returned unrecognised intent %q", raw)
	}
	confidence := 1.0
	if n, ok := tbl.RawGetString("confidence").(lua.LNumber); ok {
		confidence = float64(n)
	}
	return label, confidence, nil
}

func openSafeLibraries(ls *lua.LState) {
	lua.OpenBase(ls)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		ls.SetGlobal(name, lua.LNil)
	}
	lua.OpenString(ls)
	lua.OpenTable(ls)
	lua.OpenMath(ls)
}
