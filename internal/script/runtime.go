// Package script runs Lua actions bound to hotkeys, combos and layer keys.
//
// All scripts share one sandboxed Lua state. Only the base, table, string
// and math libraries are opened, and the loaders that reach the file
// system are removed. Scripts drive the engine through a few globals:
//
//	tap("Ctrl", "C")     -- press in order, release in reverse
//	press("LShift")      -- single transition
//	release("LShift")
//	layer_on(1)          -- counted activation
//	layer_off(1)
//	layer_toggle(2)
//	log("message")
//
// gopher-lua states are not goroutine-safe; the Runtime serializes every
// call with a mutex. Each run gets the callback context, so a script that
// loops forever is stopped when the callback times out.
package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/input/pipe"
)

// ErrClosed is returned when running a script on a closed runtime.
var ErrClosed = errors.New("lua runtime is closed")

// Host is what scripts can act on. *input.Engine implements it.
type Host interface {
	Tap(codes ...key.Code) error
	Send(code key.Code, pressed bool) error
	ActivateLayer(index int)
	DeactivateLayer(index int)
	ToggleLayer(index int)
}

// Runtime owns the shared Lua state.
type Runtime struct {
	mu     sync.Mutex
	L      *lua.LState
	host   Host
	names  *key.Names
	log    logrus.FieldLogger
	closed bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger behind log().
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Runtime) {
		if log != nil {
			r.log = log
		}
	}
}

// WithNames sets the key name table used to resolve key arguments.
func WithNames(n *key.Names) Option {
	return func(r *Runtime) {
		if n != nil {
			r.names = n
		}
	}
}

// New creates a sandboxed runtime acting on host.
func New(host Host, opts ...Option) *Runtime {
	r := &Runtime{
		host:  host,
		names: key.NewNames(),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	r.L = L
	r.installHost()
	return r
}

// openSafeLibraries opens only the libraries scripts need.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (r *Runtime) installHost() {
	funcs := map[string]lua.LGFunction{
		"tap":          r.luaTap,
		"press":        r.luaSend(true),
		"release":      r.luaSend(false),
		"layer_on":     r.luaLayer(r.host.ActivateLayer),
		"layer_off":    r.luaLayer(r.host.DeactivateLayer),
		"layer_toggle": r.luaLayer(r.host.ToggleLayer),
		"log":          r.luaLog,
	}
	for name, fn := range funcs {
		r.L.SetGlobal(name, r.L.NewFunction(fn))
	}
}

// Compile checks src and returns a Script that can be run many times.
func (r *Runtime) Compile(name, src string) (*Script, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	fn, err := r.L.LoadString(src)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	return &Script{r: r, name: name, fn: fn}, nil
}

// Close releases the Lua state. Running scripts finish first.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.L.Close()
}

func (r *Runtime) run(ctx context.Context, s *Script) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("script %s: lua panic: %v", s.name, rec)
		}
	}()

	top := r.L.GetTop()
	r.L.Push(s.fn)
	if err := r.L.PCall(0, 0, nil); err != nil {
		r.L.SetTop(top)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("script %s: %w", s.name, ctxErr)
		}
		return fmt.Errorf("script %s: %w", s.name, err)
	}
	return nil
}

func (r *Runtime) checkKey(L *lua.LState, n int) key.Code {
	name := L.CheckString(n)
	c, err := r.names.LookupOne(name)
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return c
}

func (r *Runtime) luaTap(L *lua.LState) int {
	count := L.GetTop()
	if count == 0 {
		L.ArgError(1, "key expected")
	}
	codes := make([]key.Code, count)
	for i := range codes {
		codes[i] = r.checkKey(L, i+1)
	}
	if err := r.host.Tap(codes...); err != nil {
		L.RaiseError("tap: %v", err)
	}
	return 0
}

func (r *Runtime) luaSend(pressed bool) lua.LGFunction {
	return func(L *lua.LState) int {
		c := r.checkKey(L, 1)
		if err := r.host.Send(c, pressed); err != nil {
			L.RaiseError("send: %v", err)
		}
		return 0
	}
}

func (r *Runtime) luaLayer(fn func(int)) lua.LGFunction {
	return func(L *lua.LState) int {
		idx := L.CheckInt(1)
		if idx < 0 {
			L.ArgError(1, "layer must not be negative")
		}
		fn(idx)
		return 0
	}
}

func (r *Runtime) luaLog(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	r.log.WithField("source", "lua").Info(strings.Join(parts, " "))
	return 0
}

// Script is a compiled chunk.
type Script struct {
	r    *Runtime
	name string
	fn   *lua.LFunction
}

// Name returns the name given to Compile.
func (s *Script) Name() string {
	return s.name
}

// Run executes the script. It stops when ctx is done.
func (s *Script) Run(ctx context.Context) error {
	return s.r.run(ctx, s)
}

// Callback adapts the script for registration as an engine action.
func (s *Script) Callback() pipe.Callback {
	return s.Run
}
