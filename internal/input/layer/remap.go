package layer

import "github.com/dshills/keyshift/internal/input/key"

type remapHandler struct {
	binding Remap
	r       *Router
	name    string
}

func (h *remapHandler) press(e key.Event) bool {
	if h.binding.Action != nil {
		h.r.env.Runner.Run(h.name, h.binding.Action)
		return true
	}
	h.r.next.Handle(e.WithCode(h.binding.To))
	return true
}

func (h *remapHandler) release(e key.Event) bool {
	if h.binding.Action == nil {
		h.r.next.Handle(e.WithCode(h.binding.To))
	}
	return true
}

func (h *remapHandler) otherKey(key.Event) {}

func (h *remapHandler) undecided() bool { return false }
