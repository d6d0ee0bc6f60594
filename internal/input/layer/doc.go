// Package layer implements the first stage of the remapping pipeline: a
// stack of layers mapping keys to bindings, and the route table that ties
// each held key to the handler that claimed its press.
//
// # Routing
//
// For every event the router:
//
//  1. tells every other held key's handler about it, so an undecided
//     tap-hold can resolve to hold when another key is pressed;
//  2. replays queued events if nothing is undecided any more;
//  3. queues the event if a tap-hold is still undecided and the event is
//     for another key;
//  4. otherwise delivers it to the handler recorded in the route table,
//     or, for a fresh press, to the binding on the highest active layer
//     that binds the key, recording the route.
//
// A release with no route is forwarded unchanged. Routes are removed
// only when the release has been handled.
//
// # Bindings
//
// Remap replaces a key with another key or an action. TapHold emits a tap
// key (or runs OnTap) when released within Term, and a hold key or layer
// (or OnHoldDown/OnHoldUp) when held past Term or interrupted by another
// key press.
package layer
