// Package router is a thin layer over http.ServeMux that adds per-route
// and per-group middleware.
package router

import (
	"net/http"
	"slices"
	"sync"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so the first one listed runs first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// table is the mux and route list shared by a router and its groups.
type table struct {
	mux *http.ServeMux

	mu     sync.Mutex
	routes []string
}

// Router registers method-scoped routes. Middleware is applied per route
// inside the mux, so it sees r.Pattern.
type Router struct {
	t  *table
	mw []Middleware
}

func New(mw ...Middleware) *Router {
	return &Router{t: &table{mux: http.NewServeMux()}, mw: mw}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.t.mux.ServeHTTP(w, req)
}

// Group returns a router sharing r's routes whose handlers also run mw.
func (r *Router) Group(mw ...Middleware) *Router {
	return &Router{t: r.t, mw: append(slices.Clip(r.mw), mw...)}
}

func (r *Router) Get(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodGet, pattern, h, mw...)
}

func (r *Router) Post(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPost, pattern, h, mw...)
}

func (r *Router) Put(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPut, pattern, h, mw...)
}

// Handle registers h for "method pattern". Router and group middleware run
// before the route's own mw. Conflicting patterns panic, as with ServeMux.
func (r *Router) Handle(method, pattern string, h http.Handler, mw ...Middleware) {
	route := method + " " + pattern
	r.t.mux.Handle(route, Chain(h, append(slices.Clip(r.mw), mw...)...))

	r.t.mu.Lock()
	r.t.routes = append(r.t.routes, route)
	r.t.mu.Unlock()
}

// Routes lists every registered "METHOD /pattern" in registration order,
// groups included.
func (r *Router) Routes() []string {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	return slices.Clone(r.t.routes)
}
