package ui

import "sync"

// Event is one thing a Recorder saw: a notice or a navigation
type Event struct {
	Notice *Notice
	Route  Route
}

// Recorder is a Presenter that keeps everything in order, for tests
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Notice: &n})
}

func (r *Recorder) Announce(n Notice, route Route) {
	r.Notify(n)
	r.Navigate(route)
}

func (r *Recorder) Navigate(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Route: route})
}

// Events returns a copy of everything recorded
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Notices returns the recorded notices in order
func (r *Recorder) Notices() []Notice {
	var out []Notice
	for _, e := range r.Events() {
		if e.Notice != nil {
			out = append(out, *e.Notice)
		}
	}
	return out
}

// Routes returns the recorded navigations in order
func (r *Recorder) Routes() []Route {
	var out []Route
	for _, e := range r.Events() {
		if e.Notice == nil {
			out = append(out, e.Route)
		}
	}
	return out
}

// LastRoute is the most recent navigation, empty if none
func (r *Recorder) LastRoute() Route {
	routes := r.Routes()
	if len(routes) == 0 {
		return ""
	}
	return routes[len(routes)-1]
}
