// Package events provides the framework event bus and the event keys the
// framework itself dispatches.
package events

// Key identifies an event. The set is open: applications define their own
// keys next to the framework ones.
type Key string

// Framework events and their payloads.
const (
	ControllerCalling Key = "controller.calling" // (req, target, action) before the handler runs
	ControllerCalled  Key = "controller.called"  // (req, target, action, result) after the handler returned
	RouteMatching     Key = "route.matching"     // (path, method) before the route table is searched
	RouteMatched      Key = "route.matched"      // (routing.Route) a route matched
	RouteNotFound     Key = "route.not_found"    // (path, method) no route matched
	RequestStart      Key = "request.start"      // (req) before the request is forwarded
	ResponseSend      Key = "response.send"      // (res) before the response is written
	ResponseHeader    Key = "response.header"    // (res) before headers are written
	ResponseBody      Key = "response.body"      // (res) before the body is written
	ResponseEnd       Key = "response.end"       // (res) after the response was written
	Exception         Key = "exception"          // (err, req) request handling failed
)

func (k Key) String() string { return string(k) }
