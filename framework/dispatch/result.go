package dispatch

import gohttp "github.com/km-arc/go-nix/framework/http"

// Outcome tells the kernel how to continue after Forward.
type Outcome int

const (
	// Continue means Response is sent through the response.* events.
	Continue Outcome = iota

	// Halted means request handling stops. Response, if any, is written
	// as is and no further events run.
	Halted
)

func (o Outcome) String() string {
	if o == Halted {
		return "halted"
	}
	return "continue"
}

// Result is what Forward produces.
type Result struct {
	Outcome  Outcome
	Response *gohttp.Response
}

// Respond returns a Continue result.
func Respond(res *gohttp.Response) Result {
	return Result{Outcome: Continue, Response: res}
}

// Stop returns a Halted result. The response, if any, is written without
// the controller.called and response.* events, e.g. for a health probe
// that must not be decorated by listeners:
//
//	func Ping() dispatch.Result {
//	    return dispatch.Stop(gohttp.Text(http.StatusOK, "pong"))
//	}
func Stop(res *gohttp.Response) Result {
	return Result{Outcome: Halted, Response: res}
}
