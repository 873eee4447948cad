// Package http holds the request and response values handlers work with.
//
// A handler receives the matched route's parameters positionally and may
// ask for the *Request by type:
//
//	router.Get("/users/{id}", func(req *gohttp.Request, id int) (*gohttp.Response, error) {
//	    if id == 0 {
//	        return nil, gohttp.Abort(http.StatusNotFound)
//	    }
//	    return gohttp.Success(map[string]any{"id": id, "via": req.ID()}), nil
//	}, "users.show")
//
// Responses are plain values. The application kernel writes them after
// the response.* events ran.
package http
