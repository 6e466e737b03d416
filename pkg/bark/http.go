package bark

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// well known HTTP headers
	// HTTPHeaderAccept is a standard [header](https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Accept) communicating media format expected by the client
	HTTPHeaderAccept = "Accept"

	// HTTPHeaderContentType is a standard [header](https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Content-Type) inform server of how to interpret request body.
	HTTPHeaderContentType = "Content-Type"

	// HTTPHeaderLink is a standard [header](https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Link) carrying links to related resources, such as the next page of a listing.
	HTTPHeaderLink = "Link"

	// HTTPHeaderRequestID identifies a request in logs of both client and server. Client provided value is kept.
	HTTPHeaderRequestID = "x-request-id"

	// HTTPHeaderResourceCount is the number of resources in a listing response body.
	HTTPHeaderResourceCount = "x-resource-count"

	// HTTPHeaderNextToken is the continuation token to pass back to get the next page of a listing.
	HTTPHeaderNextToken = "x-next-token"

	// HTTPHeaderDatacenter names the datacenter that served the request.
	HTTPHeaderDatacenter = "Triton-Datacenter-Name"
)

// StatusClientClosedRequest is recorded for requests the client abandoned before a response was written.
// Nginx convention, not a registered HTTP status.
const StatusClientClosedRequest = 499

var (
	// ErrNotAcceptable error indicates that none of the media types in [Accept](https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Accept) header of a client request can be produced by the API.
	ErrNotAcceptable = errors.New("none of the accepted media types is supported")
)

// Lifted from GIN
func filterFlags(content string) string {
	for i, char := range content {
		if char == ' ' || char == ';' {
			return content[:i]
		}
	}
	return content
}

// Get a list of accepted MIME-data types from request headers
func selectAcceptedType(header http.Header) []string {
	accepts := header.Values(HTTPHeaderAccept)
	result := make([]string, 0, len(accepts))
	for _, a := range accepts {
		for _, part := range strings.Split(a, ",") {
			result = append(result, filterFlags(strings.TrimSpace(part)))
		}
	}

	return result
}

// Responder writes a response object with a status code.
type Responder func(code int, obj any)

// Negotiate selects a [Responder] encoding responses in the media type a client accepts.
// Requests without [HTTPHeaderAccept] get JSON.
func Negotiate(ctx *gin.Context) (Responder, error) {
	accepted := selectAcceptedType(ctx.Request.Header)
	if len(accepted) == 0 {
		return ctx.JSON, nil
	}

	for _, contentType := range accepted {
		switch contentType {
		case "", "*/*", "application/*", gin.MIMEJSON:
			return ctx.JSON, nil
		case gin.MIMEYAML, "text/yaml", "application/yaml", "text/x-yaml":
			return ctx.YAML, nil
		}
	}

	return nil, ErrNotAcceptable
}

// Reply writes response value using the media type negotiated with the client, JSON if there is no agreement.
func Reply(ctx *gin.Context, code int, responseValue any) {
	reply, err := Negotiate(ctx)
	if err != nil {
		reply = ctx.JSON
	}

	reply(code, responseValue)
}

// AbortWithError terminates response-handling chain with an error, and returns provided HTTP error response to the client
func AbortWithError(ctx *gin.Context, errValue *ErrorResponse) {
	ctx.AbortWithStatusJSON(errValue.Status, errValue)
}

// ContentTypeAPI returns middleware that rejects requests for media types the API can not produce with 406.
// Used in conjunction with [Negotiate] and [Reply].
func ContentTypeAPI() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, err := Negotiate(ctx); err != nil {
			AbortWithError(ctx, NewErrorResponse(http.StatusNotAcceptable, "NotAcceptable", err))
			return
		}

		ctx.Next()
	}
}

// NextPageURL returns a copy of a request URL with pagination parameter set to continue from the token.
// Parameters in dropParams are removed.
func NextPageURL(requestURL *url.URL, param, token string, dropParams ...string) *url.URL {
	next := url.URL{
		Path:    requestURL.Path,
		RawPath: requestURL.RawPath,
	}

	query := requestURL.Query()
	for _, p := range dropParams {
		query.Del(p)
	}
	query.Set(param, token)
	next.RawQuery = query.Encode()

	return &next
}

// LinkHeader formats a single [HTTPHeaderLink] value.
func LinkHeader(target *url.URL, rel string) string {
	return "<" + target.String() + ">; rel=\"" + rel + "\""
}
