// Package openapi validates incoming requests against the published API contract.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/frahmantamala/kitchen-ops/internal"
	"github.com/frahmantamala/kitchen-ops/internal/transport"
)

type Validator struct {
	router routers.Router
	prefix string
	base   *transport.BaseHandler
}

// Load parses and validates the document. Paths in the document are relative
// to prefix, which is stripped from request paths before matching.
func Load(ctx context.Context, data []byte, prefix string, lg *slog.Logger) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	doc.Servers = nil
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	return &Validator{
		router: router,
		prefix: strings.TrimSuffix(prefix, "/"),
		base:   transport.NewBaseHandler(lg),
	}, nil
}

// Middleware rejects requests whose parameters or body break the contract.
// Requests for routes the document does not describe pass through untouched.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		routed := r.Clone(r.Context())
		routed.URL.Path = strings.TrimPrefix(r.URL.Path, v.prefix)
		if routed.URL.Path == "" {
			routed.URL.Path = "/"
		}
		routed.URL.RawPath = ""
		routed.Body = r.Body

		route, pathParams, err := v.router.FindRoute(routed)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    routed,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				MultiError:         false,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			v.base.WriteAppError(w, contractError(err))
			return
		}

		// the filter may have replaced the body after reading it
		r.Body = routed.Body
		next.ServeHTTP(w, r)
	})
}

func contractError(err error) *internal.AppError {
	field := ""
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.Parameter != nil {
		field = reqErr.Parameter.Name
	}

	details := map[string]interface{}{"reason": err.Error()}
	if field != "" {
		details["field"] = field
	}
	return internal.NewValidationError("request does not match the API contract", internal.ErrCodeValidationFailed).
		WithDetails(details)
}
