// Package nest is a client for the Nest developer REST API.
//
// A Session reads the account's root document (structures and thermostats)
// and issues mutations against individual structures and thermostats.
// Temperatures are exposed in each thermostat's own scale; the client picks
// the matching `_f` or `_c` field names when writing.
//
// # Authorization
//
// Access tokens are obtained with the PIN flow: the owner visits
// AuthorizeURL, approves the product and receives a PIN, which RequestToken
// exchanges for a token. The token is cached on disk and reused by later
// sessions.
//
//	s, err := nest.NewSession(nest.ConfigFrom(cfg.Nest))
//	if err != nil {
//	    return err
//	}
//	if s.AuthorizationRequired() {
//	    if err := s.RequestToken(ctx, cfg.Nest.PIN); err != nil {
//	        return err
//	    }
//	}
//	structures, err := s.Structures(ctx)
//
// # Errors
//
// Transport failures and non-2xx responses match ErrTransient. Bodies that
// do not decode match ErrMalformedResponse.
package nest
