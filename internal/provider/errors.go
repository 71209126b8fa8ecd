package provider

import "errors"

// ErrForbidden indicates the provider rejected the request as unauthorized
// or forbidden (HTTP 401/403): the configured token is invalid or lacks
// the scope the target needs, not a transient or retryable condition.
var ErrForbidden = errors.New("provider request forbidden")

// ErrConfig indicates a target itself is misconfigured — an unparseable
// scope or a missing/unresolvable credential — rather than a failure at
// the provider.
var ErrConfig = errors.New("invalid target configuration")
