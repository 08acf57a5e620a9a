package gateway

import (
	"context"
)

// Availability is the three-valued outcome of a username or email check.
// Unknown marks the fail-open case: the check itself failed, so the name is
// reported available to keep a transient hiccup from blocking registration,
// but a truly-taken name can still be rejected at submission time.
type Availability struct {
	Available bool
	Unknown   bool
	Message   string
}

type availabilityResponse struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

// CheckUsername reports whether a username is free to register. Fail-open by
// explicit business rule: any transport or server error yields an available
// result flagged Unknown.
func (g *Gateway) CheckUsername(ctx context.Context, username string) Availability {
	return g.checkAvailability(ctx, checkUsernamePath, map[string]string{"username": username})
}

// CheckEmail reports whether an email address is free to register, with the
// same fail-open rule as CheckUsername.
func (g *Gateway) CheckEmail(ctx context.Context, email string) Availability {
	return g.checkAvailability(ctx, checkEmailPath, map[string]string{"email": email})
}

func (g *Gateway) checkAvailability(ctx context.Context, path string, body map[string]string) Availability {
	if err := g.limiter.Wait(ctx); err != nil {
		return g.failOpen(path, err)
	}

	var resp availabilityResponse
	if err := g.postJSON(ctx, path, body, "", &resp); err != nil {
		return g.failOpen(path, err)
	}
	return Availability{Available: resp.Available, Message: resp.Message}
}

func (g *Gateway) failOpen(path string, err error) Availability {
	g.logger.Warn().Err(err).Str("path", path).Msg("availability check failed, treating as available")
	return Availability{Available: true, Unknown: true}
}
