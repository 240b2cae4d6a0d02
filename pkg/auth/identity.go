package auth

// Role classifies an authenticated caller.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

// SecConfig carries the security settings the gateway middleware needs.
type SecConfig struct {
	AllowedOrigins []string
	IPWhitelist    []string
	FrontendKeys   map[string]struct{}
	BackendKeys    map[string]struct{}
	AdminKeys      map[string]struct{}
	RPS            float64
	Burst          int
}

// NewSecConfig builds a SecConfig from key slices.
func NewSecConfig(origins, whitelist, frontend, backend, admin []string, rps float64, burst int) SecConfig {
	toSet := func(keys []string) map[string]struct{} {
		m := map[string]struct{}{}
		for _, k := range keys {
			if k != "" {
				m[k] = struct{}{}
			}
		}
		return m
	}
	return SecConfig{
		AllowedOrigins: origins,
		IPWhitelist:    whitelist,
		FrontendKeys:   toSet(frontend),
		BackendKeys:    toSet(backend),
		AdminKeys:      toSet(admin),
		RPS:            rps,
		Burst:          burst,
	}
}
