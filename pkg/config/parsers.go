package config

// EffectiveConfigResult carries the fully merged configuration plus the
// resolved listen address, DB path and which source won (flags, env,
// config).
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string
}

// ResolveEffective merges flag values over the loaded config following
// flag > env > file precedence and records the winning source.
func ResolveEffective(cfg *Config, addrVal, dbVal string, setFlags map[string]bool, envUsed bool) EffectiveConfigResult {
	eff := EffectiveConfigResult{Config: cfg}

	if setFlags["addr"] {
		eff.Addr = addrVal
	} else {
		eff.Addr = cfg.Addr()
	}
	if setFlags["db"] {
		eff.DBPath = dbVal
	} else if p := cfg.Storage.DBPath; p != "" {
		eff.DBPath = p
	} else {
		eff.DBPath = dbVal
	}

	switch {
	case setFlags["addr"] || setFlags["db"]:
		eff.Source = "flags"
	case envUsed:
		eff.Source = "env"
	default:
		eff.Source = "config"
	}
	return eff
}
