package config

import "sort"

// requiredKeys are the environment variables that must be set for the
// service to start at all (spec §6.4: "Missing required keys fail fast
// at startup").
var requiredKeys = map[string]func(*Config) string{
	"LLM_API_KEY":  func(c *Config) string { return c.LLMAPIKey },
	"DATABASE_URL": func(c *Config) string { return c.DatabaseURL },
}

// validate checks every required key is present, collecting every
// violation before returning (teacher's validator.go pattern).
func validate(cfg *Config) error {
	var missing []string
	for key, get := range requiredKeys {
		if get(cfg) == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return newMissingKeysError(missing)
}
