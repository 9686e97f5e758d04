// Package config handles loading and validating emeraldhwsd configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables (EMERALD_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The account password should be supplied via EMERALD_PASSWORD rather than
//     committed to a config file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/emeraldhwsd.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Session.TTL())
//
// An empty path skips the file and yields defaults plus environment overrides,
// which is how the daemon is usually launched by a parent process.
package config
