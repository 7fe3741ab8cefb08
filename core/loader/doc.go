// Package loader registers HTTP features on the fiber app.
//
// A feature implements:
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// Manager.Register collects features and Manager.LoadAll mounts the enabled ones,
// returning their names. Disabled features are skipped, which keeps the
// persistence routes off when the server starts without a database.
package loader
