// Package types defines the grid configuration, display state and settings
// records, the SessionStore and SettingsStore interfaces, and the standard
// errors shared by the crudgrid packages.
package types
