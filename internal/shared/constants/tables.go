// Package constants holds shared constant definitions.
package constants

// Database table names.
const (
	TableDevices          = "devices"
	TableCustomers        = "customers"
	TablePlans            = "plans"
	TableSubscriptions    = "subscriptions"
	TableRentalSessions   = "rental_sessions"
	TableCaptureArtifacts = "capture_artifacts"
)
