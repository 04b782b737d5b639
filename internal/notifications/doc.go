// Package notifications delivers run milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured
// in config.toml and degrades to a no-op when no topic is set. Per-event
// toggles ([notifications] run_started, run_completed, errors) suppress
// individual milestones without disabling the transport. Coordinator code
// depends only on the Service interface.
package notifications
