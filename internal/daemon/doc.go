// Package daemon drives the dnsconfd plugin from snapshot sources.
// It loads and completes snapshots, hands them to the plugin on the event
// loop, waits for delivery and re-pushes when the snapshot file changes.
package daemon
