// Package status carries pipeline visibility: the Sink interface for
// human-readable progress lines and the Tracker that aggregates
// correlation and delivery activity for the status API.
package status
