// Package scheduler defines the pull-based refresh contract between dispatch
// clients and the server. Discovery is polling, not push: providers refresh
// their visible set on a fixed cadence and degrade to capped exponential
// backoff when fetches fail, so the staleness of any client view is bounded
// by its poll interval.
package scheduler
