// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

/*
Package services provides suture.Service wrappers for siteselect components.

Each wrapper translates a component's lifecycle into suture's context-aware
Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

HTTPServerService wraps *http.Server: ListenAndServe runs in a goroutine and
context cancellation triggers a graceful Shutdown bounded by a timeout.

CacheJanitorService calls Evict on a cache at a fixed interval and records
the number of removed entries in siteselect_cache_evictions_total.

The ingest consumer implements suture.Service itself and needs no wrapper.
*/
package services
