// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

/*
Package supervisor provides process supervision for siteselect using suture v4.

The serve command runs every long-lived component under one tree:

	RootSupervisor ("siteselect")
	├── DataSupervisor ("data-layer")
	│   └── CacheJanitorService (geocode cache eviction)
	├── IngestSupervisor ("ingest-layer")
	│   └── ingest.Consumer (mention bus subscriber)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer restarts its own children with suture's backoff policy, so a
consumer that keeps failing on a broken NATS connection does not take the
HTTP API down with it. Supervisor events (restarts, backoff, timeouts) are
logged through sutureslog on the slog bridge of the zerolog logger.

Shutdown is driven by canceling the context passed to Serve; each service
gets TreeConfig.ShutdownTimeout to return.
*/
package supervisor
