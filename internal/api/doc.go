// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

/*
Package api provides the HTTP REST API for siteselect.

Routes:

	GET  /health                             liveness plus resolver mode and store status
	GET  /metrics                            Prometheus exposition
	POST /api/v1/mentions                    resolve one mention or a batch
	GET  /api/v1/sites                       list registered sites
	GET  /api/v1/sites/{id}                  one site with its study links
	POST /api/v1/recommendations             tiered recommendation report
	POST /api/v1/recommendations/scenarios   base, conservative and aggressive reports

Every response uses the models.APIResponse envelope:

	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
	{"status":"error","error":{"code":"VALIDATION_ERROR","message":"..."},"metadata":{...}}

Middleware Stack (applied in order):

  - Request ID: X-Request-ID header, request and correlation IDs in the logging context
  - RealIP: client address from X-Forwarded-For / X-Real-IP
  - Recoverer: panics become 500 responses
  - CORS: go-chi/cors, origins from configuration
  - Rate limiting: go-chi/httprate per client IP on /api/v1
  - Metrics: request count and latency by route pattern

The router holds no authentication layer; deploy it behind the network
boundary that fronts the rest of the trial-planning tools.
*/
package api
