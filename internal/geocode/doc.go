// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

/*
Package geocode turns site locations into coordinates.

The Resolver sits in front of an external Geocoder and a TTL cache:

	Resolve(address)
	  -> cache hit inside TTL: return, no external call
	  -> miss: rate.Limiter.Wait -> Geocoder (per-attempt timeout, retried
	     with exponential backoff) -> write back -> return
	  -> every attempt failed: ErrUnavailable

Nominatim is the shipped provider. BreakerGeocoder wraps any provider with
a sony/gobreaker circuit so an outage short-circuits to ErrUnavailable
without waiting out the retry schedule for every new site.

Geocoding is best effort. Sites are created with nil coordinates when
Resolve fails, and the failure is logged and counted, not propagated.
*/
package geocode
