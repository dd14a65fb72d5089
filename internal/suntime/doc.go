// Package suntime computes and caches sunrise/sunset for the site.
//
// The Monitor recomputes daily at a randomised minute after local
// midnight so a fleet of hubs never recomputes in lockstep, and degrades
// gracefully: a failed computation reuses yesterday's times, and a hub
// that has never computed anything answers 07:00/19:00 local. The
// engine host reads the latest pair when enriching messages.
package suntime
