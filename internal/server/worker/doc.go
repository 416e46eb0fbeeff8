// Package worker applies the offline cache policy to GET traffic for one
// origin.
//
// A Worker is one version of the policy. It is installed (the static bucket
// is primed with the essential and module assets), waits, becomes active
// (stale buckets are dropped) and is eventually superseded by a newer
// version. Registration holds the active and waiting workers and routes
// fetches to the active one.
//
// Fetch policy for same-origin GETs: go to the network first, bypassing HTTP
// caches. A 200 reply is written through to the runtime bucket; a 404 for a
// navigation is answered with the cached shell document. When the network
// fails the caches answer, then the shell document for navigations.
package worker
