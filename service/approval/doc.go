// Package approval implements the human-in-the-loop confirmation gate for
// destructive remote operations. A pending request is confirmable only by its
// original requester, expires after a bounded TTL and runs its bound remote
// callback exactly once, on confirmation.
package approval
