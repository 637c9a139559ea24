// Package errors provides classified errors for livedocs.
//
// Every failure that crosses a package boundary is a *ClassifiedError carrying a
// category, a severity and a retry strategy. Transports classify their failures
// (network, not_found, canceled) so the fetch orchestrator can decide between the
// fallback-language retry, the 404 page and silently discarding a superseded
// request without string matching. The HTTP and CLI adapters turn the same
// classification into status codes and exit codes.
package errors
