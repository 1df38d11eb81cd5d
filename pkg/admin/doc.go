// Package admin serves the operator HTTP surface of the lifecycle service.
//
// Routes:
//
//	GET  /healthz                   liveness
//	GET  /readyz                    readiness (database, redis)
//	GET  /metrics                   Prometheus exposition
//	GET  /admin/demo/stats          demo account counts
//	GET  /admin/demo/expired        expired demo accounts still active
//	POST /admin/demo/cleanup        run cleanup; dry_run=true unless dry_run=false
//	POST /admin/demo/warnings       send expiration warnings
//
// Everything under /admin requires "Authorization: Bearer <token>". With no
// token configured the /admin routes reject every request.
package admin
