// Package api exposes the notification intake over HTTP.
//
// Routes:
//
//	POST /notifications              accept a request, 201 {"success":true,"notification":{...}}
//	GET  /notifications/{id}         one record
//	GET  /users/{id}/notifications   newest first, ?limit=&offset=&status=
//	GET  /ws                         realtime socket
//	GET  /health/live, /health/ready checks
//	GET  /metrics                    Prometheus exposition
//
// Failures are rendered as {"success":false,"error":"..."}. Intake failures
// answer 500 whatever the cause.
package api
