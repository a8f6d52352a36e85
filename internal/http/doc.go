// Package http provides HTTP handlers and middleware for the room reservation API.
//
// The router exposes the following endpoints:
//   - GET /api/reservations?date=YYYY-MM-DD: reservations ordered by date and
//     start time, all of them when date is omitted.
//   - POST /api/reservations: body {"name","email","date","startTime","endTime","purpose"}.
//     Responds 201 with the reservation plus "googleCalendarAdded". An
//     overlapping slot yields 200 {"available":false,"conflicts"} and stores nothing.
//   - PUT /api/reservations/{id}: same body, replaces the reservation.
//   - DELETE /api/reservations/{id}: {"success":true} or 404 {"error"}.
//   - POST /api/check-availability: body {"date","startTime","endTime","excludeId"},
//     responds {"available","conflicts"}.
//   - GET /api/reservations/feed.ics?date=: iCalendar export.
//   - GET /auth/google, GET /auth/google/callback, GET /auth/status,
//     POST /auth/logout: Google sign in lifecycle. The callback redirects to
//     /?auth=success or /?error=auth_failed.
//   - GET /ws: realtime subscription pushing {"type","data"} messages.
//   - GET /debug/config and GET /healthz: operational status.
//
// Errors are rendered as {"error": "...", "details": {field: message}}.
package http
