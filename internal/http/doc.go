// Package http provides HTTP handlers and middleware for the workshop API.
//
// Every endpoint except GET /healthz requires an identity: X-User-ID (plus
// X-User-Email) for students and mentors, or X-Admin-Key for administrators.
//
// The router exposes the following endpoints:
//   - GET /workshops, POST /workshops: list and create workshops. The create
//     body carries {"title","mentor_id","mentor_email","schedule"} where schedule
//     is either {"type":"recurring","start_date","number_of_days","pattern":[{"weekday","time"}]}
//     or {"type":"custom","sessions":[{"date","time"}]}.
//   - GET /workshops/{id}, DELETE /workshops/{id}.
//   - PUT /workshops/{id}/schedule: replaces the schedule. Switching between
//     recurring and custom discards every generated link of the workshop.
//   - GET, POST /workshops/{id}/enrollments and
//     PUT /workshops/{id}/enrollments/{email}/payment.
//   - GET /workshops/{id}/sessions: every session with its link status.
//   - GET /workshops/{id}/sessions/{day}/link: read-only link status for one day.
//   - POST /workshops/{id}/sessions/{day}/link: returns the session's meeting
//     link, generating it when the window is open. 201 marks a fresh link, 200
//     an existing one, and 409 WINDOW_NOT_OPEN carries wait_remaining_seconds,
//     wait_remaining and opens_at.
package http
