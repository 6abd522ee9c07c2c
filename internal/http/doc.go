// Package http exposes the bell service to siren controllers and operators.
//
// Device endpoints never fail a poll: storage errors degrade to safe defaults
// and are only logged.
//   - GET /api/comando: poll directive. Response: {"current_time","current_day",
//     "should_activate","is_scheduled","siren_status","next_alarm","command_id"}.
//     next_alarm is null when nothing else rings today; command_id is omitted
//     when no ring is pending.
//   - GET /check_command/: {"command":"ligar","source","id"} while a ring is
//     pending, otherwise {"command":"desligar"}.
//   - POST /confirm_command/: clears the pending ring. Always {"status":"success"}.
//   - GET /is_update/: {"update":"normal"|"update"}.
//   - POST /update_confirm/: returns the device to normal mode.
//
// Operator endpoints:
//   - POST /ativar/: optional body {"duration","source"}. Response:
//     {"status":"success","command_id","duration","timestamp"}. A failed push to
//     the controller answers 502 with the same fields since the ring stays stored.
//   - POST /update_alarm/: requests firmware update mode.
//   - GET /api/schedules, POST /api/schedules, GET /api/schedules/today,
//     GET|PUT|DELETE /api/schedules/{id}, POST /api/schedules/{id}/disable:
//     schedule management exchanging the `scheduleDTO` payload defined in
//     schedule_handler.go.
package http
