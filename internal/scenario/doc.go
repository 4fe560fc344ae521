/*
Package scenario defines how simulated chat users behave.

Three profiles share one lifecycle. A user starts without a session and
creates one in its start hook. It keeps that session id for every later
action until it stops. When an action finds no session, it makes one
bootstrap attempt and skips its own request for that cycle. Bootstrap
retries are not capped.

	profile          wait       weight  tasks
	chat             1s-5s      1       send 10, history 3, stats 1, sessions 1
	high-frequency   0.5s-2s    2       burst of 3 messages, 100ms apart
	low-frequency    10s-30s    1       one message from a small pool

Every call counts as a success only with HTTP 200 and "success": true in the body.
*/
package scenario
