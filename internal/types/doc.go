/*
Package types defines the wire payloads shared by the chat API client,
the scenarios and the mock server.

# Request Types

CreateSessionRequest and ChatRequest are the two POST bodies. The three GET
endpoints (history, stats, session list) carry no body.

# Response Envelope

Every endpoint answers with the same JSON envelope:

	{
	  "success": true,
	  "sessionId": "abc",
	  "error": "bad request"
	}

Success is a *bool: a missing flag counts as a failure, the same as false.
*/
package types
