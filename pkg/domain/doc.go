// Package domain holds the value types shared by every layer of the service:
// exposure queries and verdicts, evidence records, challenge tokens, feedback
// and scan log entries. They carry no behavior tied to a transport or a
// storage backend.
package domain
