// Package taintflow enables "taint checking", a static analysis technique
// for identifying attacker-controlled "sources" used in dangerous
// contexts "sinks".
//
// The analysis is interprocedural. Every externally exposed entry point
// (usually an HTTP route handler) is assumed to receive attacker
// controlled parameters, and an iterative worklist follows that taint
// through an arbitrary chain of calls until it reaches a registered sink,
// such as a SQL query or a command execution. Each method is analyzed
// with a forward data flow analysis that is sensitive to null checks and
// to writes through fields and array elements.
//
// A classic example of this is identifying SQL injections,
// where user controlled inputs, typically from an HTTP request,
// finds their way into a SQL query without using a prepared statement.
package taintflow
