// Package toolbridge connects a chat model to the tools of one or more remote
// tool servers.
//
// # Overview
//
// A tool server is reached through a Session (see the mcp subpackage for MCP
// servers over stdio, and local for in-process tools). The bridge never manages
// server processes; it only lists tools and calls them.
//
// Pipeline: Session → BuildCatalog (discover, drop malformed descriptors) →
// NewExecutor (one per source, with a PermissionFilter and an ErrorPolicy) →
// NewDispatcher (ordered executors) → Dispatch (parse the turn, run every call,
// answer in the caller's shape).
//
// # Key concepts
//
//   - One result per call: every ToolCall gets exactly one ToolMessage whose
//     CallID echoes the call ID, whatever the execution order.
//   - Unknown names are answered, not raised: the message lists every known tool.
//   - Discovery is total: a source that cannot list its tools exposes none.
//   - Interrupt is never caught. It leaves Dispatch exactly as the server or a
//     middleware produced it.
//   - State is a closed union (Sequence, Mapping, Object). Sequence input gets a
//     Sequence back; the other two get a Mapping under the messages key.
//
// # Example
//
//	catalog := toolbridge.BuildCatalog(ctx, session)
//	exec := toolbridge.NewExecutor(session, catalog, toolbridge.WithDeny("rm"))
//	d := toolbridge.NewDispatcher([]*toolbridge.Executor{exec})
//	out, err := d.Dispatch(ctx, toolbridge.Sequence(history...))
//	if err != nil { ... }
//	history = append(history, out.Messages()...)
package toolbridge
