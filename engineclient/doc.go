// Package engineclient implements the client runtime for a remote stateful
// compute engine reached over one persistent duplex channel.
//
// A Client owns a single logical connection with an explicit lifecycle
// (Disconnected, Connecting, Authenticating, Ready, Closed). Commands are
// correlated by id with independent per-command deadlines; batch responses
// are demultiplexed into their sub-commands' pending entries. Execute is
// self-healing: called while disconnected it dials, authenticates, and then
// sends.
//
// Typical use:
//
//	client, err := engineclient.NewClient("wss://engine.example.com/session", token,
//		engineclient.WithLogger(logger),
//		engineclient.WithMetrics(registry, "engine"))
//	if err != nil {
//		return err
//	}
//	defer client.Cleanup()
//
//	resp, err := client.Execute(ctx, protocol.CommandRequest{Command: body})
//
// Errors carry a classification (auth, io, engine, timeout) matchable with
// the helpers in the errors package.
package engineclient
