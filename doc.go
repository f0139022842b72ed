// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package wireframe is an HTTP/1.1 wire-protocol engine.
//
// The module is split into small packages that each own one stage of
// the pipeline:
//
//   - buffer: an appendable, drainable byte staging area
//   - httpparse: an incremental state-machine parser that emits
//     fragments of messages as bytes arrive, under any input split
//   - message: assembles parser fragments into Incoming messages and
//     frames Outgoing responses back onto the wire
//   - server: accepts connections and dispatches parsed requests onto
//     a fixed worker pool
//   - client: issues requests over raw connections, behind a circuit
//     breaker
//
// A minimal server:
//
//	srv := server.New(server.HandlerFunc(func(req *message.Incoming, res *message.Outgoing) {
//	    res.SetStatus(200)
//	    res.WriteString("hello")
//	    res.End()
//	}), server.Addr(":8080"))
//	if err := srv.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package wireframe
