// Package routing decides where each inbound message goes.
//
// A Router runs every message through the same pipeline:
//
//  1. the PayloadNormalizer decodes text-like binary payloads (expression mode only)
//  2. an Evaluator computes zero or more route keys
//  3. the MappingTable substitutes aliases for route keys
//  4. the DestinationResolver turns names into live destinations, creating them on first use
//  5. the message is sent to every resolved destination
//
// Two Evaluator implementations exist. ExpressionEvaluator compiles an
// expr-lang expression once and evaluates it against the message headers and
// payload. ScriptEvaluator runs a JavaScript file with goja; the file is
// polled on a schedule and swapped atomically when it changes, so in-flight
// evaluations keep the program they started with.
//
// Keys that cannot be resolved are dropped in lenient mode and fail the whole
// message in strict mode. When nothing resolves, the default destination, if
// configured, receives the message. Sends to multiple destinations are
// independent; every send is attempted and failures are reported together as
// a DispatchError.
//
// # Usage
//
//	resolver := routing.NewDestinationResolver(factory, nil)
//	router, err := routing.NewRouter(routing.Config{
//	    Expression:         routing.DefaultExpression,
//	    DefaultDestination: "discards",
//	}, resolver, logger)
//	if err != nil {
//	    return err
//	}
//	defer router.Close()
//
//	err = router.Handle(ctx, routing.NewMessage([]byte("hi"), map[string]interface{}{
//	    "routeTo": "orders",
//	}))
package routing
