// Package serve runs the gRPC health endpoint of a verdict worker process.
//
// The server registers the standard grpc.health.v1.Health service. The
// overall status ("") and the ServiceName status move together: NOT_SERVING
// until the worker starts consuming, SERVING while it runs, and NOT_SERVING
// again once shutdown begins.
//
//	srv, err := serve.NewServer(serve.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	go srv.Serve(ctx)
//	srv.SetServing()
package serve
