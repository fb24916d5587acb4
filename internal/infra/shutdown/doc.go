// Package shutdown coordinates graceful termination of tokgate processes.
//
// A Handler waits for SIGINT, SIGTERM or a programmatic Trigger, then runs
// the registered hooks in reverse registration order under one deadline:
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("listener", srv.Shutdown)
//	err := h.Wait()
package shutdown
