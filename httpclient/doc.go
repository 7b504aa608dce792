// Package httpclient is a small networking core for talking to REST APIs
// such as Jira, GitLab or an app store backend.
//
// A Request is an immutable value built with Get, Post and friends. A Client
// resolves it against its base URL, encodes the body with a codec, sends it
// and classifies the outcome. Every dispatch returns an Operation, a function
// of a context, so callers can compose it:
//
//	op := httpclient.PerformWithRetry[Issue](client, httpclient.Get("/rest/api/2/issue/PROJ-1"),
//		httpclient.RetryPolicy{MaxAttempts: 2, Delay: time.Second})
//	issue, err := httpclient.Run(ctx, op, 30*time.Second, client.AwaitOptions()...)
//
// Run and Await bridge an Operation into a blocking call with a timeout;
// when the timeout fires the in-flight request is cancelled. All failures
// are *NetworkingError values classified by ErrorKind.
//
// Each dispatch is logged as a request line and a response or failure line
// sharing one correlation id, which is also sent as X-Request-ID.
package httpclient
